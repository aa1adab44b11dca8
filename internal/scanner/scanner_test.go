package scanner

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScanner(t *testing.T) *Scanner {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(lendingPoolABIJSON))
	require.NoError(t, err)
	return &Scanner{
		poolABI:     parsed,
		poolAddress: common.HexToAddress("0xP001"),
		pageSize:    defaultPageSize,
	}
}

func packAccountData(t *testing.T, s *Scanner, healthFactorWad *big.Int, totalDebtBase *big.Int) []byte {
	t.Helper()
	method := s.poolABI.Methods["getUserAccountData"]
	packed, err := method.Outputs.Pack(
		big.NewInt(1_000), // totalCollateralBase
		totalDebtBase,
		big.NewInt(100), // availableBorrowsBase
		big.NewInt(8_000),
		big.NewInt(7_500),
		healthFactorWad,
	)
	require.NoError(t, err)
	return packed
}

func TestDecodeAccountDataLiquidatable(t *testing.T) {
	s := newTestScanner(t)
	borrower := common.HexToAddress("0xB1")
	returnData := packAccountData(t, s, big.NewInt(9e17), big.NewInt(500)) // HF = 0.9

	pos, ok := s.decodeAccountData(borrower, returnData)
	require.True(t, ok)
	assert.Equal(t, borrower, pos.Borrower)
	assert.True(t, pos.HF.IsLiquidatable())
	assert.Equal(t, big.NewInt(500), pos.TotalDebtValue)
}

func TestDecodeAccountDataWarm(t *testing.T) {
	s := newTestScanner(t)
	returnData := packAccountData(t, s, big.NewInt(105e16), big.NewInt(500)) // HF = 1.05

	pos, ok := s.decodeAccountData(common.HexToAddress("0xB2"), returnData)
	require.True(t, ok)
	assert.False(t, pos.HF.IsLiquidatable())
	assert.True(t, pos.HF.IsWarm())
}

func TestDecodeAccountDataHealthy(t *testing.T) {
	s := newTestScanner(t)
	returnData := packAccountData(t, s, big.NewInt(2e18), big.NewInt(500)) // HF = 2.0

	pos, ok := s.decodeAccountData(common.HexToAddress("0xB3"), returnData)
	require.True(t, ok)
	assert.False(t, pos.HF.IsLiquidatable())
	assert.False(t, pos.HF.IsWarm())
}

func TestDecodeAccountDataMalformed(t *testing.T) {
	s := newTestScanner(t)
	_, ok := s.decodeAccountData(common.HexToAddress("0xB4"), []byte{0x01, 0x02})
	assert.False(t, ok)
}

func TestDecodedPositionsClassifyIntoCohorts(t *testing.T) {
	s := newTestScanner(t)

	liquidatable, ok := s.decodeAccountData(common.HexToAddress("0x1"), packAccountData(t, s, big.NewInt(9e17), big.NewInt(1)))
	require.True(t, ok)
	warm, ok := s.decodeAccountData(common.HexToAddress("0x2"), packAccountData(t, s, big.NewInt(105e16), big.NewInt(1)))
	require.True(t, ok)
	healthy, ok := s.decodeAccountData(common.HexToAddress("0x3"), packAccountData(t, s, big.NewInt(3e18), big.NewInt(1)))
	require.True(t, ok)

	assert.True(t, liquidatable.HF.IsLiquidatable())
	assert.False(t, liquidatable.HF.IsWarm())
	assert.True(t, warm.HF.IsWarm())
	assert.False(t, warm.HF.IsLiquidatable())
	assert.False(t, healthy.HF.IsLiquidatable())
	assert.False(t, healthy.HF.IsWarm())
}
