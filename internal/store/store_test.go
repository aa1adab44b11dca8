package store

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

func TestAttemptToRecordMapsFields(t *testing.T) {
	now := time.Now()
	a := Attempt{
		Timestamp:           now,
		Borrower:            common.HexToAddress("0xB1"),
		Strategy:            types.V2FlashSwap,
		CollateralAsset:     common.HexToAddress("0xC1"),
		DebtAsset:           common.HexToAddress("0xD1"),
		DebtToCover:         big.NewInt(1000),
		ExpectedSeizedValue: big.NewInt(1050),
		TxHash:              "0xabc",
		Succeeded:           true,
		GasUsed:             big.NewInt(200_000),
		GasCostWei:          big.NewInt(5_000_000_000_000),
	}

	record := attemptToRecord(a)
	assert.Equal(t, common.HexToAddress("0xB1").Hex(), record.Borrower)
	assert.Equal(t, "V2FlashSwap", record.Strategy)
	assert.Equal(t, "1000", record.DebtToCover)
	assert.Equal(t, "1050", record.ExpectedSeizedValue)
	assert.True(t, record.Succeeded)
	assert.Equal(t, "200000", record.GasUsed)
}

func TestAttemptToRecordNilBigIntsDefaultToZero(t *testing.T) {
	a := Attempt{Borrower: common.HexToAddress("0xB2"), Strategy: types.V3Flash}
	record := attemptToRecord(a)
	assert.Equal(t, "0", record.DebtToCover)
	assert.Equal(t, "0", record.ExpectedSeizedValue)
	assert.Equal(t, "0", record.GasUsed)
	assert.Equal(t, "0", record.GasCostWei)
}

func TestBigIntToString(t *testing.T) {
	assert.Equal(t, "0", bigIntToString(nil))
	assert.Equal(t, "42", bigIntToString(big.NewInt(42)))
}
