package trigger

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claucondor/more-liquidation-bot/internal/tracker"
	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

func newTestTrigger(t *testing.T) *Trigger {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(accountDataABIJSON))
	require.NoError(t, err)
	return &Trigger{
		tracker:     tracker.New(),
		poolABI:     parsed,
		poolAddress: common.HexToAddress("0xPOOL"),
		log:         zerolog.Nop(),
	}
}

func packAccountData(t *testing.T, tr *Trigger, hf *big.Int) []byte {
	t.Helper()
	method := tr.poolABI.Methods["getUserAccountData"]
	packed, err := method.Outputs.Pack(
		big.NewInt(1000),
		big.NewInt(500),
		big.NewInt(100),
		big.NewInt(8000),
		big.NewInt(7500),
		hf,
	)
	require.NoError(t, err)
	return packed
}

func TestDecodeAccountDataLiquidatable(t *testing.T) {
	tr := newTestTrigger(t)
	pos, ok := tr.decodeAccountData(common.HexToAddress("0xB1"), packAccountData(t, tr, big.NewInt(9e17)))
	require.True(t, ok)
	assert.True(t, pos.HF.IsLiquidatable())
}

func TestDecodeAccountDataMalformedReturnData(t *testing.T) {
	tr := newTestTrigger(t)
	_, ok := tr.decodeAccountData(common.HexToAddress("0xB2"), []byte{0x1})
	assert.False(t, ok)
}

func TestOnBlockNoopWhenTrackerEmpty(t *testing.T) {
	tr := newTestTrigger(t)
	// No mc wired; onBlock must not dereference it when the hot set is
	// empty, so this must not panic.
	tr.onBlock(context.Background(), big.NewInt(1))
}

func TestTrackerRemoveDropsBorrower(t *testing.T) {
	tr := newTestTrigger(t)
	borrower := common.HexToAddress("0xB3")
	tr.tracker.Upsert(types.Position{Borrower: borrower, HF: types.NewHealthFactorFromRaw(big.NewInt(9e17))}, time.Now())

	_, tracked := tr.tracker.Get(borrower)
	assert.True(t, tracked)

	tr.tracker.Remove(borrower)
	_, tracked = tr.tracker.Get(borrower)
	assert.False(t, tracked)
}
