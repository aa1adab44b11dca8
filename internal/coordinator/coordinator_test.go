package coordinator

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claucondor/more-liquidation-bot/internal/blacklist"
	"github.com/claucondor/more-liquidation-bot/internal/notify"
	"github.com/claucondor/more-liquidation-bot/internal/prepared"
	"github.com/claucondor/more-liquidation-bot/internal/tracker"
	agenttypes "github.com/claucondor/more-liquidation-bot/pkg/types"
)

type testError string

func (e testError) Error() string { return string(e) }

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	return &Coordinator{
		cfg: Config{
			ConsecutiveErrorAlertThreshold: 3,
			TopNReport:                     5,
		},
		log:       zerolog.Nop(),
		tracker:   tracker.New(),
		prepared:  prepared.New(time.Minute),
		blacklist: blacklist.New(2, time.Minute),
		notifier:  notify.New("", time.Minute, zerolog.Nop()),
	}
}

func TestAllPoolsConcatenatesEveryVenue(t *testing.T) {
	m := Market{
		StablePools: []agenttypes.PoolRef{{Venue: agenttypes.VenueStable}},
		V3Pools:     []agenttypes.PoolRef{{Venue: agenttypes.VenueV3}},
		V2Routers:   []agenttypes.PoolRef{{Venue: agenttypes.VenueV2}, {Venue: agenttypes.VenueV2}},
	}
	pools := allPools(m)
	assert.Len(t, pools, 4)
}

func TestRecordScanErrorIncrementsCounter(t *testing.T) {
	c := newTestCoordinator(t)
	c.recordScanError(context.Background(), testError("boom"))
	c.recordScanError(context.Background(), testError("boom"))
	assert.Equal(t, 2, c.consecutiveErrors)
}

func TestResetErrorCounterClearsCount(t *testing.T) {
	c := newTestCoordinator(t)
	c.consecutiveErrors = 5
	c.resetErrorCounter()
	assert.Equal(t, 0, c.consecutiveErrors)
}

func TestRecordScanErrorAlertsAtThreshold(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestCoordinator(t)
	c.notifier = notify.New(srv.URL, time.Minute, zerolog.Nop())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		c.recordScanError(ctx, testError("boom"))
	}
	assert.Equal(t, 3, c.consecutiveErrors)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "only the third consecutive failure reaches the threshold and alerts")
}

func TestBuildAttemptRecordMarksFailureReasonOnError(t *testing.T) {
	pos := agenttypes.Position{Borrower: common.HexToAddress("0xB1")}
	plan := agenttypes.PreparedLiquidation{Strategy: agenttypes.V2FlashSwap}
	receipt := agenttypes.TxReceipt{}

	attempt := buildAttemptRecord(pos, plan, receipt, testError("reverted"))
	assert.False(t, attempt.Succeeded)
	assert.Equal(t, agenttypes.ReasonExecutionRevert, attempt.FailureReason)
}

func TestBuildAttemptRecordSucceedsOnGoodReceipt(t *testing.T) {
	pos := agenttypes.Position{Borrower: common.HexToAddress("0xB2")}
	plan := agenttypes.PreparedLiquidation{Strategy: agenttypes.V3Flash}
	receipt := agenttypes.TxReceipt{
		TransactionHash:   common.HexToHash("0xabc"),
		Status:            "0x1",
		GasUsed:           "21000",
		EffectiveGasPrice: "1000000000",
	}

	attempt := buildAttemptRecord(pos, plan, receipt, nil)
	assert.True(t, attempt.Succeeded)
	assert.Equal(t, common.HexToHash("0xabc").Hex(), attempt.TxHash)
	require.NotNil(t, attempt.GasUsed)
	assert.Equal(t, big.NewInt(21000), attempt.GasUsed)
	assert.Equal(t, big.NewInt(21000*1000000000), attempt.GasCostWei)
}

func TestRunSweepEvictsWithoutStatePath(t *testing.T) {
	c := newTestCoordinator(t)
	borrower := common.HexToAddress("0xB3")
	c.prepared.Put(agenttypes.PreparedLiquidation{Borrower: borrower, CreatedAt: time.Now().Add(-time.Hour)})

	c.runSweep(context.Background())

	_, ok := c.prepared.Get(borrower, time.Now())
	assert.False(t, ok)
}
