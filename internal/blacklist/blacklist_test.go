package blacklist

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

func TestNotBlacklistedBelowThreshold(t *testing.T) {
	l := New(3, time.Minute)
	borrower := common.HexToAddress("0xB1")
	now := time.Now()

	l.RecordFailure(borrower, types.ReasonSimulationRevert, now)
	l.RecordFailure(borrower, types.ReasonSimulationRevert, now)

	assert.False(t, l.IsBlacklisted(borrower, now))
}

func TestBlacklistedAtThresholdUntilCooldownElapses(t *testing.T) {
	l := New(2, time.Minute)
	borrower := common.HexToAddress("0xB1")
	now := time.Now()

	l.RecordFailure(borrower, types.ReasonSimulationRevert, now)
	l.RecordFailure(borrower, types.ReasonExecutionRevert, now)

	assert.True(t, l.IsBlacklisted(borrower, now.Add(30*time.Second)))
	assert.False(t, l.IsBlacklisted(borrower, now.Add(2*time.Minute)))
}

func TestRecordSuccessClearsHistory(t *testing.T) {
	l := New(1, time.Minute)
	borrower := common.HexToAddress("0xB1")
	now := time.Now()

	l.RecordFailure(borrower, types.ReasonSwapFailed, now)
	assert.True(t, l.IsBlacklisted(borrower, now))

	l.RecordSuccess(borrower)
	assert.False(t, l.IsBlacklisted(borrower, now))
}

func TestSnapshotAndRestoreRoundTrip(t *testing.T) {
	l := New(2, time.Minute)
	borrower := common.HexToAddress("0xB9")
	now := time.Now()
	l.RecordFailure(borrower, types.ReasonExecutionRevert, now)

	snap := l.Snapshot()
	assert.Len(t, snap, 1)

	restored := New(2, time.Minute)
	restored.Restore(snap)
	entry, ok := restored.Entry(borrower)
	assert.True(t, ok)
	assert.Equal(t, 1, entry.Failures)
}

func TestLenReportsTrackedBorrowers(t *testing.T) {
	l := New(1, time.Minute)
	assert.Equal(t, 0, l.Len())
	l.RecordFailure(common.HexToAddress("0xB1"), types.ReasonNoStrategy, time.Now())
	assert.Equal(t, 1, l.Len())
}

func TestSweepExpired(t *testing.T) {
	l := New(1, time.Minute)
	now := time.Now()
	stale := common.HexToAddress("0x1")
	fresh := common.HexToAddress("0x2")

	l.RecordFailure(stale, types.ReasonNoProfitableSize, now.Add(-2*time.Minute))
	l.RecordFailure(fresh, types.ReasonNoProfitableSize, now)

	evicted := l.SweepExpired(now)
	assert.Equal(t, 1, evicted)

	_, ok := l.Entry(stale)
	assert.False(t, ok)
	_, ok = l.Entry(fresh)
	assert.True(t, ok)
}
