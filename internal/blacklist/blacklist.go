// Package blacklist implements the blacklist (C8): borrowers whose
// liquidation attempts repeatedly fail are set aside for a cooldown window
// rather than retried every cycle (spec.md I5).
package blacklist

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

// List tracks per-borrower failure counts and the cooldown they imply.
type List struct {
	mu          sync.RWMutex
	cooldown    time.Duration
	maxFailures int
	m           map[types.BorrowerId]types.BlacklistEntry
}

// New builds an empty List. maxFailures is the recorded failure count at
// which a borrower becomes blacklisted; cooldown is how long a blacklisted
// borrower is skipped before being retried.
func New(maxFailures int, cooldown time.Duration) *List {
	return &List{
		cooldown:    cooldown,
		maxFailures: maxFailures,
		m:           make(map[types.BorrowerId]types.BlacklistEntry),
	}
}

// RecordFailure increments borrower's failure count and records the
// reason, returning the updated entry.
func (l *List) RecordFailure(borrower types.BorrowerId, reason types.BlacklistReason, now time.Time) types.BlacklistEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.m[borrower]
	e.Failures++
	e.LastAttemptAt = now
	e.Reason = reason
	l.m[borrower] = e
	return e
}

// RecordSuccess clears borrower's failure history entirely.
func (l *List) RecordSuccess(borrower types.BorrowerId) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.m, borrower)
}

// IsBlacklisted reports whether borrower is currently inside its cooldown
// window after reaching maxFailures.
func (l *List) IsBlacklisted(borrower types.BorrowerId, now time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.m[borrower]
	if !ok || e.Failures < l.maxFailures {
		return false
	}
	return now.Sub(e.LastAttemptAt) < l.cooldown
}

// Entry returns the raw tracked entry for a borrower, for diagnostics.
func (l *List) Entry(borrower types.BorrowerId) (types.BlacklistEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.m[borrower]
	return e, ok
}

// Snapshot returns a copy of every tracked entry, keyed by borrower hex
// address, for state persistence across restarts.
func (l *List) Snapshot() map[string]types.BlacklistEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]types.BlacklistEntry, len(l.m))
	for borrower, e := range l.m {
		out[borrower.Hex()] = e
	}
	return out
}

// Restore repopulates the list from a snapshot produced by Snapshot,
// typically read back from disk on process start.
func (l *List) Restore(snapshot map[string]types.BlacklistEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for hex, e := range snapshot {
		l.m[common.HexToAddress(hex)] = e
	}
}

// Len reports how many borrowers currently have recorded failures.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.m)
}

// SweepExpired removes entries whose cooldown has elapsed, returning the
// count evicted.
func (l *List) SweepExpired(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for borrower, e := range l.m {
		if e.Failures >= l.maxFailures && now.Sub(e.LastAttemptAt) >= l.cooldown {
			delete(l.m, borrower)
			evicted++
		}
	}
	return evicted
}
