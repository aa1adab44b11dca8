// Package tracker implements the hot tracker (C6): the set of borrowers
// the block trigger has flagged as warm or liquidatable between full scans,
// plus the "preparing" sentinel set that gives each borrower a single
// concurrent in-flight slot (spec.md §5). Grounded on the lock-free-getter/
// short-locked-mutator split the teacher uses in `ensureApproval`'s
// check-then-maybe-mutate shape.
package tracker

import (
	"sync"
	"time"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

// Entry is one tracked borrower's last-known state.
type Entry struct {
	Position   types.Position
	UpdatedAt  time.Time
}

// Tracker holds the hot set of borrowers under active watch.
type Tracker struct {
	mu        sync.RWMutex
	hot       map[types.BorrowerId]Entry
	preparing map[types.BorrowerId]struct{}
	ttl       time.Duration
}

// New builds an empty Tracker whose entries never expire on their own —
// use NewWithTTL to enable SweepExpired (I4).
func New() *Tracker {
	return NewWithTTL(0)
}

// NewWithTTL builds an empty Tracker whose entries are evicted by
// SweepExpired once they go ttl without an Upsert (I4: entries not updated
// for 5 minutes are evicted; P3: now-lastSeenAt <= 5min). ttl == 0 disables
// expiry.
func NewWithTTL(ttl time.Duration) *Tracker {
	return &Tracker{
		hot:       make(map[types.BorrowerId]Entry),
		preparing: make(map[types.BorrowerId]struct{}),
		ttl:       ttl,
	}
}

// Upsert adds or replaces a borrower's tracked position (I4: replacement
// only, never merge — the latest scan/trigger reading always wins).
func (t *Tracker) Upsert(pos types.Position, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hot[pos.Borrower] = Entry{Position: pos, UpdatedAt: now}
}

// Remove drops a borrower from the hot set (it recovered, or was
// liquidated by someone).
func (t *Tracker) Remove(borrower types.BorrowerId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.hot, borrower)
}

// Get returns a borrower's tracked entry.
func (t *Tracker) Get(borrower types.BorrowerId) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.hot[borrower]
	return e, ok
}

// Snapshot returns a copy of every tracked borrower, for the block trigger
// to re-check.
func (t *Tracker) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, len(t.hot))
	for _, e := range t.hot {
		out = append(out, e)
	}
	return out
}

// Len reports how many borrowers are currently tracked.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.hot)
}

// TryStartPreparing atomically claims the single in-flight slot for
// borrower, returning false if it is already being prepared (spec.md §5: at
// most one in-flight liquidation attempt per borrower at a time).
func (t *Tracker) TryStartPreparing(borrower types.BorrowerId) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.preparing[borrower]; busy {
		return false
	}
	t.preparing[borrower] = struct{}{}
	return true
}

// FinishPreparing releases borrower's in-flight slot.
func (t *Tracker) FinishPreparing(borrower types.BorrowerId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.preparing, borrower)
}

// IsPreparing reports whether borrower currently holds the in-flight slot.
func (t *Tracker) IsPreparing(borrower types.BorrowerId) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, busy := t.preparing[borrower]
	return busy
}

// SweepExpired evicts hot entries not refreshed by an Upsert within ttl,
// returning the count evicted. A no-op when ttl is 0 (New's default).
func (t *Tracker) SweepExpired(now time.Time) int {
	if t.ttl <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	evicted := 0
	for borrower, e := range t.hot {
		if now.Sub(e.UpdatedAt) >= t.ttl {
			delete(t.hot, borrower)
			evicted++
		}
	}
	return evicted
}
