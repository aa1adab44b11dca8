// Package prepared implements the prepared-liquidation cache (C7): a
// TTL-bounded store of precomputed, signed-ready liquidation parameter
// bundles (spec.md I3), so a block-trigger hit can submit immediately
// instead of rebuilding a plan from scratch.
package prepared

import (
	"sync"
	"time"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

// Cache holds at most one PreparedLiquidation per borrower.
type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[types.BorrowerId]types.PreparedLiquidation
}

// New builds an empty Cache with the given TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, m: make(map[types.BorrowerId]types.PreparedLiquidation)}
}

// Put stores or replaces a borrower's prepared liquidation.
func (c *Cache) Put(p types.PreparedLiquidation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[p.Borrower] = p
}

// Get returns a borrower's prepared liquidation if present and still fresh
// (I3). A stale entry is treated as absent and is evicted.
func (c *Cache) Get(borrower types.BorrowerId, now time.Time) (types.PreparedLiquidation, bool) {
	c.mu.RLock()
	p, ok := c.m[borrower]
	c.mu.RUnlock()
	if !ok {
		return types.PreparedLiquidation{}, false
	}
	if !p.IsFresh(c.ttl, now) {
		c.mu.Lock()
		delete(c.m, borrower)
		c.mu.Unlock()
		return types.PreparedLiquidation{}, false
	}
	return p, true
}

// Evict removes a borrower's prepared liquidation (used after a successful
// or permanently-failed execution attempt).
func (c *Cache) Evict(borrower types.BorrowerId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, borrower)
}

// SweepExpired removes every entry past its TTL, returning the count
// evicted. Intended to be run on the coordinator's periodic sweep cadence.
func (c *Cache) SweepExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for borrower, p := range c.m {
		if !p.IsFresh(c.ttl, now) {
			delete(c.m, borrower)
			evicted++
		}
	}
	return evicted
}
