// Package cache holds the short-TTL read caches shared by the scanner,
// probe and sizer (C2): asset prices and reserve configuration. Each cache
// is its own RWMutex-guarded map, matching the teacher's one-struct-per-
// concern style — no global singleton holds both.
package cache

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

type priceEntry struct {
	price     types.Price
	fetchedAt time.Time
}

// PriceCache holds oracle price readings with a fixed TTL (I7: a cached
// price older than TTL is never served — callers must refetch).
type PriceCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[common.Address]priceEntry
}

// NewPriceCache builds an empty PriceCache with the given TTL.
func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{ttl: ttl, m: make(map[common.Address]priceEntry)}
}

// Get returns a cached price and true if present and within TTL.
func (c *PriceCache) Get(asset common.Address, now time.Time) (types.Price, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.m[asset]
	if !ok || now.Sub(e.fetchedAt) > c.ttl {
		return types.Price{}, false
	}
	return e.price, true
}

// Set stores a freshly fetched price.
func (c *PriceCache) Set(asset common.Address, price types.Price, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[asset] = priceEntry{price: price, fetchedAt: now}
}

// Missing filters assets to those not freshly cached, for batch prefetch.
func (c *PriceCache) Missing(assets []common.Address, now time.Time) []common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var missing []common.Address
	for _, a := range assets {
		e, ok := c.m[a]
		if !ok || now.Sub(e.fetchedAt) > c.ttl {
			missing = append(missing, a)
		}
	}
	return missing
}

// ReserveConfig is the set of per-asset reserve parameters the sizer and
// probe need that change rarely (liquidation bonus, decimals, stability
// flag, active/frozen status).
type ReserveConfig struct {
	Decimals           int
	LiquidationBonusBp int // basis points over 10000, e.g. 10500 = 5% bonus
	IsStable           bool
	Active             bool
	Frozen             bool
}

type reserveEntry struct {
	cfg       ReserveConfig
	fetchedAt time.Time
}

// ReserveConfigCache holds per-asset reserve configuration with a long TTL
// (these change only on governance action, so the TTL is generous relative
// to PriceCache's).
type ReserveConfigCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[common.Address]reserveEntry
}

// NewReserveConfigCache builds an empty ReserveConfigCache with the given
// TTL.
func NewReserveConfigCache(ttl time.Duration) *ReserveConfigCache {
	return &ReserveConfigCache{ttl: ttl, m: make(map[common.Address]reserveEntry)}
}

// Get returns a cached reserve config and true if present and within TTL.
func (c *ReserveConfigCache) Get(asset common.Address, now time.Time) (ReserveConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.m[asset]
	if !ok || now.Sub(e.fetchedAt) > c.ttl {
		return ReserveConfig{}, false
	}
	return e.cfg, true
}

// Set stores a freshly fetched reserve config.
func (c *ReserveConfigCache) Set(asset common.Address, cfg ReserveConfig, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[asset] = reserveEntry{cfg: cfg, fetchedAt: now}
}
