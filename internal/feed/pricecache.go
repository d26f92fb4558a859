package feed

import (
	"sync"
	"time"

	"github.com/jarrettlin/execcore/internal/domain"
)

// priceCache is a small TTL map standing in for the original's moka Cache
// with a 20-second time-to-live: a bespoke cache matches the teacher's
// preference for hand-rolled synchronization over pulling in a cache
// library, and nothing in the pack imports one.
type priceCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[cacheKey]cacheEntry
}

// cacheKey matches the original's (symbol, exchange, vwap?) cache key: a
// VWAP price and a last-trade price for the same contract are distinct
// cache entries.
type cacheKey struct {
	contract domain.ContractKey
	vwap     bool
}

type cacheEntry struct {
	price   float64
	expires time.Time
}

func newPriceCache(ttl time.Duration) *priceCache {
	return &priceCache{ttl: ttl, entries: make(map[cacheKey]cacheEntry)}
}

func (c *priceCache) Get(key domain.ContractKey, vwap bool) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ck := cacheKey{contract: key, vwap: vwap}
	entry, ok := c.entries[ck]
	if !ok {
		return 0, false
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, ck)
		return 0, false
	}
	return entry.price, true
}

func (c *priceCache) Set(key domain.ContractKey, vwap bool, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{contract: key, vwap: vwap}] = cacheEntry{price: price, expires: time.Now().Add(c.ttl)}
}
