package feed

import (
	"testing"
	"time"

	"github.com/jarrettlin/execcore/internal/domain"
)

func TestPriceCacheSeparatesVWAPFromTradePrice(t *testing.T) {
	c := newPriceCache(time.Minute)
	key := domain.ContractKey{Symbol: "AAPL", PrimaryExchange: "NASDAQ"}

	c.Set(key, false, 100)
	c.Set(key, true, 99)

	trade, ok := c.Get(key, false)
	if !ok || trade != 100 {
		t.Errorf("trade price = %v, ok=%v, want 100", trade, ok)
	}
	vwap, ok := c.Get(key, true)
	if !ok || vwap != 99 {
		t.Errorf("vwap price = %v, ok=%v, want 99", vwap, ok)
	}
}

func TestPriceCacheExpiresAfterTTL(t *testing.T) {
	c := newPriceCache(time.Millisecond)
	key := domain.ContractKey{Symbol: "AAPL", PrimaryExchange: "NASDAQ"}
	c.Set(key, false, 100)

	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(key, false); ok {
		t.Error("expected the entry to have expired")
	}
}

func TestPriceCacheMissReturnsFalse(t *testing.T) {
	c := newPriceCache(time.Minute)
	key := domain.ContractKey{Symbol: "MSFT", PrimaryExchange: "NASDAQ"}
	if _, ok := c.Get(key, false); ok {
		t.Error("expected a miss for an unset key")
	}
}
