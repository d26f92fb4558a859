package feed

import (
	"context"
	"testing"

	"github.com/jarrettlin/execcore/internal/domain"
)

type vwapBarStore struct {
	fakeBarStore
	vwap    float64
	vwapErr error
}

func (s *vwapBarStore) VWAPToday(ctx context.Context, key domain.ContractKey) (float64, error) {
	return s.vwap, s.vwapErr
}

func TestCurrentPriceFallsBackToSnapshotWhenNotLiveOrCached(t *testing.T) {
	store := &fakeBarStore{}
	brokerClient := &fakeHistoricalBroker{bars: []domain.Bar{{Close: 42}}}
	c := New(brokerClient, store, discardLogger())

	contract := domain.Contract{Symbol: "AAPL", PrimaryExchange: "NASDAQ"}
	price, err := c.CurrentPrice(context.Background(), contract, false)
	if err != nil {
		t.Fatalf("CurrentPrice: %v", err)
	}
	if price != 42 {
		t.Errorf("price = %v, want 42", price)
	}
	if brokerClient.calls != 1 {
		t.Errorf("expected one snapshot request, got %d", brokerClient.calls)
	}
}

func TestCurrentPriceUsesVWAPStoreWhenRequested(t *testing.T) {
	store := &vwapBarStore{vwap: 101.5}
	c := New(&fakeHistoricalBroker{}, store, discardLogger())

	contract := domain.Contract{Symbol: "AAPL", PrimaryExchange: "NASDAQ"}
	price, err := c.CurrentPrice(context.Background(), contract, true)
	if err != nil {
		t.Fatalf("CurrentPrice: %v", err)
	}
	if price != 101.5 {
		t.Errorf("price = %v, want 101.5", price)
	}
}

func TestCurrentPriceCachesSeparatelyForVWAPAndTrade(t *testing.T) {
	store := &vwapBarStore{vwap: 50}
	brokerClient := &fakeHistoricalBroker{bars: []domain.Bar{{Close: 60}}}
	c := New(brokerClient, store, discardLogger())
	contract := domain.Contract{Symbol: "AAPL", PrimaryExchange: "NASDAQ"}

	tradePrice, err := c.CurrentPrice(context.Background(), contract, false)
	if err != nil {
		t.Fatalf("CurrentPrice(false): %v", err)
	}
	vwapPrice, err := c.CurrentPrice(context.Background(), contract, true)
	if err != nil {
		t.Fatalf("CurrentPrice(true): %v", err)
	}
	if tradePrice == vwapPrice {
		t.Errorf("expected distinct trade (%v) and vwap (%v) prices", tradePrice, vwapPrice)
	}

	// Second call for each should now be served from the cache rather
	// than issuing another broker/store request.
	if _, err := c.CurrentPrice(context.Background(), contract, false); err != nil {
		t.Fatalf("cached CurrentPrice(false): %v", err)
	}
	if brokerClient.calls != 1 {
		t.Errorf("expected the second trade-price lookup to hit the cache, got %d broker calls", brokerClient.calls)
	}
	store.vwap = 70
	cachedVWAP, err := c.CurrentPrice(context.Background(), contract, true)
	if err != nil {
		t.Fatalf("cached CurrentPrice(true): %v", err)
	}
	if cachedVWAP != vwapPrice {
		t.Errorf("expected the second vwap lookup to hit the cache and return %v, got %v", vwapPrice, cachedVWAP)
	}
}
