package feed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jarrettlin/execcore/internal/broker"
	"github.com/jarrettlin/execcore/internal/domain"
)

func TestTradingDaysBackSkipsWeekends(t *testing.T) {
	loc := time.UTC
	// Thursday 2026-07-30; one trading day back is Wednesday 2026-07-29.
	from := time.Date(2026, 7, 30, 12, 0, 0, 0, loc)
	got := tradingDaysBack(from, 1, loc)
	want := time.Date(2026, 7, 29, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("tradingDaysBack(1) = %v, want %v", got, want)
	}

	// Monday 2026-08-03; one trading day back must skip the weekend to Friday 2026-07-31.
	from = time.Date(2026, 8, 3, 12, 0, 0, 0, loc)
	got = tradingDaysBack(from, 1, loc)
	want = time.Date(2026, 7, 31, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("tradingDaysBack(1) across a weekend = %v, want %v", got, want)
	}
}

type fakeBarStore struct {
	existing      []domain.Bar
	gaps          []domain.Gap
	insertedBatch []domain.Bar
	queryErr      error
	gapsErr       error
}

func (s *fakeBarStore) Insert(ctx context.Context, bar domain.Bar) error { return nil }

func (s *fakeBarStore) InsertBatch(ctx context.Context, bars []domain.Bar) error {
	s.insertedBatch = append(s.insertedBatch, bars...)
	return nil
}

func (s *fakeBarStore) Query(ctx context.Context, q domain.BarSeriesQuery) ([]domain.Bar, error) {
	return s.existing, s.queryErr
}

func (s *fakeBarStore) LatestBar(ctx context.Context, key domain.ContractKey, timestepMinutes int) (domain.Bar, error) {
	return domain.Bar{}, nil
}

func (s *fakeBarStore) GapsSince(ctx context.Context, key domain.ContractKey, timestepMinutes int, since time.Time) ([]domain.Gap, error) {
	return s.gaps, s.gapsErr
}

func (s *fakeBarStore) MostRecentDailyOpen(ctx context.Context, key domain.ContractKey) (float64, error) {
	return 0, nil
}

func (s *fakeBarStore) VWAPToday(ctx context.Context, key domain.ContractKey) (float64, error) {
	return 0, nil
}

type fakeHistoricalBroker struct {
	broker.Client
	bars    []domain.Bar
	barsErr error
	calls   int
}

func (b *fakeHistoricalBroker) HistoricalBars(ctx context.Context, q domain.BarSeriesQuery) ([]domain.Bar, error) {
	b.calls++
	return b.bars, b.barsErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackfillRequestsFullHistoryWhenExistingIsBelowSlack(t *testing.T) {
	store := &fakeBarStore{existing: make([]domain.Bar, 5)}
	brokerClient := &fakeHistoricalBroker{bars: []domain.Bar{{Close: 1}, {Close: 2}}}
	c := New(brokerClient, store, discardLogger())

	contract := domain.Contract{Symbol: "AAPL", PrimaryExchange: "NASDAQ"}
	if err := c.Backfill(context.Background(), contract, 1); err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if brokerClient.calls != 1 {
		t.Errorf("expected a full historical request, got %d broker calls", brokerClient.calls)
	}
	if len(store.insertedBatch) != 2 {
		t.Errorf("expected the fetched bars to be inserted, got %d", len(store.insertedBatch))
	}
}

func TestBackfillOnlyCatchesUpGapWhenSufficientHistoryExists(t *testing.T) {
	existing := make([]domain.Bar, barsPerDay)
	store := &fakeBarStore{existing: existing, gaps: nil}
	brokerClient := &fakeHistoricalBroker{}
	c := New(brokerClient, store, discardLogger())

	contract := domain.Contract{Symbol: "AAPL", PrimaryExchange: "NASDAQ"}
	if err := c.Backfill(context.Background(), contract, 1); err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if brokerClient.calls != 0 {
		t.Errorf("sufficient history should skip the full historical request, got %d calls", brokerClient.calls)
	}
}

func TestCatchUpGapFetchesEachReportedGap(t *testing.T) {
	gaps := []domain.Gap{
		{Symbol: "AAPL", PrimaryExchange: "NASDAQ", From: time.Now().Add(-time.Hour), To: time.Now()},
		{Symbol: "AAPL", PrimaryExchange: "NASDAQ", From: time.Now().Add(-2 * time.Hour), To: time.Now().Add(-time.Hour)},
	}
	store := &fakeBarStore{existing: make([]domain.Bar, barsPerDay), gaps: gaps}
	brokerClient := &fakeHistoricalBroker{bars: []domain.Bar{{Close: 1}}}
	c := New(brokerClient, store, discardLogger())

	contract := domain.Contract{Symbol: "AAPL", PrimaryExchange: "NASDAQ"}
	if err := c.Backfill(context.Background(), contract, 1); err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if brokerClient.calls != len(gaps) {
		t.Errorf("expected one historical request per gap, got %d calls for %d gaps", brokerClient.calls, len(gaps))
	}
}

func TestBackfillPropagatesQueryError(t *testing.T) {
	store := &fakeBarStore{queryErr: context.DeadlineExceeded}
	c := New(&fakeHistoricalBroker{}, store, discardLogger())

	contract := domain.Contract{Symbol: "AAPL", PrimaryExchange: "NASDAQ"}
	if err := c.Backfill(context.Background(), contract, 1); err == nil {
		t.Fatal("expected the existing-bars query error to propagate")
	}
}
