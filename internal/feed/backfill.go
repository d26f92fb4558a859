package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jarrettlin/execcore/internal/domain"
)

// barsPerDay assumes a regular session: 6.5 trading hours at 5-minute bars.
const barsPerDay = 78

// backfillSlackBars is the leeway given before a full historical request is
// made: a contract already holding this many bars short of the full
// requirement is treated as sufficiently backfilled, matching
// update_at_least_n_days_data's "(required_num_bars - 39).max(0)" slack.
const backfillSlackBars = 39

// Backfill ensures contract has at least days of 5-minute history on file,
// requesting the full range from the broker only when the existing count
// falls outside backfillSlackBars of what's required; otherwise it only
// catches up today's gap since the last known bar.
func (c *Consolidator) Backfill(ctx context.Context, contract domain.Contract, days int) error {
	key := contract.Key()
	loc := nyLocation()
	nowNY := time.Now().In(loc)

	earliest := tradingDaysBack(nowNY, days, loc)
	required := days * barsPerDay

	existing, err := c.bars.Query(ctx, domain.BarSeriesQuery{
		Symbol: contract.Symbol, PrimaryExchange: contract.PrimaryExchange,
		TimestepMinutes: 5, From: earliest, To: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("feed: query existing bars for %s: %w", key, err)
	}

	if len(existing) >= required-backfillSlackBars {
		c.logger.Info("sufficient historical bars on file, catching up gap only",
			slog.String("contract", key.String()), slog.Int("existing", len(existing)))
		return c.catchUpGap(ctx, contract, key)
	}

	c.logger.Info("requesting full historical backfill",
		slog.String("contract", key.String()), slog.Int("days", days), slog.Int("existing", len(existing)), slog.Int("required", required))

	bars, err := c.broker.HistoricalBars(ctx, domain.BarSeriesQuery{
		Symbol: contract.Symbol, PrimaryExchange: contract.PrimaryExchange,
		TimestepMinutes: 5, From: earliest, To: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("feed: historical bars for %s: %w", key, err)
	}
	if len(bars) == 0 {
		return nil
	}
	return c.bars.InsertBatch(ctx, bars)
}

// catchUpGap fills any gap since the session open using GapsSince, rather
// than re-requesting the whole window.
func (c *Consolidator) catchUpGap(ctx context.Context, contract domain.Contract, key domain.ContractKey) error {
	loc := nyLocation()
	nowNY := time.Now().In(loc)
	marketOpen := time.Date(nowNY.Year(), nowNY.Month(), nowNY.Day(), 9, 30, 0, 0, loc)

	gaps, err := c.bars.GapsSince(ctx, key, 5, marketOpen)
	if err != nil {
		return fmt.Errorf("feed: gaps since market open for %s: %w", key, err)
	}

	for _, gap := range gaps {
		bars, err := c.broker.HistoricalBars(ctx, domain.BarSeriesQuery{
			Symbol: gap.Symbol, PrimaryExchange: gap.PrimaryExchange,
			TimestepMinutes: 5, From: gap.From, To: gap.To,
		})
		if err != nil {
			c.logger.Error("failed to fetch gap-fill bars", slog.String("contract", key.String()), slog.String("error", err.Error()))
			continue
		}
		if len(bars) == 0 {
			continue
		}
		if err := c.bars.InsertBatch(ctx, bars); err != nil {
			c.logger.Error("failed to insert gap-fill bars", slog.String("contract", key.String()), slog.String("error", err.Error()))
		}
	}
	return nil
}

func nyLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}

// tradingDaysBack walks back `days` weekdays from from (holidays are not
// special-cased; the backfillSlackBars leeway absorbs the occasional extra
// trading holiday) and returns 9:00am local time on that day.
func tradingDaysBack(from time.Time, days int, loc *time.Location) time.Time {
	d := from
	counted := 0
	for counted < days {
		d = d.AddDate(0, 0, -1)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		counted++
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, loc)
}
