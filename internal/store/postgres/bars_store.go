package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jarrettlin/execcore/internal/domain"
)

// BarStore implements domain.TimeSeriesStore against PostgreSQL.
type BarStore struct {
	pool     *pgxpool.Pool
	bulkConn *pgx.Conn
}

// NewBarStore constructs a BarStore. bulkConn is the dedicated COPY
// connection returned by Client.BulkConn.
func NewBarStore(pool *pgxpool.Pool, bulkConn *pgx.Conn) *BarStore {
	return &BarStore{pool: pool, bulkConn: bulkConn}
}

const barUpsert = `
	INSERT INTO bars (symbol, primary_exchange, timestep_minutes, start_time, open, high, low, close, volume, wap, trade_count)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (symbol, primary_exchange, timestep_minutes, start_time)
	DO UPDATE SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
		close = EXCLUDED.close, volume = EXCLUDED.volume, wap = EXCLUDED.wap,
		trade_count = EXCLUDED.trade_count`

// Insert upserts a single bar over the pool. Used for the live aggregator's
// per-close write, where volume is low enough that COPY overhead isn't
// worth it.
func (s *BarStore) Insert(ctx context.Context, bar domain.Bar) error {
	_, err := s.pool.Exec(ctx, barUpsert,
		bar.Symbol, bar.PrimaryExchange, bar.TimestepMinutes, bar.StartTime,
		bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.WAP, bar.TradeCount,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert bar: %w", err)
	}
	return nil
}

// bulkBarCols must match the column order passed to pgx.CopyFrom below.
var bulkBarCols = []string{
	"symbol", "primary_exchange", "timestep_minutes", "start_time",
	"open", "high", "low", "close", "volume", "wap", "trade_count",
}

// InsertBatch bulk-loads bars via COPY into a session-scoped temp table,
// then merges into the bars table with an upsert. This is the path used
// by historical backfill, where a single request can return thousands of
// rows and a row-at-a-time INSERT would dominate wall time.
func (s *BarStore) InsertBatch(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.bulkConn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin bulk tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const createStaging = `
		CREATE TEMP TABLE bars_staging (
			symbol TEXT, primary_exchange TEXT, timestep_minutes INT, start_time TIMESTAMPTZ,
			open DOUBLE PRECISION, high DOUBLE PRECISION, low DOUBLE PRECISION, close DOUBLE PRECISION,
			volume BIGINT, wap DOUBLE PRECISION, trade_count INT
		) ON COMMIT DROP`
	if _, err := tx.Exec(ctx, createStaging); err != nil {
		return fmt.Errorf("postgres: create bars_staging: %w", err)
	}

	rows := make([][]any, len(bars))
	for i, b := range bars {
		rows[i] = []any{
			b.Symbol, b.PrimaryExchange, b.TimestepMinutes, b.StartTime,
			b.Open, b.High, b.Low, b.Close, b.Volume, b.WAP, b.TradeCount,
		}
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"bars_staging"}, bulkBarCols, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("postgres: copy into bars_staging: %w", err)
	}

	const merge = `
		INSERT INTO bars (symbol, primary_exchange, timestep_minutes, start_time, open, high, low, close, volume, wap, trade_count)
		SELECT symbol, primary_exchange, timestep_minutes, start_time, open, high, low, close, volume, wap, trade_count
		FROM bars_staging
		ON CONFLICT (symbol, primary_exchange, timestep_minutes, start_time)
		DO UPDATE SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume, wap = EXCLUDED.wap,
			trade_count = EXCLUDED.trade_count`
	if _, err := tx.Exec(ctx, merge); err != nil {
		return fmt.Errorf("postgres: merge bars_staging: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit bulk insert: %w", err)
	}
	return nil
}

const barSelectCols = `symbol, primary_exchange, timestep_minutes, start_time, open, high, low, close, volume, wap, trade_count`

func scanBar(row pgx.Row) (domain.Bar, error) {
	var b domain.Bar
	err := row.Scan(
		&b.Symbol, &b.PrimaryExchange, &b.TimestepMinutes, &b.StartTime,
		&b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.WAP, &b.TradeCount,
	)
	return b, err
}

// Query returns bars in [q.From, q.To) for the given contract and timestep,
// ordered by start_time ascending.
func (s *BarStore) Query(ctx context.Context, q domain.BarSeriesQuery) ([]domain.Bar, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM bars
		 WHERE symbol = $1 AND primary_exchange = $2 AND timestep_minutes = $3
		   AND start_time >= $4 AND start_time < $5
		 ORDER BY start_time ASC`, barSelectCols),
		q.Symbol, q.PrimaryExchange, q.TimestepMinutes, q.From, q.To,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: query bars: %w", err)
	}
	defer rows.Close()

	var out []domain.Bar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bar: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LatestBar returns the most recent closed bar for the contract/timestep.
func (s *BarStore) LatestBar(ctx context.Context, key domain.ContractKey, timestepMinutes int) (domain.Bar, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM bars
		 WHERE symbol = $1 AND primary_exchange = $2 AND timestep_minutes = $3
		 ORDER BY start_time DESC LIMIT 1`, barSelectCols),
		key.Symbol, key.PrimaryExchange, timestepMinutes,
	)
	b, err := scanBar(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bar{}, domain.ErrNotFound
		}
		return domain.Bar{}, fmt.Errorf("postgres: latest bar: %w", err)
	}
	return b, nil
}

// GapsSince walks the bar series since the given time and reports every
// span where two consecutive bars are further apart than one timestep,
// which the backfill routine turns into targeted re-fetch requests.
func (s *BarStore) GapsSince(ctx context.Context, key domain.ContractKey, timestepMinutes int, since time.Time) ([]domain.Gap, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM bars
		 WHERE symbol = $1 AND primary_exchange = $2 AND timestep_minutes = $3 AND start_time >= $4
		 ORDER BY start_time ASC`, barSelectCols),
		key.Symbol, key.PrimaryExchange, timestepMinutes, since,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: gaps query: %w", err)
	}
	defer rows.Close()

	step := time.Duration(timestepMinutes) * time.Minute
	var gaps []domain.Gap
	var prev *domain.Bar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan gap bar: %w", err)
		}
		if prev != nil {
			delta := b.StartTime.Sub(prev.StartTime)
			if delta > step {
				missing := int(delta/step) - 1
				gaps = append(gaps, domain.Gap{
					Symbol:          key.Symbol,
					PrimaryExchange: key.PrimaryExchange,
					TimestepMinutes: timestepMinutes,
					From:            prev.StartTime.Add(step),
					To:              b.StartTime,
					MissingBars:     missing,
				})
			}
		}
		bCopy := b
		prev = &bCopy
	}
	return gaps, rows.Err()
}

// MostRecentDailyOpen returns the open column of the most recent row in
// the daily_ohlcv view for key.
func (s *BarStore) MostRecentDailyOpen(ctx context.Context, key domain.ContractKey) (float64, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT open FROM daily_ohlcv
		 WHERE symbol = $1 AND primary_exchange = $2
		 ORDER BY trading_day DESC LIMIT 1`,
		key.Symbol, key.PrimaryExchange,
	)
	var open float64
	if err := row.Scan(&open); err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: most recent daily open: %w", err)
	}
	return open, nil
}

// VWAPToday returns the vwap column of daily_ohlcv for key's current
// trading day.
func (s *BarStore) VWAPToday(ctx context.Context, key domain.ContractKey) (float64, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT vwap FROM daily_ohlcv
		 WHERE symbol = $1 AND primary_exchange = $2 AND trading_day = date_trunc('day', now())`,
		key.Symbol, key.PrimaryExchange,
	)
	var vwap float64
	if err := row.Scan(&vwap); err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: vwap today: %w", err)
	}
	return vwap, nil
}
