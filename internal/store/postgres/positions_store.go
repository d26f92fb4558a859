package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jarrettlin/execcore/internal/domain"
)

// StockPositionStore implements domain.StockPositionStore.
type StockPositionStore struct {
	pool *pgxpool.Pool
}

func NewStockPositionStore(pool *pgxpool.Pool) *StockPositionStore {
	return &StockPositionStore{pool: pool}
}

func (s *StockPositionStore) GetCurrent(ctx context.Context, strategy, symbol, primaryExchange string) (domain.CurrentStockPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT strategy, symbol, primary_exchange, quantity, avg_price, updated_at
		 FROM current_stock_positions WHERE strategy = $1 AND symbol = $2 AND primary_exchange = $3`,
		strategy, symbol, primaryExchange,
	)
	var p domain.CurrentStockPosition
	var qty, avg string
	if err := row.Scan(&p.Strategy, &p.Symbol, &p.PrimaryExchange, &qty, &avg, &p.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.CurrentStockPosition{}, domain.ErrNotFound
		}
		return domain.CurrentStockPosition{}, fmt.Errorf("postgres: get current stock position: %w", err)
	}
	p.Quantity, _ = decimal.NewFromString(qty)
	p.AvgPrice, _ = decimal.NewFromString(avg)
	return p, nil
}

func (s *StockPositionStore) UpsertCurrent(ctx context.Context, pos domain.CurrentStockPosition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO current_stock_positions (strategy, symbol, primary_exchange, quantity, avg_price, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (strategy, symbol, primary_exchange)
		 DO UPDATE SET quantity = EXCLUDED.quantity, avg_price = EXCLUDED.avg_price, updated_at = NOW()`,
		pos.Strategy, pos.Symbol, pos.PrimaryExchange, pos.Quantity.String(), pos.AvgPrice.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert current stock position: %w", err)
	}
	return nil
}

func (s *StockPositionStore) ListCurrentByStrategy(ctx context.Context, strategy string) ([]domain.CurrentStockPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT strategy, symbol, primary_exchange, quantity, avg_price, updated_at
		 FROM current_stock_positions WHERE strategy = $1`, strategy)
	if err != nil {
		return nil, fmt.Errorf("postgres: list current stock positions: %w", err)
	}
	defer rows.Close()

	var out []domain.CurrentStockPosition
	for rows.Next() {
		var p domain.CurrentStockPosition
		var qty, avg string
		if err := rows.Scan(&p.Strategy, &p.Symbol, &p.PrimaryExchange, &qty, &avg, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan current stock position: %w", err)
		}
		p.Quantity, _ = decimal.NewFromString(qty)
		p.AvgPrice, _ = decimal.NewFromString(avg)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *StockPositionStore) GetTarget(ctx context.Context, strategy, symbol, primaryExchange string) (domain.TargetStockPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT strategy, symbol, primary_exchange, quantity, limit_price, updated_at
		 FROM target_stock_positions WHERE strategy = $1 AND symbol = $2 AND primary_exchange = $3`,
		strategy, symbol, primaryExchange,
	)
	var p domain.TargetStockPosition
	var qty, limit string
	if err := row.Scan(&p.Strategy, &p.Symbol, &p.PrimaryExchange, &qty, &limit, &p.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.TargetStockPosition{}, domain.ErrNotFound
		}
		return domain.TargetStockPosition{}, fmt.Errorf("postgres: get target stock position: %w", err)
	}
	p.Quantity, _ = decimal.NewFromString(qty)
	p.LimitPrice, _ = decimal.NewFromString(limit)
	return p, nil
}

func (s *StockPositionStore) UpsertTarget(ctx context.Context, pos domain.TargetStockPosition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO target_stock_positions (strategy, symbol, primary_exchange, quantity, limit_price, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (strategy, symbol, primary_exchange)
		 DO UPDATE SET quantity = EXCLUDED.quantity, limit_price = EXCLUDED.limit_price, updated_at = NOW()`,
		pos.Strategy, pos.Symbol, pos.PrimaryExchange, pos.Quantity.String(), pos.LimitPrice.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert target stock position: %w", err)
	}
	return nil
}

func (s *StockPositionStore) ListTargetByStrategy(ctx context.Context, strategy string) ([]domain.TargetStockPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT strategy, symbol, primary_exchange, quantity, limit_price, updated_at
		 FROM target_stock_positions WHERE strategy = $1`, strategy)
	if err != nil {
		return nil, fmt.Errorf("postgres: list target stock positions: %w", err)
	}
	defer rows.Close()

	var out []domain.TargetStockPosition
	for rows.Next() {
		var p domain.TargetStockPosition
		var qty, limit string
		if err := rows.Scan(&p.Strategy, &p.Symbol, &p.PrimaryExchange, &qty, &limit, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan target stock position: %w", err)
		}
		p.Quantity, _ = decimal.NewFromString(qty)
		p.LimitPrice, _ = decimal.NewFromString(limit)
		out = append(out, p)
	}
	return out, rows.Err()
}

// OptionPositionStore implements domain.OptionPositionStore.
type OptionPositionStore struct {
	pool *pgxpool.Pool
}

func NewOptionPositionStore(pool *pgxpool.Pool) *OptionPositionStore {
	return &OptionPositionStore{pool: pool}
}

func (s *OptionPositionStore) GetCurrent(ctx context.Context, strategy string, key domain.OptionKey) (domain.CurrentOptionPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT strategy, symbol, expiry, strike, right, quantity, avg_price, updated_at
		 FROM current_option_positions
		 WHERE strategy = $1 AND symbol = $2 AND expiry = $3 AND strike = $4 AND right = $5`,
		strategy, key.Symbol, key.Expiry, key.Strike, string(key.Right),
	)
	var p domain.CurrentOptionPosition
	var qty, avg string
	var right string
	if err := row.Scan(&p.Strategy, &p.Symbol, &p.Expiry, &p.Strike, &right, &qty, &avg, &p.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.CurrentOptionPosition{}, domain.ErrNotFound
		}
		return domain.CurrentOptionPosition{}, fmt.Errorf("postgres: get current option position: %w", err)
	}
	p.Right = domain.OptionType(right)
	p.Quantity, _ = decimal.NewFromString(qty)
	p.AvgPrice, _ = decimal.NewFromString(avg)
	return p, nil
}

func (s *OptionPositionStore) UpsertCurrent(ctx context.Context, pos domain.CurrentOptionPosition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO current_option_positions (strategy, symbol, expiry, strike, right, quantity, avg_price, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 ON CONFLICT (strategy, symbol, expiry, strike, right)
		 DO UPDATE SET quantity = EXCLUDED.quantity, avg_price = EXCLUDED.avg_price, updated_at = NOW()`,
		pos.Strategy, pos.Symbol, pos.Expiry, pos.Strike, string(pos.Right),
		pos.Quantity.String(), pos.AvgPrice.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert current option position: %w", err)
	}
	return nil
}

func (s *OptionPositionStore) ListCurrentByStrategy(ctx context.Context, strategy string) ([]domain.CurrentOptionPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT strategy, symbol, expiry, strike, right, quantity, avg_price, updated_at
		 FROM current_option_positions WHERE strategy = $1`, strategy)
	if err != nil {
		return nil, fmt.Errorf("postgres: list current option positions: %w", err)
	}
	defer rows.Close()

	var out []domain.CurrentOptionPosition
	for rows.Next() {
		var p domain.CurrentOptionPosition
		var qty, avg, right string
		if err := rows.Scan(&p.Strategy, &p.Symbol, &p.Expiry, &p.Strike, &right, &qty, &avg, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan current option position: %w", err)
		}
		p.Right = domain.OptionType(right)
		p.Quantity, _ = decimal.NewFromString(qty)
		p.AvgPrice, _ = decimal.NewFromString(avg)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *OptionPositionStore) GetTarget(ctx context.Context, strategy string, key domain.OptionKey) (domain.TargetOptionPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT strategy, symbol, expiry, strike, right, quantity, limit_price, updated_at
		 FROM target_option_positions
		 WHERE strategy = $1 AND symbol = $2 AND expiry = $3 AND strike = $4 AND right = $5`,
		strategy, key.Symbol, key.Expiry, key.Strike, string(key.Right),
	)
	var p domain.TargetOptionPosition
	var qty, limit, right string
	if err := row.Scan(&p.Strategy, &p.Symbol, &p.Expiry, &p.Strike, &right, &qty, &limit, &p.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.TargetOptionPosition{}, domain.ErrNotFound
		}
		return domain.TargetOptionPosition{}, fmt.Errorf("postgres: get target option position: %w", err)
	}
	p.Right = domain.OptionType(right)
	p.Quantity, _ = decimal.NewFromString(qty)
	p.LimitPrice, _ = decimal.NewFromString(limit)
	return p, nil
}

func (s *OptionPositionStore) UpsertTarget(ctx context.Context, pos domain.TargetOptionPosition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO target_option_positions (strategy, symbol, expiry, strike, right, quantity, limit_price, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 ON CONFLICT (strategy, symbol, expiry, strike, right)
		 DO UPDATE SET quantity = EXCLUDED.quantity, limit_price = EXCLUDED.limit_price, updated_at = NOW()`,
		pos.Strategy, pos.Symbol, pos.Expiry, pos.Strike, string(pos.Right),
		pos.Quantity.String(), pos.LimitPrice.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert target option position: %w", err)
	}
	return nil
}

func (s *OptionPositionStore) ListTargetByStrategy(ctx context.Context, strategy string) ([]domain.TargetOptionPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT strategy, symbol, expiry, strike, right, quantity, limit_price, updated_at
		 FROM target_option_positions WHERE strategy = $1`, strategy)
	if err != nil {
		return nil, fmt.Errorf("postgres: list target option positions: %w", err)
	}
	defer rows.Close()

	var out []domain.TargetOptionPosition
	for rows.Next() {
		var p domain.TargetOptionPosition
		var qty, limit, right string
		if err := rows.Scan(&p.Strategy, &p.Symbol, &p.Expiry, &p.Strike, &right, &qty, &limit, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan target option position: %w", err)
		}
		p.Right = domain.OptionType(right)
		p.Quantity, _ = decimal.NewFromString(qty)
		p.LimitPrice, _ = decimal.NewFromString(limit)
		out = append(out, p)
	}
	return out, rows.Err()
}
