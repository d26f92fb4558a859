package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jarrettlin/execcore/internal/domain"
)

// TransactionStore implements domain.TransactionStore.
type TransactionStore struct {
	pool *pgxpool.Pool
}

func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

func (s *TransactionStore) InsertStock(ctx context.Context, tx domain.StockTransaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO stock_transactions (execution_id, strategy, symbol, primary_exchange, quantity, price, fees, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (execution_id) DO NOTHING`,
		tx.ExecutionID, tx.Strategy, tx.Symbol, tx.PrimaryExchange,
		tx.Quantity.String(), tx.Price.String(), tx.Fees.String(), tx.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert stock transaction: %w", err)
	}
	return nil
}

func (s *TransactionStore) InsertOption(ctx context.Context, tx domain.OptionTransaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO option_transactions (execution_id, strategy, symbol, expiry, strike, right, quantity, price, fees, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (execution_id) DO NOTHING`,
		tx.ExecutionID, tx.Strategy, tx.Symbol, tx.Expiry, tx.Strike, string(tx.Right),
		tx.Quantity.String(), tx.Price.String(), tx.Fees.String(), tx.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert option transaction: %w", err)
	}
	return nil
}

// StageCommission upserts a commission report. A migration-installed
// trigger on this table attempts to stitch the fee onto the matching
// transaction row by execution_id; this call never blocks on that.
func (s *TransactionStore) StageCommission(ctx context.Context, c domain.StagedCommission) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO staged_commissions (execution_id, commission, currency, received_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (execution_id) DO UPDATE SET commission = EXCLUDED.commission, currency = EXCLUDED.currency`,
		c.ExecutionID, c.Commission.String(), c.Currency, c.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: stage commission: %w", err)
	}
	return nil
}

// SumStockQuantity recomputes a strategy's position from the transaction
// ledger directly, used to cross-check (not replace) the maintained
// current_stock_positions row during session bootstrap.
func (s *TransactionStore) SumStockQuantity(ctx context.Context, strategy, symbol, primaryExchange string) (domain.CurrentStockPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM stock_transactions
		 WHERE strategy = $1 AND symbol = $2 AND primary_exchange = $3`,
		strategy, symbol, primaryExchange,
	)
	var sum string
	if err := row.Scan(&sum); err != nil {
		return domain.CurrentStockPosition{}, fmt.Errorf("postgres: sum stock quantity: %w", err)
	}
	qty, _ := decimal.NewFromString(sum)
	return domain.CurrentStockPosition{
		Strategy: strategy, Symbol: symbol, PrimaryExchange: primaryExchange, Quantity: qty,
	}, nil
}

func (s *TransactionStore) SumOptionQuantity(ctx context.Context, strategy string, key domain.OptionKey) (domain.CurrentOptionPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM option_transactions
		 WHERE strategy = $1 AND symbol = $2 AND expiry = $3 AND strike = $4 AND right = $5`,
		strategy, key.Symbol, key.Expiry, key.Strike, string(key.Right),
	)
	var sum string
	if err := row.Scan(&sum); err != nil {
		return domain.CurrentOptionPosition{}, fmt.Errorf("postgres: sum option quantity: %w", err)
	}
	qty, _ := decimal.NewFromString(sum)
	return domain.CurrentOptionPosition{
		Strategy: strategy, Symbol: key.Symbol, Expiry: key.Expiry, Strike: key.Strike, Right: key.Right, Quantity: qty,
	}, nil
}

func (s *TransactionStore) ListByStrategy(ctx context.Context, strategy string, opts domain.ListOpts) ([]domain.StockTransaction, []domain.OptionTransaction, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 500
	}

	stockRows, err := s.pool.Query(ctx,
		`SELECT execution_id, strategy, symbol, primary_exchange, quantity, price, fees, executed_at
		 FROM stock_transactions WHERE strategy = $1 ORDER BY executed_at DESC LIMIT $2 OFFSET $3`,
		strategy, limit, opts.Offset,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: list stock transactions: %w", err)
	}
	defer stockRows.Close()

	var stock []domain.StockTransaction
	for stockRows.Next() {
		var t domain.StockTransaction
		var qty, price, fees string
		if err := stockRows.Scan(&t.ExecutionID, &t.Strategy, &t.Symbol, &t.PrimaryExchange, &qty, &price, &fees, &t.ExecutedAt); err != nil {
			return nil, nil, fmt.Errorf("postgres: scan stock transaction: %w", err)
		}
		t.Quantity, _ = decimal.NewFromString(qty)
		t.Price, _ = decimal.NewFromString(price)
		t.Fees, _ = decimal.NewFromString(fees)
		stock = append(stock, t)
	}
	if err := stockRows.Err(); err != nil {
		return nil, nil, err
	}

	optionRows, err := s.pool.Query(ctx,
		`SELECT execution_id, strategy, symbol, expiry, strike, right, quantity, price, fees, executed_at
		 FROM option_transactions WHERE strategy = $1 ORDER BY executed_at DESC LIMIT $2 OFFSET $3`,
		strategy, limit, opts.Offset,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: list option transactions: %w", err)
	}
	defer optionRows.Close()

	var options []domain.OptionTransaction
	for optionRows.Next() {
		var t domain.OptionTransaction
		var qty, price, fees, right string
		if err := optionRows.Scan(&t.ExecutionID, &t.Strategy, &t.Symbol, &t.Expiry, &t.Strike, &right, &qty, &price, &fees, &t.ExecutedAt); err != nil {
			return nil, nil, fmt.Errorf("postgres: scan option transaction: %w", err)
		}
		t.Right = domain.OptionType(right)
		t.Quantity, _ = decimal.NewFromString(qty)
		t.Price, _ = decimal.NewFromString(price)
		t.Fees, _ = decimal.NewFromString(fees)
		options = append(options, t)
	}
	return stock, options, optionRows.Err()
}

// ListStockBefore returns every stock transaction strictly before cutoff,
// for archival to cold storage.
func (s *TransactionStore) ListStockBefore(ctx context.Context, cutoff time.Time) ([]domain.StockTransaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT execution_id, strategy, symbol, primary_exchange, quantity, price, fees, executed_at
		 FROM stock_transactions WHERE executed_at < $1 ORDER BY executed_at`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stock transactions before cutoff: %w", err)
	}
	defer rows.Close()

	var out []domain.StockTransaction
	for rows.Next() {
		var t domain.StockTransaction
		var qty, price, fees string
		if err := rows.Scan(&t.ExecutionID, &t.Strategy, &t.Symbol, &t.PrimaryExchange, &qty, &price, &fees, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan stock transaction: %w", err)
		}
		t.Quantity, _ = decimal.NewFromString(qty)
		t.Price, _ = decimal.NewFromString(price)
		t.Fees, _ = decimal.NewFromString(fees)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListOptionBefore mirrors ListStockBefore for option transactions.
func (s *TransactionStore) ListOptionBefore(ctx context.Context, cutoff time.Time) ([]domain.OptionTransaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT execution_id, strategy, symbol, expiry, strike, right, quantity, price, fees, executed_at
		 FROM option_transactions WHERE executed_at < $1 ORDER BY executed_at`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list option transactions before cutoff: %w", err)
	}
	defer rows.Close()

	var out []domain.OptionTransaction
	for rows.Next() {
		var t domain.OptionTransaction
		var qty, price, fees, right string
		if err := rows.Scan(&t.ExecutionID, &t.Strategy, &t.Symbol, &t.Expiry, &t.Strike, &right, &qty, &price, &fees, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan option transaction: %w", err)
		}
		t.Right = domain.OptionType(right)
		t.Quantity, _ = decimal.NewFromString(qty)
		t.Price, _ = decimal.NewFromString(price)
		t.Fees, _ = decimal.NewFromString(fees)
		out = append(out, t)
	}
	return out, rows.Err()
}
