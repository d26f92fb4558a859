package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jarrettlin/execcore/internal/domain"
)

// StockOrderStore implements domain.StockOrderStore: the working set of
// open stock orders the order engine reconciles against.
type StockOrderStore struct {
	pool *pgxpool.Pool
}

func NewStockOrderStore(pool *pgxpool.Pool) *StockOrderStore {
	return &StockOrderStore{pool: pool}
}

const stockOrderSelectCols = `perm_id, order_id, strategy, symbol, primary_exchange, action, quantity, limit_price, filled, executions, created_at`

func scanStockOrder(row pgx.Row) (domain.OpenStockOrder, error) {
	var o domain.OpenStockOrder
	var action, qty, limit, filled string
	if err := row.Scan(&o.PermID, &o.OrderID, &o.Strategy, &o.Symbol, &o.PrimaryExchange,
		&action, &qty, &limit, &filled, &o.Executions, &o.CreatedAt); err != nil {
		return domain.OpenStockOrder{}, err
	}
	o.Action = domain.OrderAction(action)
	o.Quantity, _ = decimal.NewFromString(qty)
	o.LimitPrice, _ = decimal.NewFromString(limit)
	o.Filled, _ = decimal.NewFromString(filled)
	return o, nil
}

// CreateOrIgnore inserts a new open order row, silently doing nothing if
// one already exists for (perm_id, order_id) — matches the broker's
// tendency to redeliver the initial "submitted" event on reconnect.
func (s *StockOrderStore) CreateOrIgnore(ctx context.Context, o domain.OpenStockOrder) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO open_stock_orders (perm_id, order_id, strategy, symbol, primary_exchange, action, quantity, limit_price, filled, executions, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		 ON CONFLICT (perm_id, order_id) DO NOTHING`,
		o.PermID, o.OrderID, o.Strategy, o.Symbol, o.PrimaryExchange,
		string(o.Action), o.Quantity.String(), o.LimitPrice.String(), o.Filled.String(), o.Executions,
	)
	if err != nil {
		return fmt.Errorf("postgres: create open stock order: %w", err)
	}
	return nil
}

// Update overwrites filled quantity and executions for an existing order,
// the write path for each applied fill.
func (s *StockOrderStore) Update(ctx context.Context, o domain.OpenStockOrder) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE open_stock_orders SET filled = $3, executions = $4
		 WHERE perm_id = $1 AND order_id = $2`,
		o.PermID, o.OrderID, o.Filled.String(), o.Executions,
	)
	if err != nil {
		return fmt.Errorf("postgres: update open stock order: %w", err)
	}
	return nil
}

func (s *StockOrderStore) Delete(ctx context.Context, permID, orderID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM open_stock_orders WHERE perm_id = $1 AND order_id = $2`, permID, orderID)
	if err != nil {
		return fmt.Errorf("postgres: delete open stock order: %w", err)
	}
	return nil
}

func (s *StockOrderStore) GetByPermID(ctx context.Context, permID, orderID int64) (domain.OpenStockOrder, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM open_stock_orders WHERE perm_id = $1 AND order_id = $2`, stockOrderSelectCols),
		permID, orderID,
	)
	o, err := scanStockOrder(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.OpenStockOrder{}, domain.ErrNotFound
		}
		return domain.OpenStockOrder{}, fmt.Errorf("postgres: get open stock order: %w", err)
	}
	return o, nil
}

func (s *StockOrderStore) ListByStrategyContract(ctx context.Context, strategy, symbol, primaryExchange string) ([]domain.OpenStockOrder, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM open_stock_orders WHERE strategy = $1 AND symbol = $2 AND primary_exchange = $3`, stockOrderSelectCols),
		strategy, symbol, primaryExchange,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open stock orders: %w", err)
	}
	defer rows.Close()

	var out []domain.OpenStockOrder
	for rows.Next() {
		o, err := scanStockOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan open stock order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *StockOrderStore) ListAll(ctx context.Context) ([]domain.OpenStockOrder, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM open_stock_orders`, stockOrderSelectCols))
	if err != nil {
		return nil, fmt.Errorf("postgres: list all open stock orders: %w", err)
	}
	defer rows.Close()

	var out []domain.OpenStockOrder
	for rows.Next() {
		o, err := scanStockOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan open stock order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// OptionOrderStore implements domain.OptionOrderStore.
type OptionOrderStore struct {
	pool *pgxpool.Pool
}

func NewOptionOrderStore(pool *pgxpool.Pool) *OptionOrderStore {
	return &OptionOrderStore{pool: pool}
}

const optionOrderSelectCols = `perm_id, order_id, strategy, symbol, expiry, strike, right, action, quantity, limit_price, filled, executions, created_at`

func scanOptionOrder(row pgx.Row) (domain.OpenOptionOrder, error) {
	var o domain.OpenOptionOrder
	var action, qty, limit, filled, right string
	if err := row.Scan(&o.PermID, &o.OrderID, &o.Strategy, &o.Symbol, &o.Expiry, &o.Strike, &right,
		&action, &qty, &limit, &filled, &o.Executions, &o.CreatedAt); err != nil {
		return domain.OpenOptionOrder{}, err
	}
	o.Right = domain.OptionType(right)
	o.Action = domain.OrderAction(action)
	o.Quantity, _ = decimal.NewFromString(qty)
	o.LimitPrice, _ = decimal.NewFromString(limit)
	o.Filled, _ = decimal.NewFromString(filled)
	return o, nil
}

func (s *OptionOrderStore) CreateOrIgnore(ctx context.Context, o domain.OpenOptionOrder) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO open_option_orders (perm_id, order_id, strategy, symbol, expiry, strike, right, action, quantity, limit_price, filled, executions, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		 ON CONFLICT (perm_id, order_id) DO NOTHING`,
		o.PermID, o.OrderID, o.Strategy, o.Symbol, o.Expiry, o.Strike, string(o.Right),
		string(o.Action), o.Quantity.String(), o.LimitPrice.String(), o.Filled.String(), o.Executions,
	)
	if err != nil {
		return fmt.Errorf("postgres: create open option order: %w", err)
	}
	return nil
}

func (s *OptionOrderStore) Update(ctx context.Context, o domain.OpenOptionOrder) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE open_option_orders SET filled = $3, executions = $4
		 WHERE perm_id = $1 AND order_id = $2`,
		o.PermID, o.OrderID, o.Filled.String(), o.Executions,
	)
	if err != nil {
		return fmt.Errorf("postgres: update open option order: %w", err)
	}
	return nil
}

func (s *OptionOrderStore) Delete(ctx context.Context, permID, orderID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM open_option_orders WHERE perm_id = $1 AND order_id = $2`, permID, orderID)
	if err != nil {
		return fmt.Errorf("postgres: delete open option order: %w", err)
	}
	return nil
}

func (s *OptionOrderStore) GetByPermID(ctx context.Context, permID, orderID int64) (domain.OpenOptionOrder, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM open_option_orders WHERE perm_id = $1 AND order_id = $2`, optionOrderSelectCols),
		permID, orderID,
	)
	o, err := scanOptionOrder(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.OpenOptionOrder{}, domain.ErrNotFound
		}
		return domain.OpenOptionOrder{}, fmt.Errorf("postgres: get open option order: %w", err)
	}
	return o, nil
}

func (s *OptionOrderStore) ListByStrategyContract(ctx context.Context, strategy string, key domain.OptionKey) ([]domain.OpenOptionOrder, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM open_option_orders WHERE strategy = $1 AND symbol = $2 AND expiry = $3 AND strike = $4 AND right = $5`, optionOrderSelectCols),
		strategy, key.Symbol, key.Expiry, key.Strike, string(key.Right),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open option orders: %w", err)
	}
	defer rows.Close()

	var out []domain.OpenOptionOrder
	for rows.Next() {
		o, err := scanOptionOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan open option order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *OptionOrderStore) ListAll(ctx context.Context) ([]domain.OpenOptionOrder, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM open_option_orders`, optionOrderSelectCols))
	if err != nil {
		return nil, fmt.Errorf("postgres: list all open option orders: %w", err)
	}
	defer rows.Close()

	var out []domain.OpenOptionOrder
	for rows.Next() {
		o, err := scanOptionOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan open option order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
