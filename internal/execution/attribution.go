// Package execution implements the Execution Attribution pipeline and the
// Order Engine: the two components that turn broker events into
// strategy-scoped position and transaction state.
package execution

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jarrettlin/execcore/internal/domain"
)

// UnknownStrategy is the bucket orphaned fills are attributed to: fills
// that reference a perm_id/order_id this process has no open-order record
// for, typically because the order was placed before this process started
// or by another process entirely.
const UnknownStrategy = "unknown"

// Attribution is the Execution Attribution pipeline (component C): for
// every fill it looks up the owning open order, applies the fill
// idempotently, and updates the owning strategy's position using a
// weighted-average-price rule. Fills with no matching open order are
// routed to UnknownStrategy rather than dropped.
type Attribution struct {
	stockOrders     domain.StockOrderStore
	optionOrders    domain.OptionOrderStore
	stockPositions  domain.StockPositionStore
	optionPositions domain.OptionPositionStore
	transactions    domain.TransactionStore
	logger          *slog.Logger
}

func NewAttribution(
	stockOrders domain.StockOrderStore,
	optionOrders domain.OptionOrderStore,
	stockPositions domain.StockPositionStore,
	optionPositions domain.OptionPositionStore,
	transactions domain.TransactionStore,
	logger *slog.Logger,
) *Attribution {
	return &Attribution{
		stockOrders:     stockOrders,
		optionOrders:    optionOrders,
		stockPositions:  stockPositions,
		optionPositions: optionPositions,
		transactions:    transactions,
		logger:          logger.With(slog.String("component", "attribution")),
	}
}

// applyFill folds one signed fill into (curQty, curAvg) using the
// weighted-average-price rule: same-direction fills average into the
// existing position; opposite-direction fills reduce it at the existing
// average, and only once the fill's magnitude exceeds the remaining
// position does the surplus re-open the position at the fill's own price.
func applyFill(curQty, curAvg, fillQtySigned, fillPrice decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if curQty.IsZero() {
		return fillQtySigned, fillPrice
	}

	sameDirection := curQty.Sign() == fillQtySigned.Sign()
	newQty := curQty.Add(fillQtySigned)

	if sameDirection {
		if newQty.IsZero() {
			return newQty, decimal.Zero
		}
		weighted := curQty.Abs().Mul(curAvg).Add(fillQtySigned.Abs().Mul(fillPrice))
		return newQty, weighted.Div(newQty.Abs())
	}

	// Opposing fill: reduces the position at the existing average price.
	if newQty.IsZero() || newQty.Sign() == curQty.Sign() {
		if newQty.IsZero() {
			return newQty, decimal.Zero
		}
		return newQty, curAvg
	}
	// The fill's magnitude exceeded the open position: the surplus opens a
	// new position in the opposite direction, priced at the fill.
	return newQty, fillPrice
}

// ApplyStockExecution attributes one stock fill.
func (a *Attribution) ApplyStockExecution(ctx context.Context, exec domain.ExecutionData) error {
	openOrder, err := a.stockOrders.GetByPermID(ctx, exec.PermID, exec.OrderID)
	if errors.Is(err, domain.ErrNotFound) {
		return a.applyOrphanStock(ctx, exec)
	}
	if err != nil {
		return err
	}

	if openOrder.HasExecution(exec.ExecutionID) {
		a.logger.DebugContext(ctx, "duplicate execution ignored",
			slog.String("execution_id", exec.ExecutionID), slog.Int64("perm_id", exec.PermID))
		return nil
	}

	if !exec.Shares.Equal(exec.CumulativeQty.Sub(openOrder.Filled.Abs())) {
		a.logger.WarnContext(ctx, "fill shares do not match cumulative delta, proceeding with broker cumulative",
			slog.String("execution_id", exec.ExecutionID),
			slog.String("shares", exec.Shares.String()),
			slog.String("cumulative", exec.CumulativeQty.String()),
			slog.String("prior_filled", openOrder.Filled.String()),
		)
	}

	signedQty := exec.Shares.Mul(decimal.NewFromInt(int64(exec.Action.Sign())))

	// The open-order update/delete, the transaction insert, and the
	// position update touch disjoint keys, so all three are launched
	// together rather than awaited one at a time.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if exec.CumulativeQty.GreaterThanOrEqual(openOrder.Quantity.Abs()) {
			return a.stockOrders.Delete(gctx, exec.PermID, exec.OrderID)
		}
		// Filled carries the order's direction, like Quantity.
		openOrder.Filled = exec.CumulativeQty.Mul(decimal.NewFromInt(int64(exec.Action.Sign())))
		openOrder.Executions = append(openOrder.Executions, exec.ExecutionID)
		return a.stockOrders.Update(gctx, openOrder)
	})
	g.Go(func() error {
		return a.transactions.InsertStock(gctx, domain.StockTransaction{
			ExecutionID:     exec.ExecutionID,
			Strategy:        openOrder.Strategy,
			Symbol:          exec.Contract.Symbol,
			PrimaryExchange: exec.Contract.PrimaryExchange,
			Quantity:        signedQty,
			Price:           exec.Price,
			Fees:            decimal.Zero,
			ExecutedAt:      exec.ExecutedAt,
		})
	})
	g.Go(func() error {
		return a.updateStockPosition(gctx, openOrder.Strategy, exec.Contract, signedQty, exec.Price)
	})
	return g.Wait()
}

func (a *Attribution) applyOrphanStock(ctx context.Context, exec domain.ExecutionData) error {
	signedQty := exec.Shares.Mul(decimal.NewFromInt(int64(exec.Action.Sign())))
	a.logger.WarnContext(ctx, "execution has no matching open order, routing to unknown",
		slog.String("execution_id", exec.ExecutionID), slog.Int64("perm_id", exec.PermID))

	if err := a.transactions.InsertStock(ctx, domain.StockTransaction{
		ExecutionID:     exec.ExecutionID,
		Strategy:        UnknownStrategy,
		Symbol:          exec.Contract.Symbol,
		PrimaryExchange: exec.Contract.PrimaryExchange,
		Quantity:        signedQty,
		Price:           exec.Price,
		Fees:            decimal.Zero,
		ExecutedAt:      exec.ExecutedAt,
	}); err != nil {
		return err
	}
	return a.updateStockPosition(ctx, UnknownStrategy, exec.Contract, signedQty, exec.Price)
}

func (a *Attribution) updateStockPosition(ctx context.Context, strategyName string, contract domain.Contract, signedQty, price decimal.Decimal) error {
	current, err := a.stockPositions.GetCurrent(ctx, strategyName, contract.Symbol, contract.PrimaryExchange)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	newQty, newAvg := applyFill(current.Quantity, current.AvgPrice, signedQty, price)
	return a.stockPositions.UpsertCurrent(ctx, domain.CurrentStockPosition{
		Strategy: strategyName, Symbol: contract.Symbol, PrimaryExchange: contract.PrimaryExchange,
		Quantity: newQty, AvgPrice: newAvg,
	})
}

// ApplyOptionExecution mirrors ApplyStockExecution for option contracts.
func (a *Attribution) ApplyOptionExecution(ctx context.Context, exec domain.ExecutionData) error {
	openOrder, err := a.optionOrders.GetByPermID(ctx, exec.PermID, exec.OrderID)
	if errors.Is(err, domain.ErrNotFound) {
		return a.applyOrphanOption(ctx, exec)
	}
	if err != nil {
		return err
	}

	if openOrder.HasExecution(exec.ExecutionID) {
		a.logger.DebugContext(ctx, "duplicate option execution ignored",
			slog.String("execution_id", exec.ExecutionID), slog.Int64("perm_id", exec.PermID))
		return nil
	}

	if !exec.Shares.Equal(exec.CumulativeQty.Sub(openOrder.Filled.Abs())) {
		a.logger.WarnContext(ctx, "option fill shares do not match cumulative delta, proceeding with broker cumulative",
			slog.String("execution_id", exec.ExecutionID))
	}

	signedQty := exec.Shares.Mul(decimal.NewFromInt(int64(exec.Action.Sign())))
	optKey := domain.OptionKey{Symbol: exec.Contract.Symbol, Expiry: exec.Contract.Expiry, Strike: exec.Contract.Strike, Right: exec.Contract.Right}

	// Same disjoint-key fan-out as ApplyStockExecution.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if exec.CumulativeQty.GreaterThanOrEqual(openOrder.Quantity.Abs()) {
			return a.optionOrders.Delete(gctx, exec.PermID, exec.OrderID)
		}
		openOrder.Filled = exec.CumulativeQty.Mul(decimal.NewFromInt(int64(exec.Action.Sign())))
		openOrder.Executions = append(openOrder.Executions, exec.ExecutionID)
		return a.optionOrders.Update(gctx, openOrder)
	})
	g.Go(func() error {
		return a.transactions.InsertOption(gctx, domain.OptionTransaction{
			ExecutionID: exec.ExecutionID,
			Strategy:    openOrder.Strategy,
			Symbol:      exec.Contract.Symbol,
			Expiry:      exec.Contract.Expiry,
			Strike:      exec.Contract.Strike,
			Right:       exec.Contract.Right,
			Quantity:    signedQty,
			Price:       exec.Price,
			Fees:        decimal.Zero,
			ExecutedAt:  exec.ExecutedAt,
		})
	})
	g.Go(func() error {
		return a.updateOptionPosition(gctx, openOrder.Strategy, optKey, signedQty, exec.Price)
	})
	return g.Wait()
}

func (a *Attribution) applyOrphanOption(ctx context.Context, exec domain.ExecutionData) error {
	signedQty := exec.Shares.Mul(decimal.NewFromInt(int64(exec.Action.Sign())))
	optKey := domain.OptionKey{Symbol: exec.Contract.Symbol, Expiry: exec.Contract.Expiry, Strike: exec.Contract.Strike, Right: exec.Contract.Right}

	a.logger.WarnContext(ctx, "option execution has no matching open order, routing to unknown",
		slog.String("execution_id", exec.ExecutionID), slog.Int64("perm_id", exec.PermID))

	if err := a.transactions.InsertOption(ctx, domain.OptionTransaction{
		ExecutionID: exec.ExecutionID,
		Strategy:    UnknownStrategy,
		Symbol:      exec.Contract.Symbol,
		Expiry:      exec.Contract.Expiry,
		Strike:      exec.Contract.Strike,
		Right:       exec.Contract.Right,
		Quantity:    signedQty,
		Price:       exec.Price,
		Fees:        decimal.Zero,
		ExecutedAt:  exec.ExecutedAt,
	}); err != nil {
		return err
	}
	return a.updateOptionPosition(ctx, UnknownStrategy, optKey, signedQty, exec.Price)
}

func (a *Attribution) updateOptionPosition(ctx context.Context, strategyName string, key domain.OptionKey, signedQty, price decimal.Decimal) error {
	current, err := a.optionPositions.GetCurrent(ctx, strategyName, key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	newQty, newAvg := applyFill(current.Quantity, current.AvgPrice, signedQty, price)
	return a.optionPositions.UpsertCurrent(ctx, domain.CurrentOptionPosition{
		Strategy: strategyName, Symbol: key.Symbol, Expiry: key.Expiry, Strike: key.Strike, Right: key.Right,
		Quantity: newQty, AvgPrice: newAvg,
	})
}

// Apply dispatches a fill by asset type, the entry point the order engine's
// execution stream consumer calls for every ExecutionData event.
func (a *Attribution) Apply(ctx context.Context, exec domain.ExecutionData) error {
	if exec.Contract.SecType == domain.AssetTypeOption {
		return a.ApplyOptionExecution(ctx, exec)
	}
	return a.ApplyStockExecution(ctx, exec)
}
