package execution

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/jarrettlin/execcore/internal/broker"
	"github.com/jarrettlin/execcore/internal/domain"
)

// openOrderView is the minimal shape diffAction needs from either asset
// type's open-order rows.
type openOrderView struct {
	PermID   int64
	OrderID  int64
	Quantity decimal.Decimal // signed
	Filled   decimal.Decimal // signed, same direction as Quantity
}

// diffOutcome is what the caller must do after comparing the strategy's
// target diff against its currently working orders for one contract.
type diffOutcome int

const (
	diffNone diffOutcome = iota
	diffCancelAll
	diffReplace // cancel all, place one order for the full abs(qtyDiff)
	diffTopUp   // place one additional order for the undershoot
)

// diffAction implements the target-diff order-placement algorithm
// (spec §4.D.5): given the total signed quantity a strategy still needs to
// reach its target (qtyDiff) and its currently working orders for the same
// contract, it decides whether to leave things alone, cancel everything,
// replace with a single new order, or top up with one additional order.
func diffAction(qtyDiff decimal.Decimal, orders []openOrderView, logger *slog.Logger) (outcome diffOutcome, placeQty decimal.Decimal) {
	if qtyDiff.IsZero() {
		if len(orders) > 0 {
			return diffCancelAll, decimal.Zero
		}
		return diffNone, decimal.Zero
	}

	if len(orders) == 0 {
		return diffReplace, qtyDiff.Abs()
	}

	quantitySum := decimal.Zero
	filledSum := decimal.Zero
	firstSign := 0
	mismatched := false
	for _, o := range orders {
		quantitySum = quantitySum.Add(o.Quantity)
		filledSum = filledSum.Add(o.Filled)
		sign := o.Quantity.Sign()
		if firstSign == 0 {
			firstSign = sign
		} else if sign != 0 && sign != firstSign {
			mismatched = true
		}
	}
	if mismatched && logger != nil {
		logger.Error("open orders for contract are not all in the same direction, proceeding with aggregate")
	}

	currentOpenRemaining := quantitySum.Sub(filledSum)

	wrongDirection := currentOpenRemaining.Sign() != 0 && qtyDiff.Sign() != 0 && currentOpenRemaining.Sign() != qtyDiff.Sign()
	overshoot := !wrongDirection && currentOpenRemaining.Abs().GreaterThan(qtyDiff.Abs())

	if wrongDirection || overshoot {
		return diffReplace, qtyDiff.Abs()
	}

	undershoot := qtyDiff.Sub(currentOpenRemaining)
	if undershoot.IsZero() {
		return diffNone, decimal.Zero
	}
	return diffTopUp, undershoot.Abs()
}

func orderAction(signedQty decimal.Decimal) domain.OrderAction {
	if signedQty.Sign() < 0 {
		return domain.OrderActionSell
	}
	return domain.OrderActionBuy
}

// ReconcileStockTarget diffs a strategy's target stock position against its
// current position and working orders for one contract, and places,
// replaces, or cancels orders as needed.
func (e *OrderEngine) ReconcileStockTarget(ctx context.Context, strategyName string, contract domain.Contract, target domain.TargetStockPosition, current domain.CurrentStockPosition) error {
	qtyDiff := target.Quantity.Sub(current.Quantity)

	openOrders, err := e.stockOrders.ListByStrategyContract(ctx, strategyName, contract.Symbol, contract.PrimaryExchange)
	if err != nil {
		return err
	}
	views := make([]openOrderView, len(openOrders))
	for i, o := range openOrders {
		views[i] = openOrderView{PermID: o.PermID, OrderID: o.OrderID, Quantity: o.Quantity, Filled: o.Filled}
	}

	outcome, placeQty := diffAction(qtyDiff, views, e.logger)

	switch outcome {
	case diffNone:
		return nil
	case diffCancelAll:
		return e.cancelStockOrders(ctx, openOrders)
	case diffReplace:
		if err := e.cancelStockOrders(ctx, openOrders); err != nil {
			return err
		}
		return e.placeOrderWithRetry(ctx, strategyName, broker.OrderRequest{
			Contract: contract, Action: orderAction(qtyDiff), Quantity: placeQty, Limit: target.LimitPrice,
		})
	case diffTopUp:
		return e.placeOrderWithRetry(ctx, strategyName, broker.OrderRequest{
			Contract: contract, Action: orderAction(qtyDiff), Quantity: placeQty, Limit: target.LimitPrice,
		})
	}
	return nil
}

func (e *OrderEngine) cancelStockOrders(ctx context.Context, orders []domain.OpenStockOrder) error {
	for _, o := range orders {
		if err := e.broker.CancelOrder(ctx, o.PermID, o.OrderID); err != nil {
			e.logger.ErrorContext(ctx, "cancel order failed", slog.Int64("perm_id", o.PermID), slog.String("error", err.Error()))
			continue
		}
		if err := e.stockOrders.Delete(ctx, o.PermID, o.OrderID); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileOptionTarget mirrors ReconcileStockTarget for option contracts.
func (e *OrderEngine) ReconcileOptionTarget(ctx context.Context, strategyName string, contract domain.Contract, target domain.TargetOptionPosition, current domain.CurrentOptionPosition) error {
	qtyDiff := target.Quantity.Sub(current.Quantity)
	key := domain.OptionKey{Symbol: contract.Symbol, Expiry: contract.Expiry, Strike: contract.Strike, Right: contract.Right}

	openOrders, err := e.optionOrders.ListByStrategyContract(ctx, strategyName, key)
	if err != nil {
		return err
	}
	views := make([]openOrderView, len(openOrders))
	for i, o := range openOrders {
		views[i] = openOrderView{PermID: o.PermID, OrderID: o.OrderID, Quantity: o.Quantity, Filled: o.Filled}
	}

	outcome, placeQty := diffAction(qtyDiff, views, e.logger)

	switch outcome {
	case diffNone:
		return nil
	case diffCancelAll:
		return e.cancelOptionOrders(ctx, openOrders)
	case diffReplace:
		if err := e.cancelOptionOrders(ctx, openOrders); err != nil {
			return err
		}
		return e.placeOrderWithRetry(ctx, strategyName, broker.OrderRequest{
			Contract: contract, Action: orderAction(qtyDiff), Quantity: placeQty, Limit: target.LimitPrice,
		})
	case diffTopUp:
		return e.placeOrderWithRetry(ctx, strategyName, broker.OrderRequest{
			Contract: contract, Action: orderAction(qtyDiff), Quantity: placeQty, Limit: target.LimitPrice,
		})
	}
	return nil
}

func (e *OrderEngine) cancelOptionOrders(ctx context.Context, orders []domain.OpenOptionOrder) error {
	for _, o := range orders {
		if err := e.broker.CancelOrder(ctx, o.PermID, o.OrderID); err != nil {
			e.logger.ErrorContext(ctx, "cancel order failed", slog.Int64("perm_id", o.PermID), slog.String("error", err.Error()))
			continue
		}
		if err := e.optionOrders.Delete(ctx, o.PermID, o.OrderID); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileContract diffs a strategy's target against its current position
// for a single contract, the scope Consolidator.dispatch uses when a bar
// update's ignoreContract is false: only the contract that produced the
// bar is re-diffed, not the strategy's whole target set.
func (e *OrderEngine) ReconcileContract(ctx context.Context, strategyName string, contract domain.Contract) error {
	if contract.SecType == domain.AssetTypeOption {
		key := domain.OptionKey{Symbol: contract.Symbol, Expiry: contract.Expiry, Strike: contract.Strike, Right: contract.Right}
		target, err := e.optionPositions.GetTarget(ctx, strategyName, key)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		current, err := e.optionPositions.GetCurrent(ctx, strategyName, key)
		if err != nil {
			current = domain.CurrentOptionPosition{Strategy: strategyName, Symbol: contract.Symbol, Expiry: contract.Expiry, Strike: contract.Strike, Right: contract.Right}
		}
		return e.ReconcileOptionTarget(ctx, strategyName, contract, target, current)
	}

	target, err := e.stockPositions.GetTarget(ctx, strategyName, contract.Symbol, contract.PrimaryExchange)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	current, err := e.stockPositions.GetCurrent(ctx, strategyName, contract.Symbol, contract.PrimaryExchange)
	if err != nil {
		current = domain.CurrentStockPosition{Strategy: strategyName, Symbol: contract.Symbol, PrimaryExchange: contract.PrimaryExchange}
	}
	return e.ReconcileStockTarget(ctx, strategyName, contract, target, current)
}

// ReconcileStrategyTargets runs ReconcileStockTarget/ReconcileOptionTarget
// for every target position a strategy currently has on file. It is the
// entry point a strategy's OnBarUpdate indirectly drives by writing new
// target positions, and what a periodic reconciliation tick re-runs to
// catch targets that changed without a fresh bar.
func (e *OrderEngine) ReconcileStrategyTargets(ctx context.Context, strategyName string) error {
	targets, err := e.stockPositions.ListTargetByStrategy(ctx, strategyName)
	if err != nil {
		return err
	}
	for _, target := range targets {
		current, err := e.stockPositions.GetCurrent(ctx, strategyName, target.Symbol, target.PrimaryExchange)
		if err != nil {
			current = domain.CurrentStockPosition{Strategy: strategyName, Symbol: target.Symbol, PrimaryExchange: target.PrimaryExchange}
		}
		contract := domain.Contract{Symbol: target.Symbol, PrimaryExchange: target.PrimaryExchange, SecType: domain.AssetTypeStock}
		if err := e.ReconcileStockTarget(ctx, strategyName, contract, target, current); err != nil {
			e.logger.ErrorContext(ctx, "reconcile stock target failed",
				slog.String("strategy", strategyName), slog.String("symbol", target.Symbol), slog.String("error", err.Error()))
		}
	}

	optTargets, err := e.optionPositions.ListTargetByStrategy(ctx, strategyName)
	if err != nil {
		return err
	}
	for _, target := range optTargets {
		key := domain.OptionKey{Symbol: target.Symbol, Expiry: target.Expiry, Strike: target.Strike, Right: target.Right}
		current, err := e.optionPositions.GetCurrent(ctx, strategyName, key)
		if err != nil {
			current = domain.CurrentOptionPosition{Strategy: strategyName, Symbol: target.Symbol, Expiry: target.Expiry, Strike: target.Strike, Right: target.Right}
		}
		contract := domain.Contract{Symbol: target.Symbol, SecType: domain.AssetTypeOption, Expiry: target.Expiry, Strike: target.Strike, Right: target.Right}
		if err := e.ReconcileOptionTarget(ctx, strategyName, contract, target, current); err != nil {
			e.logger.ErrorContext(ctx, "reconcile option target failed",
				slog.String("strategy", strategyName), slog.String("symbol", target.Symbol), slog.String("error", err.Error()))
		}
	}
	return nil
}
