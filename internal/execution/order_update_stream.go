package execution

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/jarrettlin/execcore/internal/domain"
)

// onNewOrderSubmitted materializes a freshly-accepted broker order: it
// resolves the owning strategy (from order_map if this process placed the
// order, or from contract_to_strategy if it predates the session), records
// the order in order_map, and creates the open-order row the attribution
// pipeline will look up fills against. Matches the original
// on_new_order_submitted handler: quantity is stored signed (+buy,
// -sell), filled starts at zero, and executions starts empty.
func onNewOrderSubmitted(ctx context.Context, e *OrderEngine, s domain.SubmittedOrder) {
	// An order this process placed already has its order_map entry from
	// place_order, written the instant the broker acked it. Only an order
	// discovered here with no such entry predates this session, so only
	// then does ownership fall back to contract_to_strategy's priority
	// tie-break.
	e.orderMu.RLock()
	entry, known := e.orderMap[s.PermID]
	e.orderMu.RUnlock()

	owner := entry.Strategy
	if !known {
		owner = e.StrategyFor(s.Contract.Key())
		if owner == "" {
			e.logger.WarnContext(ctx, "submitted order for contract with no owning strategy, routing to unknown",
				slog.String("symbol", s.Contract.Symbol), slog.Int64("perm_id", s.PermID))
			owner = UnknownStrategy
		}

		e.orderMu.Lock()
		e.orderMap[s.PermID] = domain.OrderMapEntry{
			Strategy: owner,
			Contract: s.Contract,
			Action:   s.Action,
			Quantity: s.Quantity,
		}
		e.orderMu.Unlock()
	}

	signedQty := s.Quantity.Mul(decimal.NewFromInt(int64(s.Action.Sign())))

	var err error
	if s.Contract.SecType == domain.AssetTypeOption {
		err = e.optionOrders.CreateOrIgnore(ctx, domain.OpenOptionOrder{
			PermID: s.PermID, OrderID: s.OrderID, Strategy: owner,
			Symbol: s.Contract.Symbol, Expiry: s.Contract.Expiry, Strike: s.Contract.Strike, Right: s.Contract.Right,
			Action: s.Action, Quantity: signedQty, LimitPrice: s.Limit,
			Filled: decimal.Zero, Executions: []string{},
		})
	} else {
		err = e.stockOrders.CreateOrIgnore(ctx, domain.OpenStockOrder{
			PermID: s.PermID, OrderID: s.OrderID, Strategy: owner,
			Symbol: s.Contract.Symbol, PrimaryExchange: s.Contract.PrimaryExchange,
			Action: s.Action, Quantity: signedQty, LimitPrice: s.Limit,
			Filled: decimal.Zero, Executions: []string{},
		})
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to create open order row",
			slog.Int64("perm_id", s.PermID), slog.String("error", err.Error()))
	}
}
