package execution

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jarrettlin/execcore/internal/broker"
	"github.com/jarrettlin/execcore/internal/domain"
)

// retryDelay mirrors the fixed pause the original order placement used
// before its single retry attempt.
const retryDelay = 500 * time.Millisecond

// placeOrderWithRetry places req on behalf of strategyName and, on failure,
// makes one retry attempt after retryDelay. It never retries more than
// once; a strategy whose target diff is still unmet after that gets picked
// back up on the next reconciliation pass.
//
// order_map is updated with the broker-assigned perm ID the instant the
// placing ack comes back, before this call returns to its caller. That
// ordering is what lets a race-back order-update-stream event for this
// same order always resolve its owner from order_map instead of falling
// through to contract_to_strategy, which is reserved for orders that
// predate this session.
func (e *OrderEngine) placeOrderWithRetry(ctx context.Context, strategyName string, req broker.OrderRequest) error {
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}

	ack, err := e.broker.PlaceOrder(ctx, req)
	if err == nil {
		e.recordPlacedOrder(ack.PermID, strategyName, req)
		e.logger.InfoContext(ctx, "order placed",
			slog.String("strategy", strategyName), slog.Int64("perm_id", ack.PermID), slog.Int64("order_id", ack.OrderID),
			slog.String("symbol", req.Contract.Symbol), slog.String("action", string(req.Action)), slog.String("quantity", req.Quantity.String()))
		return nil
	}

	e.logger.WarnContext(ctx, "order placement failed, retrying once",
		slog.String("strategy", strategyName), slog.String("symbol", req.Contract.Symbol), slog.String("error", err.Error()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(retryDelay):
	}

	ack, err = e.broker.PlaceOrder(ctx, req)
	if err != nil {
		e.logger.ErrorContext(ctx, "order placement retry failed",
			slog.String("strategy", strategyName), slog.String("symbol", req.Contract.Symbol), slog.String("error", err.Error()))
		return err
	}
	e.recordPlacedOrder(ack.PermID, strategyName, req)
	e.logger.InfoContext(ctx, "order placed on retry",
		slog.String("strategy", strategyName), slog.Int64("perm_id", ack.PermID), slog.Int64("order_id", ack.OrderID), slog.String("symbol", req.Contract.Symbol))
	return nil
}

// recordPlacedOrder inserts permID's order_map entry under strategyName's
// ownership. Called once an order is acknowledged by the broker, it is the
// only writer of this-process-placed entries. onNewOrderSubmitted also
// writes an entry, but only for an order that has none yet (one that
// predates this session), and onOrderCancelled deletes entries.
func (e *OrderEngine) recordPlacedOrder(permID int64, strategyName string, req broker.OrderRequest) {
	e.orderMu.Lock()
	e.orderMap[permID] = domain.OrderMapEntry{
		Strategy: strategyName,
		Contract: req.Contract,
		Action:   req.Action,
		Quantity: req.Quantity,
	}
	e.orderMu.Unlock()
}
