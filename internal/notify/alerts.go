package notify

import (
	"context"
	"fmt"
)

// Event types the engine raises through Notifier.Notify. Operators
// configure which of these they want delivered via the events list passed
// to NewNotifier; an empty list lets everything through.
const (
	EventDataGap             = "data_gap"
	EventBrokerStreamStalled = "broker_stream_stalled"
	EventBootstrapFailure    = "bootstrap_failure"
)

// Dedup suppresses repeat delivery of the same alert key within a window.
// Satisfied by internal/cache/redis.AlertDedup; nil disables suppression.
type Dedup interface {
	ShouldSend(ctx context.Context, key string) (bool, error)
}

// Alerts wraps a Notifier with the engine-health vocabulary: data gaps
// detected during backfill, a broker stream that stopped delivering events,
// and bootstrap failures that prevented the coordinator from starting.
type Alerts struct {
	notifier *Notifier
	dedup    Dedup
}

func NewAlerts(notifier *Notifier, dedup Dedup) *Alerts {
	return &Alerts{notifier: notifier, dedup: dedup}
}

func (a *Alerts) send(ctx context.Context, dedupKey, event, title, message string) error {
	if a.dedup != nil {
		ok, err := a.dedup.ShouldSend(ctx, dedupKey)
		if err != nil {
			return fmt.Errorf("notify: dedup check for %s: %w", dedupKey, err)
		}
		if !ok {
			return nil
		}
	}
	return a.notifier.Notify(ctx, event, title, message)
}

// DataGap reports a detected gap in a contract's bar history that backfill
// could not close.
func (a *Alerts) DataGap(ctx context.Context, symbol, primaryExchange string, missingBars int) error {
	key := fmt.Sprintf("data_gap:%s:%s", symbol, primaryExchange)
	return a.send(ctx, key, EventDataGap, "Data gap detected",
		fmt.Sprintf("%s/%s is missing %d bars and backfill did not close the gap", symbol, primaryExchange, missingBars))
}

// BrokerStreamStalled reports a broker event stream (execution, order
// update, or position) that closed or stopped delivering events.
func (a *Alerts) BrokerStreamStalled(ctx context.Context, streamName string, err error) error {
	key := "broker_stream_stalled:" + streamName
	return a.send(ctx, key, EventBrokerStreamStalled, "Broker stream stalled",
		fmt.Sprintf("%s stream ended unexpectedly: %v", streamName, err))
}

// BootstrapFailure reports a failure during coordinator startup severe
// enough to prevent the process from reaching steady state. Bootstrap
// failures are never deduplicated: each restart attempt should be visible.
func (a *Alerts) BootstrapFailure(ctx context.Context, stage string, err error) error {
	return a.notifier.NotifyAll(ctx, "Bootstrap failure",
		fmt.Sprintf("coordinator failed to start during %s: %v", stage, err))
}
