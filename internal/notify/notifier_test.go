package notify

import (
	"context"
	"errors"
	"testing"
)

func TestNotifyFiltersUnconfiguredEvents(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier([]Sender{sender}, []string{EventDataGap}, discardLogger())

	if err := n.Notify(context.Background(), EventBrokerStreamStalled, "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("event not in the allowed list should be filtered, got %v", sender.sent)
	}

	if err := n.Notify(context.Background(), EventDataGap, "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("event in the allowed list should be delivered, got %v", sender.sent)
	}
}

func TestNotifyAllowsEverythingWhenEventsEmpty(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier([]Sender{sender}, nil, discardLogger())

	if err := n.Notify(context.Background(), "anything", "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("an empty allow-list should let every event through, got %v", sender.sent)
	}
}

func TestNotifyAllBypassesEventFilter(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier([]Sender{sender}, []string{EventDataGap}, discardLogger())

	if err := n.NotifyAll(context.Background(), "t", "m"); err != nil {
		t.Fatalf("NotifyAll: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("NotifyAll should ignore the event filter, got %v", sender.sent)
	}
}

func TestDispatchAggregatesSenderErrorsWithoutStoppingOthers(t *testing.T) {
	failing := &fakeSender{err: errors.New("network down")}
	ok := &fakeSender{}
	n := NewNotifier([]Sender{failing, ok}, nil, discardLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	if err == nil {
		t.Fatal("expected an aggregated error from the failing sender")
	}
	if len(ok.sent) != 1 {
		t.Error("a failing sender must not prevent delivery to the remaining senders")
	}
}

func TestDispatchWithNoSendersIsANoop(t *testing.T) {
	n := NewNotifier(nil, nil, discardLogger())
	if err := n.NotifyAll(context.Background(), "t", "m"); err != nil {
		t.Fatalf("NotifyAll with no senders should not error, got %v", err)
	}
}
