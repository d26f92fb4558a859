package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type fakeSender struct {
	sent []string
	err  error
}

func (s *fakeSender) Send(ctx context.Context, title, message string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, title)
	return nil
}

func (s *fakeSender) Name() string { return "fake" }

type fakeDedup struct {
	allow map[string]bool
	err   error
	calls []string
}

func (d *fakeDedup) ShouldSend(ctx context.Context, key string) (bool, error) {
	d.calls = append(d.calls, key)
	if d.err != nil {
		return false, d.err
	}
	if d.allow == nil {
		return true, nil
	}
	return d.allow[key], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDataGapSuppressedByDedup(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewNotifier([]Sender{sender}, nil, discardLogger())
	dedup := &fakeDedup{allow: map[string]bool{}}
	alerts := NewAlerts(notifier, dedup)

	if err := alerts.DataGap(context.Background(), "AAPL", "NASDAQ", 12); err != nil {
		t.Fatalf("DataGap: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected the dedup window to suppress delivery, got %v", sender.sent)
	}
	if len(dedup.calls) != 1 || dedup.calls[0] != "data_gap:AAPL:NASDAQ" {
		t.Errorf("unexpected dedup key(s): %v", dedup.calls)
	}
}

func TestDataGapDeliveredWhenDedupAllows(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewNotifier([]Sender{sender}, nil, discardLogger())
	dedup := &fakeDedup{allow: map[string]bool{"data_gap:AAPL:NASDAQ": true}}
	alerts := NewAlerts(notifier, dedup)

	if err := alerts.DataGap(context.Background(), "AAPL", "NASDAQ", 12); err != nil {
		t.Fatalf("DataGap: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("expected delivery, got %v", sender.sent)
	}
}

func TestBrokerStreamStalledUsesPerStreamDedupKey(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewNotifier([]Sender{sender}, nil, discardLogger())
	dedup := &fakeDedup{allow: map[string]bool{"broker_stream_stalled:execution": true}}
	alerts := NewAlerts(notifier, dedup)

	if err := alerts.BrokerStreamStalled(context.Background(), "execution", errors.New("eof")); err != nil {
		t.Fatalf("BrokerStreamStalled: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("expected delivery, got %v", sender.sent)
	}
}

func TestBootstrapFailureIsNeverDeduplicated(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewNotifier([]Sender{sender}, nil, discardLogger())
	dedup := &fakeDedup{allow: map[string]bool{}} // would suppress everything through send()
	alerts := NewAlerts(notifier, dedup)

	if err := alerts.BootstrapFailure(context.Background(), "wire", errors.New("db unreachable")); err != nil {
		t.Fatalf("BootstrapFailure: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("bootstrap failures must bypass dedup, got %v", sender.sent)
	}
	if len(dedup.calls) != 0 {
		t.Errorf("BootstrapFailure should never consult dedup, got %v", dedup.calls)
	}
}

func TestDedupErrorPropagates(t *testing.T) {
	notifier := NewNotifier([]Sender{&fakeSender{}}, nil, discardLogger())
	dedup := &fakeDedup{err: errors.New("redis down")}
	alerts := NewAlerts(notifier, dedup)

	if err := alerts.DataGap(context.Background(), "AAPL", "NASDAQ", 1); err == nil {
		t.Fatal("expected the dedup error to propagate")
	}
}

func TestNilDedupNeverSuppresses(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewNotifier([]Sender{sender}, nil, discardLogger())
	alerts := NewAlerts(notifier, nil)

	if err := alerts.DataGap(context.Background(), "AAPL", "NASDAQ", 1); err != nil {
		t.Fatalf("DataGap: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("a nil dedup should never suppress delivery, got %v", sender.sent)
	}
}
