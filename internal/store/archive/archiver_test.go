package archive

import (
	"bufio"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jarrettlin/execcore/internal/domain"
)

type fakeWriter struct {
	paths []string
	bufs  [][]byte
}

func (w *fakeWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	blob, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.paths = append(w.paths, path)
	w.bufs = append(w.bufs, blob)
	return nil
}

func (w *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	return w.Put(ctx, path, data, "")
}

type fakeStockStore struct {
	txs []domain.StockTransaction
	err error
}

func (s *fakeStockStore) ListStockBefore(ctx context.Context, before time.Time) ([]domain.StockTransaction, error) {
	return s.txs, s.err
}

type fakeOptionStore struct {
	txs []domain.OptionTransaction
	err error
}

func (s *fakeOptionStore) ListOptionBefore(ctx context.Context, before time.Time) ([]domain.OptionTransaction, error) {
	return s.txs, s.err
}

type fakeAuditStore struct {
	events []string
	err    error
}

func (a *fakeAuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiveStockTransactionsUploadsAndLogsAudit(t *testing.T) {
	txs := []domain.StockTransaction{
		{ExecutionID: "e1", Strategy: "momentum", Symbol: "AAPL", Quantity: decimal.NewFromInt(100), Price: decimal.NewFromInt(150)},
		{ExecutionID: "e2", Strategy: "momentum", Symbol: "MSFT", Quantity: decimal.NewFromInt(-50), Price: decimal.NewFromInt(300)},
	}
	writer := &fakeWriter{}
	stock := &fakeStockStore{txs: txs}
	audit := &fakeAuditStore{}

	a := NewArchiver(writer, stock, &fakeOptionStore{}, audit)

	before := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	count, err := a.ArchiveStockTransactions(context.Background(), before)
	if err != nil {
		t.Fatalf("ArchiveStockTransactions: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	if len(writer.paths) != 1 || writer.paths[0] != "archive/stock_transactions/2026-03.jsonl" {
		t.Fatalf("unexpected upload path(s): %v", writer.paths)
	}

	lines := 0
	scanner := bufio.NewScanner(bytesReader(writer.bufs[0]))
	for scanner.Scan() {
		if scanner.Text() != "" {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("expected 2 JSONL lines, got %d", lines)
	}

	if len(audit.events) != 1 || audit.events[0] != "archive.stock_transactions" {
		t.Errorf("expected one archive.stock_transactions audit entry, got %v", audit.events)
	}
}

func TestArchiveStockTransactionsSkipsUploadWhenEmpty(t *testing.T) {
	writer := &fakeWriter{}
	audit := &fakeAuditStore{}
	a := NewArchiver(writer, &fakeStockStore{}, &fakeOptionStore{}, audit)

	count, err := a.ArchiveStockTransactions(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ArchiveStockTransactions: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if len(writer.paths) != 0 {
		t.Error("no upload should happen when there is nothing to archive")
	}
	if len(audit.events) != 0 {
		t.Error("no audit entry should be written when there is nothing to archive")
	}
}

func TestArchiveStockTransactionsPropagatesQueryError(t *testing.T) {
	stock := &fakeStockStore{err: errors.New("db unavailable")}
	a := NewArchiver(&fakeWriter{}, stock, &fakeOptionStore{}, &fakeAuditStore{})

	_, err := a.ArchiveStockTransactions(context.Background(), time.Now())
	if err == nil {
		t.Fatal("expected the store error to propagate")
	}
}

func TestArchiveOptionTransactionsUsesOptionPartition(t *testing.T) {
	txs := []domain.OptionTransaction{
		{ExecutionID: "e1", Strategy: "spread", Symbol: "SPY", Right: domain.OptionTypeCall, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromFloat(2.5)},
	}
	writer := &fakeWriter{}
	a := NewArchiver(writer, &fakeStockStore{}, &fakeOptionStore{txs: txs}, &fakeAuditStore{})

	before := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	count, err := a.ArchiveOptionTransactions(context.Background(), before)
	if err != nil {
		t.Fatalf("ArchiveOptionTransactions: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if len(writer.paths) != 1 || writer.paths[0] != "archive/option_transactions/2026-07.jsonl" {
		t.Fatalf("unexpected upload path(s): %v", writer.paths)
	}
}

func bytesReader(b []byte) io.Reader {
	return &sliceReader{b: b}
}

type sliceReader struct {
	b []byte
	i int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}
