package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jarrettlin/execcore/internal/domain"
)

// StockTransactionArchiveStore provides read access to stock transactions
// for archival purposes. Narrower than domain.TransactionStore: the
// archiver only ever needs the before-cutoff query.
type StockTransactionArchiveStore interface {
	ListStockBefore(ctx context.Context, before time.Time) ([]domain.StockTransaction, error)
}

// OptionTransactionArchiveStore mirrors StockTransactionArchiveStore for
// option transactions.
type OptionTransactionArchiveStore interface {
	ListOptionBefore(ctx context.Context, before time.Time) ([]domain.OptionTransaction, error)
}

// Archiver implements domain.Archiver by querying the transaction store for
// old records, serializing them to JSONL, and uploading the result to cold
// storage.
//
// Deletion of the archived rows from the primary store is intentionally not
// performed here; that is a separate step taken only after the archive has
// been verified.
type Archiver struct {
	writer domain.BlobWriter
	stock  StockTransactionArchiveStore
	option OptionTransactionArchiveStore
	audit  domain.AuditStore
}

// NewArchiver creates a new Archiver.
func NewArchiver(
	writer domain.BlobWriter,
	stock StockTransactionArchiveStore,
	option OptionTransactionArchiveStore,
	audit domain.AuditStore,
) *Archiver {
	return &Archiver{writer: writer, stock: stock, option: option, audit: audit}
}

// ArchiveStockTransactions queries all stock transactions before the cutoff,
// serializes them to JSONL, and uploads the file to
// archive/stock_transactions/YYYY-MM.jsonl.
func (a *Archiver) ArchiveStockTransactions(ctx context.Context, before time.Time) (int64, error) {
	txs, err := a.stock.ListStockBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("archive: stock transactions query: %w", err)
	}
	if len(txs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(txs)
	if err != nil {
		return 0, fmt.Errorf("archive: stock transactions marshal: %w", err)
	}

	path := archivePath("stock_transactions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("archive: stock transactions upload: %w", err)
	}

	count := int64(len(txs))
	if err := a.audit.Log(ctx, "archive.stock_transactions", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("archive: stock transactions audit log: %w", err)
	}

	return count, nil
}

// ArchiveOptionTransactions mirrors ArchiveStockTransactions for option
// transactions, uploading to archive/option_transactions/YYYY-MM.jsonl.
func (a *Archiver) ArchiveOptionTransactions(ctx context.Context, before time.Time) (int64, error) {
	txs, err := a.option.ListOptionBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("archive: option transactions query: %w", err)
	}
	if len(txs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(txs)
	if err != nil {
		return 0, fmt.Errorf("archive: option transactions marshal: %w", err)
	}

	path := archivePath("option_transactions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("archive: option transactions upload: %w", err)
	}

	count := int64(len(txs))
	if err := a.audit.Log(ctx, "archive.option_transactions", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("archive: option transactions audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/stock_transactions/2025-01.jsonl
//	archive/option_transactions/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serializes a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
