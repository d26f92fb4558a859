package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object in cold storage.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves closed-day transaction batches out of the primary store
// into cold storage, recording the move in the audit log.
type Archiver interface {
	ArchiveStockTransactions(ctx context.Context, before time.Time) (int64, error)
	ArchiveOptionTransactions(ctx context.Context, before time.Time) (int64, error)
}
