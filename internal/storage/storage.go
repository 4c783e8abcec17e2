package storage

import (
	"context"
	"io"
)

// BlobStore abstracts where generated archives and uploaded files live. The local-disk
// implementation backs development and tests; production deployments can swap in an
// object store behind the same interface.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}
