package archiver

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"merchkit/app/internal/content"
	"merchkit/app/internal/storage"
)

// BlobFetcher reads file bytes from the blob store, using the path component of the
// file's URL as the blob key. Uploads land in the same store under that path.
type BlobFetcher struct {
	blobs storage.BlobStore
}

var _ FileFetcher = (*BlobFetcher)(nil)

// NewBlobFetcher constructs a blob-store-backed fetcher.
func NewBlobFetcher(blobs storage.BlobStore) (*BlobFetcher, error) {
	if blobs == nil {
		return nil, eris.New("blob store is required")
	}
	return &BlobFetcher{blobs: blobs}, nil
}

// Fetch opens the blob backing the file.
func (f *BlobFetcher) Fetch(ctx context.Context, file content.File) (io.ReadCloser, error) {
	parsed, err := url.Parse(file.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "parsing file url: %s", file.URL)
	}

	key := strings.TrimPrefix(parsed.Path, "/")
	if key == "" {
		return nil, eris.Errorf("file url has no path: %s", file.URL)
	}

	return f.blobs.Get(ctx, key)
}
