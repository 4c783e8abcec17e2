package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// LocalStore keeps blobs as plain files under a root directory.
type LocalStore struct {
	root string
}

var _ BlobStore = (*LocalStore)(nil)

// NewLocalStore creates the root directory if needed and returns a disk-backed store.
func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, eris.New("blob root directory is required")
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, eris.Wrapf(err, "creating blob root: %s", root)
	}

	return &LocalStore{root: root}, nil
}

// path maps a key to a file path, refusing traversal outside the root.
func (s *LocalStore) path(key string) (string, error) {
	cleaned := filepath.Clean("/" + key)
	if cleaned == "/" {
		return "", eris.New("blob key is required")
	}
	return filepath.Join(s.root, cleaned), nil
}

// Put writes the blob atomically via a temp file rename.
func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return eris.Wrapf(err, "creating blob directory for: %s", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return eris.Wrap(err, "creating temp blob file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "writing blob: %s", key)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "closing blob: %s", key)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return eris.Wrapf(err, "publishing blob: %s", key)
	}

	return nil
}

// Get opens the blob for reading.
func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(target)
	if err != nil {
		return nil, eris.Wrapf(err, "opening blob: %s", key)
	}
	return file, nil
}

// Exists reports whether the blob is present.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	target, err := s.path(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, eris.Wrapf(err, "checking blob: %s", key)
	}
	return true, nil
}

// Delete removes the blob; deleting a missing blob is not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "deleting blob: %s", key)
	}
	return nil
}
