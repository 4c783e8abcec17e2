package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore returned error: %v", err)
	}

	ctx := context.Background()
	if err := store.Put(ctx, "archives/test.zip", strings.NewReader("zip bytes")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	exists, err := store.Exists(ctx, "archives/test.zip")
	if err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	if !exists {
		t.Fatalf("expected blob to exist")
	}

	reader, err := store.Get(ctx, "archives/test.zip")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading blob failed: %v", err)
	}
	if string(body) != "zip bytes" {
		t.Fatalf("unexpected blob contents: %q", body)
	}

	if err := store.Delete(ctx, "archives/test.zip"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	exists, err = store.Exists(ctx, "archives/test.zip")
	if err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	if exists {
		t.Fatalf("expected blob removed")
	}
}

func TestLocalStoreRejectsEmptyKey(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore returned error: %v", err)
	}

	if err := store.Put(context.Background(), "", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestLocalStoreDeleteMissingIsNoop(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore returned error: %v", err)
	}

	if err := store.Delete(context.Background(), "never/there.zip"); err != nil {
		t.Fatalf("Delete of missing blob returned error: %v", err)
	}
}
