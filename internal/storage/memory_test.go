package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/gestaozabele/conversor/internal/artifact"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return now })

	entry, err := store.Put(ctx, "b.txt", strings.NewReader("conteúdo"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !entry.ModTime.Equal(now) {
		t.Fatalf("expected mod time %s got %s", now, entry.ModTime)
	}

	rc, _, err := store.Open(ctx, "b.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "conteúdo" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := store.Touch("b.txt", now.Add(-time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	entries, _ := store.List(ctx)
	if len(entries) != 1 || !entries[0].ModTime.Equal(now.Add(-time.Hour)) {
		t.Fatalf("unexpected entries %+v", entries)
	}

	if err := store.Delete(ctx, "b.txt"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "b.txt"); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
	if _, err := store.Ref(ctx, "b.txt"); !errors.Is(err, artifact.ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
	if err := store.Touch("b.txt", now); !errors.Is(err, artifact.ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestMemoryStoreRejectsInvalidNames(t *testing.T) {
	_, err := NewMemoryStore().Put(context.Background(), "a/b", strings.NewReader("x"))
	if !errors.Is(err, artifact.ErrStoreWrite) {
		t.Fatalf("expected ErrStoreWrite got %v", err)
	}
}
