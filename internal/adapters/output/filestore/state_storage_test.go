package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"facebot/internal/domain"
)

func newTestStorage(t *testing.T) (*StateStorage, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "state")
	storage, err := NewStateStorage(dir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return storage, dir
}

func TestLoadMissingKey(t *testing.T) {
	storage, _ := newTestStorage(t)

	_, err := storage.Load(context.Background(), "chatSessions")

	if !errors.Is(err, domain.ErrStateNotFound) {
		t.Errorf("expected ErrStateNotFound, got %v", err)
	}
}

func TestSaveThenLoad(t *testing.T) {
	storage, dir := newTestStorage(t)
	ctx := context.Background()

	if err := storage.Save(ctx, "chatSessions", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := storage.Save(ctx, "chatSessions", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	data, err := storage.Load(ctx, "chatSessions")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(data) != `{"a":2}` {
		t.Errorf("expected latest value, got %s", data)
	}

	if _, err := os.Stat(filepath.Join(dir, "chatSessions.json.tmp")); !os.IsNotExist(err) {
		t.Error("expected temp file to be renamed away")
	}
}

func TestClearIsIdempotent(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	storage.Save(ctx, "chatSessions", []byte(`{}`))

	if err := storage.Clear(ctx, "chatSessions"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := storage.Clear(ctx, "chatSessions"); err != nil {
		t.Errorf("expected second clear to succeed, got %v", err)
	}
	if _, err := storage.Load(ctx, "chatSessions"); !errors.Is(err, domain.ErrStateNotFound) {
		t.Errorf("expected ErrStateNotFound after clear, got %v", err)
	}
}

func TestRejectsUnsafeKeys(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "a/b", "dot.key"} {
		if err := storage.Save(ctx, key, []byte(`{}`)); err == nil {
			t.Errorf("expected key %q to be rejected", key)
		}
	}
}

func TestSaveRejectsOversizedValue(t *testing.T) {
	storage, _ := newTestStorage(t)

	err := storage.Save(context.Background(), "big", make([]byte, MaxStateSizeBytes+1))

	if err == nil {
		t.Error("expected an error for an oversized value")
	}
}

func TestSaveHonorsCanceledContext(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := storage.Save(ctx, "chatSessions", []byte(`{}`)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
