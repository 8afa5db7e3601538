package anystore

import (
	"context"
	"errors"
	"testing"

	"github.com/unkn0wn-root/anystore/store"
)

func TestNewUnsupportedBackend(t *testing.T) {
	_, err := New("t:", "mongodb", Options{})
	var unsupported *store.UnsupportedBackendError
	if !errors.As(err, &unsupported) {
		t.Fatalf("New with unknown backend: got %v, want UnsupportedBackendError", err)
	}
}

func TestNewMissingHandles(t *testing.T) {
	var missing *store.MissingOptionError
	if _, err := New("t:", SQL, Options{}); !errors.As(err, &missing) {
		t.Errorf("SQL without DB: got %v, want MissingOptionError", err)
	}
	if _, err := New("t:", Redis, Options{}); !errors.As(err, &missing) {
		t.Errorf("Redis without client: got %v, want MissingOptionError", err)
	}
}

func TestNewInvalidNamespace(t *testing.T) {
	var nsErr *store.InvalidNamespaceError
	if _, err := New("no-separator", Memory, Options{}); !errors.As(err, &nsErr) {
		t.Errorf("bad namespace: got %v, want InvalidNamespaceError", err)
	}
}

func TestNewMemoryEndToEnd(t *testing.T) {
	ctx := context.Background()
	s, err := New("app:", Memory, Options{DefaultTTL: 300})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer s.Destroy(ctx, false)

	if got := s.Info().Backend; got != store.KindMemory {
		t.Errorf("Info: got %q, want %q", got, store.KindMemory)
	}
	if err := s.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := s.Get(ctx, "k")
	if err != nil || v != "v" {
		t.Errorf("Get: got (%#v, %v), want (\"v\", nil)", v, err)
	}
}
