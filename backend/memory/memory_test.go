package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/anystore/store"
	"github.com/unkn0wn-root/anystore/storetest"
)

func newStore(t *testing.T, cfg Config) *Memory {
	t.Helper()
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = m.Destroy(context.Background(), false) })
	return m
}

func TestContract(t *testing.T) {
	factory := func(t *testing.T, ns string) store.Store {
		return newStore(t, Config{Namespace: ns})
	}
	storetest.Run(t, "memory", factory, storetest.Options{})
}

func TestInvalidNamespace(t *testing.T) {
	_, err := New(Config{Namespace: "no-separator"})
	var nsErr *store.InvalidNamespaceError
	if !errors.As(err, &nsErr) {
		t.Fatalf("New with bad namespace: got %v, want InvalidNamespaceError", err)
	}
}

func TestNotInitialized(t *testing.T) {
	ctx := context.Background()
	m, err := New(Config{Namespace: "t:"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Set(ctx, "k", "v", 0); !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("Set before Initialize: got %v, want ErrNotInitialized", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("Get before Initialize: got %v, want ErrNotInitialized", err)
	}
	if _, err := m.Keys(ctx, "*"); !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("Keys before Initialize: got %v, want ErrNotInitialized", err)
	}
	// Destroy must be safe even though Initialize never ran
	if err := m.Destroy(ctx, false); err != nil {
		t.Errorf("Destroy before Initialize: %v", err)
	}
	if err := m.Destroy(ctx, false); err != nil {
		t.Errorf("second Destroy: %v", err)
	}
}

func TestDefaultTTL(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, Config{Namespace: "t:", DefaultTTL: 60})

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	res, err := m.TTL(ctx, "k")
	if err != nil || res.State != store.TTLExpiresAt {
		t.Errorf("default TTL not applied: got (%+v, %v)", res, err)
	}

	// per-call TTL wins over the default
	if err := m.Set(ctx, "k2", "v", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	res, err = m.TTL(ctx, "k2")
	if err != nil || res.State != store.TTLExpiresAt {
		t.Fatalf("TTL: got (%+v, %v)", res, err)
	}
	if res.ExpiresAt.After(time.Now().Add(2 * time.Second)) {
		t.Errorf("per-call TTL did not override default: deadline %v", res.ExpiresAt)
	}
}

func TestLazyExpiryRemovesOnRead(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, Config{Namespace: "t:"})

	if err := m.Set(ctx, "k", "v", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(1200 * time.Millisecond)

	if v, err := m.Get(ctx, "k"); err != nil || v != nil {
		t.Fatalf("Get after expiry: got (%#v, %v), want (nil, nil)", v, err)
	}
	dump, err := m.Dump(ctx)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if _, ok := dump["t:k"]; ok {
		t.Errorf("expired entry still present after read-triggered check")
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	debugs []string
}

func (l *recordingLogger) Debug(msg string, _ store.Fields) {
	l.mu.Lock()
	l.debugs = append(l.debugs, msg)
	l.mu.Unlock()
}
func (l *recordingLogger) Info(string, store.Fields)  {}
func (l *recordingLogger) Warn(string, store.Fields)  {}
func (l *recordingLogger) Error(string, store.Fields) {}

func TestSweepRemovesWithoutAccess(t *testing.T) {
	ctx := context.Background()
	rec := &recordingLogger{}
	m := newStore(t, Config{Namespace: "t:", CleanupIntervalSec: 1, Logger: rec})

	if err := m.Set(ctx, "k", "v", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(2500 * time.Millisecond)

	// no access in between; the sweeper alone must have removed the entry
	dump, err := m.Dump(ctx)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if _, ok := dump["t:k"]; ok {
		t.Errorf("sweeper did not remove expired entry")
	}
	rec.mu.Lock()
	logged := len(rec.debugs)
	rec.mu.Unlock()
	if logged == 0 {
		t.Errorf("sweep removal was not logged")
	}
}

func TestHardDestroyWipesEverything(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, Config{Namespace: "t:"})

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Destroy(ctx, true); err != nil {
		t.Fatalf("Destroy(hard): %v", err)
	}
	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("re-Initialize: %v", err)
	}
	if ks, err := m.Keys(ctx, "*"); err != nil || len(ks) != 0 {
		t.Errorf("keys after hard destroy: got (%v, %v), want none", ks, err)
	}
}

func TestTransactionBestEffort(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, Config{Namespace: "t:"})

	// channels are not JSON-encodable, so the second set fails mid-batch
	_, err := m.Transaction(ctx, []store.Operation{
		store.SetOp("k1", "v1"),
		store.SetOp("bad", make(chan int)),
	})
	if err == nil {
		t.Fatal("Transaction with unencodable value: want error")
	}
	// earlier effects stay applied - this backend has no rollback
	if v, gerr := m.Get(ctx, "k1"); gerr != nil || v != "v1" {
		t.Errorf("k1 after failed transaction: got (%#v, %v), want (\"v1\", nil)", v, gerr)
	}
}

func TestInfo(t *testing.T) {
	m := newStore(t, Config{Namespace: "t:"})
	if got := m.Info().Backend; got != store.KindMemory {
		t.Errorf("Info: got %q, want %q", got, store.KindMemory)
	}
}
