package redisdb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/anystore/store"
	"github.com/unkn0wn-root/anystore/storetest"
)

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debug(string, store.Fields) {}
func (l *recordingLogger) Info(string, store.Fields)  {}
func (l *recordingLogger) Warn(string, store.Fields)  {}
func (l *recordingLogger) Error(msg string, _ store.Fields) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func newServer(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func newStore(t *testing.T, cfg Config) *Redis {
	t.Helper()
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = r.Destroy(context.Background(), false) })
	return r
}

func TestContract(t *testing.T) {
	// the suite builds one store per subtest; track the matching fake server
	// so the Advance hook forwards the right clock
	var current *miniredis.Miniredis
	factory := func(t *testing.T, ns string) store.Store {
		srv, client := newServer(t)
		current = srv
		return newStore(t, Config{Namespace: ns, Client: client})
	}
	storetest.Run(t, "redisdb", factory, storetest.Options{
		DeleteMissing: true, // DEL reply count is ignored by this backend
		Advance: func(d time.Duration) {
			current.FastForward(d)
		},
	})
}

func TestNamespaceRequired(t *testing.T) {
	_, client := newServer(t)
	_, err := New(Config{Namespace: "", Client: client})
	var nsErr *store.InvalidNamespaceError
	if !errors.As(err, &nsErr) {
		t.Fatalf("New with empty namespace: got %v, want InvalidNamespaceError", err)
	}
}

func TestMissingClient(t *testing.T) {
	_, err := New(Config{Namespace: "t:"})
	var missing *store.MissingOptionError
	if !errors.As(err, &missing) {
		t.Fatalf("New without client: got %v, want MissingOptionError", err)
	}
}

func TestClusterModeDisablesPatternOps(t *testing.T) {
	ctx := context.Background()
	_, client := newServer(t)
	r := newStore(t, Config{Namespace: "t:", Client: client, Cluster: true})

	if _, err := r.Keys(ctx, "*"); !errors.Is(err, store.ErrClusterPattern) {
		t.Errorf("Keys in cluster mode: got %v, want ErrClusterPattern", err)
	}
	if _, err := r.Clear(ctx, "*"); !errors.Is(err, store.ErrClusterPattern) {
		t.Errorf("Clear in cluster mode: got %v, want ErrClusterPattern", err)
	}
	// non-pattern operations keep working
	if err := r.Set(ctx, "k", "v", 0); err != nil {
		t.Errorf("Set in cluster mode: %v", err)
	}
	if v, err := r.Get(ctx, "k"); err != nil || v != "v" {
		t.Errorf("Get in cluster mode: got (%#v, %v)", v, err)
	}
}

func TestScanScopedToNamespace(t *testing.T) {
	ctx := context.Background()
	srv, client := newServer(t)
	r := newStore(t, Config{Namespace: "mine:", Client: client})

	if err := r.Set(ctx, "a", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// a foreign key on the same server, outside the namespace
	srv.Set("theirs:b", "x")

	ks, err := r.Keys(ctx, "*")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(ks) != 1 || ks[0] != "a" {
		t.Errorf("Keys leaked outside the namespace: %v", ks)
	}
}

func TestNativeTTLHandling(t *testing.T) {
	ctx := context.Background()
	srv, client := newServer(t)
	r := newStore(t, Config{Namespace: "t:", Client: client})

	if err := r.Set(ctx, "k", "v", 60); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := srv.TTL("t:k"); got != 60*time.Second {
		t.Errorf("native TTL: got %v, want 60s", got)
	}

	res, err := r.TTL(ctx, "k")
	if err != nil || res.State != store.TTLExpiresAt {
		t.Fatalf("TTL: got (%+v, %v), want ExpiresAt", res, err)
	}
	remaining := time.Until(res.ExpiresAt)
	if remaining <= 0 || remaining > 61*time.Second {
		t.Errorf("TTL deadline off: remaining %v", remaining)
	}
}

func TestTTLStateMapping(t *testing.T) {
	ctx := context.Background()
	_, client := newServer(t)
	r := newStore(t, Config{Namespace: "t:", Client: client})

	if res, err := r.TTL(ctx, "missing"); err != nil || res.State != store.TTLNotFound {
		t.Errorf("TTL of missing key: got (%+v, %v), want NotFound", res, err)
	}

	if err := r.Set(ctx, "perm", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if res, err := r.TTL(ctx, "perm"); err != nil || res.State != store.TTLNoExpiry {
		t.Errorf("TTL of permanent key: got (%+v, %v), want NoExpiry", res, err)
	}

	if err := r.Set(ctx, "tmp", "v", 30); err != nil {
		t.Fatalf("Set: %v", err)
	}
	res, err := r.TTL(ctx, "tmp")
	if err != nil || res.State != store.TTLExpiresAt {
		t.Fatalf("TTL of expiring key: got (%+v, %v), want ExpiresAt", res, err)
	}
	if !res.ExpiresAt.After(time.Now()) {
		t.Errorf("TTL deadline in the past: %v", res.ExpiresAt)
	}
}

func TestScanWithGlobCharsInNamespace(t *testing.T) {
	ctx := context.Background()
	srv, client := newServer(t)
	r := newStore(t, Config{Namespace: "team[a]:", Client: client})

	if err := r.Set(ctx, "k1", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := r.Set(ctx, "k2", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// an unescaped MATCH of "team[a]:*" would read "[a]" as a character
	// class and pick up this key instead of ours
	srv.Set("teama:k3", "x")

	ks, err := r.Keys(ctx, "*")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(ks) != 2 || ks[0] != "k1" || ks[1] != "k2" {
		t.Errorf("Keys with bracketed namespace: got %v, want [k1 k2]", ks)
	}

	n, err := r.Clear(ctx, "k?")
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 2 {
		t.Errorf("Clear with bracketed namespace: removed %d, want 2", n)
	}
	if !srv.Exists("teama:k3") {
		t.Errorf("Clear removed a key outside the namespace")
	}
}

func TestMalformedForeignValue(t *testing.T) {
	ctx := context.Background()
	srv, client := newServer(t)
	r := newStore(t, Config{Namespace: "t:", Client: client})

	// a foreign writer stored non-JSON bytes under our namespace
	srv.Set("t:raw", "not json at all")

	v, err := r.Get(ctx, "raw")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "not json at all" {
		t.Errorf("malformed value fallback: got %#v, want the raw string", v)
	}
}

func TestClearLogsFailure(t *testing.T) {
	ctx := context.Background()
	srv, client := newServer(t)
	rec := &recordingLogger{}
	r := newStore(t, Config{Namespace: "t:", Client: client, Logger: rec})

	if err := r.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	srv.SetError("server unavailable")
	t.Cleanup(func() { srv.SetError("") })

	if _, err := r.Clear(ctx, "*"); err == nil {
		t.Fatal("Clear against failing server: want error")
	}
	rec.mu.Lock()
	logged := len(rec.errors)
	rec.mu.Unlock()
	if logged == 0 {
		t.Errorf("Clear failure was not logged")
	}
}

func TestHardDestroyFlushesServer(t *testing.T) {
	ctx := context.Background()
	srv, client := newServer(t)
	r := newStore(t, Config{Namespace: "t:", Client: client})

	if err := r.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	srv.Set("other:k", "x")

	if err := r.Destroy(ctx, true); err != nil {
		t.Fatalf("Destroy(hard): %v", err)
	}
	// hard destroy is not namespace-scoped
	if srv.Exists("t:k") || srv.Exists("other:k") {
		t.Errorf("hard destroy left keys behind")
	}
}

func TestNotInitialized(t *testing.T) {
	ctx := context.Background()
	_, client := newServer(t)
	r, err := New(Config{Namespace: "t:", Client: client})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Set(ctx, "k", "v", 0); !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("Set before Initialize: got %v, want ErrNotInitialized", err)
	}
	if err := r.Destroy(ctx, false); err != nil {
		t.Errorf("Destroy before Initialize: %v", err)
	}
}

func TestInfo(t *testing.T) {
	_, client := newServer(t)
	r := newStore(t, Config{Namespace: "t:", Client: client})
	if got := r.Info().Backend; got != store.KindRedis {
		t.Errorf("Info: got %q, want %q", got, store.KindRedis)
	}
}
