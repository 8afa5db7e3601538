// Package storetest runs one conformance suite against every backend, so the
// semantic-consistency guarantees of the adapter contract are checked by the
// same code everywhere.
package storetest

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/unkn0wn-root/anystore/store"
)

// Factory returns a fresh, initialized Store bound to namespace over an
// isolated backing store. Register teardown with t.Cleanup.
type Factory func(t *testing.T, namespace string) store.Store

// Options declare the documented per-backend deviations the suite must
// accept, plus environment hooks.
type Options struct {
	// DeleteMissing is the result the backend reports when deleting an
	// absent key. The redis backend reports true by native limitation.
	DeleteMissing bool
	// Advance moves wall-clock time forward for TTL tests. Nil means real
	// sleep; fake-clock servers (miniredis) install their own.
	Advance func(d time.Duration)
}

// Run executes the full contract suite.
func Run(t *testing.T, name string, factory Factory, opts Options) {
	advance := opts.Advance
	if advance == nil {
		advance = time.Sleep
	}

	t.Run(name, func(t *testing.T) {
		t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, factory) })
		t.Run("NilCollapse", func(t *testing.T) { testNilCollapse(t, factory) })
		t.Run("NamespaceTransparency", func(t *testing.T) { testNamespaceTransparency(t, factory) })
		t.Run("DeleteIdempotent", func(t *testing.T) { testDeleteIdempotent(t, factory, opts.DeleteMissing) })
		t.Run("TTLExpiry", func(t *testing.T) { testTTLExpiry(t, factory, advance) })
		t.Run("PatternOrdering", func(t *testing.T) { testPatternOrdering(t, factory) })
		t.Run("ClearScoping", func(t *testing.T) { testClearScoping(t, factory) })
		t.Run("TransactionShape", func(t *testing.T) { testTransactionShape(t, factory, opts.DeleteMissing) })
		t.Run("GetMultipleCompleteness", func(t *testing.T) { testGetMultiple(t, factory) })
		t.Run("SetMultiple", func(t *testing.T) { testSetMultiple(t, factory) })
		t.Run("ExpireAndTTL", func(t *testing.T) { testExpireAndTTL(t, factory) })
	})
}

func mustSet(t *testing.T, s store.Store, key string, value any, ttl int64) {
	t.Helper()
	if err := s.Set(context.Background(), key, value, ttl); err != nil {
		t.Fatalf("Set(%q): %v", key, err)
	}
}

func mustGet(t *testing.T, s store.Store, key string) any {
	t.Helper()
	v, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	return v
}

func mustKeys(t *testing.T, s store.Store, pattern string) []string {
	t.Helper()
	ks, err := s.Keys(context.Background(), pattern)
	if err != nil {
		t.Fatalf("Keys(%q): %v", pattern, err)
	}
	return ks
}

func testRoundTrip(t *testing.T, factory Factory) {
	s := factory(t, "rt:")

	// expectations in post-JSON-decode shape: numbers are float64
	values := map[string]any{
		"str":    "hello",
		"num":    float64(42.5),
		"bool":   true,
		"object": map[string]any{"name": "ada", "age": float64(36)},
		"array":  []any{"x", float64(2), false},
		"nested": map[string]any{"list": []any{map[string]any{"id": float64(1)}}},
	}
	for key, v := range values {
		mustSet(t, s, key, v, 0)
	}
	for key, want := range values {
		got := mustGet(t, s, key)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round trip %q: got %#v, want %#v", key, got, want)
		}
	}
}

func testNilCollapse(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := factory(t, "nil:")

	mustSet(t, s, "absent-value", nil, 0)
	if v := mustGet(t, s, "absent-value"); v != nil {
		t.Errorf("nil value round trip: got %#v, want nil", v)
	}

	// Exists and TTL are the only way to tell "null value" from "missing".
	ok, err := s.Exists(ctx, "absent-value")
	if err != nil || !ok {
		t.Errorf("Exists on null-valued key: got (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = s.Exists(ctx, "never-set")
	if err != nil || ok {
		t.Errorf("Exists on missing key: got (%v, %v), want (false, nil)", ok, err)
	}
	if v := mustGet(t, s, "never-set"); v != nil {
		t.Errorf("Get on missing key: got %#v, want nil", v)
	}
}

func testNamespaceTransparency(t *testing.T, factory Factory) {
	s := factory(t, "ns:")

	mustSet(t, s, "a", "v", 0)
	ks := mustKeys(t, s, "*")
	if !reflect.DeepEqual(ks, []string{"a"}) {
		t.Fatalf("Keys: got %v, want [a] - results must never show the namespace prefix", ks)
	}
	got, err := s.GetMultiple(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("GetMultiple: %v", err)
	}
	if _, ok := got["a"]; !ok {
		t.Errorf("GetMultiple keyed by full key instead of local key: %v", got)
	}
}

func testDeleteIdempotent(t *testing.T, factory Factory, deleteMissing bool) {
	ctx := context.Background()
	s := factory(t, "del:")

	mustSet(t, s, "k", "v", 0)
	ok, err := s.Delete(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Delete live key: got (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = s.Delete(ctx, "k")
	if err != nil || ok != deleteMissing {
		t.Errorf("second Delete: got (%v, %v), want (%v, nil)", ok, err, deleteMissing)
	}
	ok, err = s.Delete(ctx, "never-set")
	if err != nil || ok != deleteMissing {
		t.Errorf("Delete missing key: got (%v, %v), want (%v, nil)", ok, err, deleteMissing)
	}
}

func testTTLExpiry(t *testing.T, factory Factory, advance func(time.Duration)) {
	ctx := context.Background()
	s := factory(t, "ttl:")

	mustSet(t, s, "k", "v", 1)
	if v := mustGet(t, s, "k"); v != "v" {
		t.Fatalf("Get before expiry: got %#v, want \"v\"", v)
	}

	advance(1200 * time.Millisecond)

	if v := mustGet(t, s, "k"); v != nil {
		t.Errorf("Get after expiry: got %#v, want nil", v)
	}
	if ks := mustKeys(t, s, "*"); len(ks) != 0 {
		t.Errorf("Keys after expiry: got %v, want none", ks)
	}
	ok, err := s.Exists(ctx, "k")
	if err != nil || ok {
		t.Errorf("Exists after expiry: got (%v, %v), want (false, nil)", ok, err)
	}
	res, err := s.TTL(ctx, "k")
	if err != nil || res.State != store.TTLNotFound {
		t.Errorf("TTL after expiry: got (%+v, %v), want NotFound", res, err)
	}
}

func testPatternOrdering(t *testing.T, factory Factory) {
	s := factory(t, "pat:")

	for _, key := range []string{"b", "a", "c"} {
		mustSet(t, s, key, key, 0)
	}
	if ks := mustKeys(t, s, "*"); !reflect.DeepEqual(ks, []string{"a", "b", "c"}) {
		t.Errorf(`Keys("*"): got %v, want [a b c]`, ks)
	}
	if ks := mustKeys(t, s, "?"); !reflect.DeepEqual(ks, []string{"a", "b", "c"}) {
		t.Errorf(`Keys("?"): got %v, want [a b c]`, ks)
	}
	if ks := mustKeys(t, s, "a*"); !reflect.DeepEqual(ks, []string{"a"}) {
		t.Errorf(`Keys("a*"): got %v, want [a]`, ks)
	}
	if ks := mustKeys(t, s, "nope*"); len(ks) != 0 {
		t.Errorf(`Keys("nope*"): got %v, want none`, ks)
	}
}

func testClearScoping(t *testing.T, factory Factory) {
	s := factory(t, "clr:")

	for _, key := range []string{"user:1", "user:2", "other:1"} {
		mustSet(t, s, key, "v", 0)
	}
	n, err := s.Clear(context.Background(), "user:*")
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 2 {
		t.Errorf("Clear count: got %d, want 2", n)
	}
	if ks := mustKeys(t, s, "*"); !reflect.DeepEqual(ks, []string{"other:1"}) {
		t.Errorf("remaining keys: got %v, want [other:1]", ks)
	}
}

func testTransactionShape(t *testing.T, factory Factory, deleteMissing bool) {
	ctx := context.Background()
	s := factory(t, "tx:")

	results, err := s.Transaction(ctx, []store.Operation{
		store.SetOp("k1", "v1"),
		store.GetOp("k1"),
		store.SetOp("k2", "v2"),
		store.DelOp("k1"),
		store.DelOp("missing"),
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	want := []any{true, "v1", true, true, deleteMissing}
	if !reflect.DeepEqual(results, want) {
		t.Errorf("transaction results: got %#v, want %#v", results, want)
	}

	ok, err := s.Exists(ctx, "k1")
	if err != nil || ok {
		t.Errorf("k1 after transaction: got (%v, %v), want deleted", ok, err)
	}
	if v := mustGet(t, s, "k2"); v != "v2" {
		t.Errorf("k2 after transaction: got %#v, want \"v2\"", v)
	}
}

func testGetMultiple(t *testing.T, factory Factory) {
	s := factory(t, "gm:")

	mustSet(t, s, "a", "va", 0)
	mustSet(t, s, "b", "vb", 0)

	requested := []string{"a", "b", "missing1", "missing2"}
	got, err := s.GetMultiple(context.Background(), requested)
	if err != nil {
		t.Fatalf("GetMultiple: %v", err)
	}
	if len(got) != len(requested) {
		t.Fatalf("GetMultiple size: got %d entries, want %d", len(got), len(requested))
	}
	for _, key := range requested {
		if _, ok := got[key]; !ok {
			t.Errorf("GetMultiple omitted requested key %q", key)
		}
	}
	if got["a"] != "va" || got["b"] != "vb" {
		t.Errorf("GetMultiple values: got %#v", got)
	}
	if got["missing1"] != nil || got["missing2"] != nil {
		t.Errorf("GetMultiple missing keys must be nil: got %#v", got)
	}
}

func testSetMultiple(t *testing.T, factory Factory) {
	s := factory(t, "sm:")

	pairs := map[string]any{"x": "vx", "y": "vy", "z": "vz"}
	if err := s.SetMultiple(context.Background(), pairs, 0); err != nil {
		t.Fatalf("SetMultiple: %v", err)
	}
	for key, want := range pairs {
		if got := mustGet(t, s, key); got != want {
			t.Errorf("after SetMultiple, Get(%q): got %#v, want %#v", key, got, want)
		}
	}
}

func testExpireAndTTL(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := factory(t, "exp:")

	mustSet(t, s, "k", "v", 0)
	res, err := s.TTL(ctx, "k")
	if err != nil || res.State != store.TTLNoExpiry {
		t.Fatalf("TTL without expiry: got (%+v, %v), want NoExpiry", res, err)
	}

	ok, err := s.Expire(ctx, "k", 30)
	if err != nil || !ok {
		t.Fatalf("Expire live key: got (%v, %v), want (true, nil)", ok, err)
	}
	res, err = s.TTL(ctx, "k")
	if err != nil || res.State != store.TTLExpiresAt {
		t.Fatalf("TTL after Expire: got (%+v, %v), want ExpiresAt", res, err)
	}
	if !res.ExpiresAt.After(time.Now()) {
		t.Errorf("TTL deadline not in the future: %v", res.ExpiresAt)
	}

	ok, err = s.Expire(ctx, "missing", 30)
	if err != nil || ok {
		t.Errorf("Expire missing key: got (%v, %v), want (false, nil)", ok, err)
	}
	ok, err = s.Expire(ctx, "k", 0)
	if err != nil || ok {
		t.Errorf("Expire with zero TTL: got (%v, %v), want (false, nil)", ok, err)
	}
	res, err = s.TTL(ctx, "missing")
	if err != nil || res.State != store.TTLNotFound {
		t.Errorf("TTL missing key: got (%+v, %v), want NotFound", res, err)
	}
}
