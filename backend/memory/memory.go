// Package memory implements the adapter contract over two in-process maps.
//
// The value map and the expiry map are co-indexed by full key and mutate as
// one unit under a single mutex, so a lazy expiry check plus the follow-up
// mutation is atomic. Expired entries are removed on access; an optional
// sweep removes them proactively on a fixed interval.
//
// Transactions are sequential and best-effort: there is no rollback, and a
// failing operation leaves the effects of earlier operations applied.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/unkn0wn-root/anystore/codec"
	"github.com/unkn0wn-root/anystore/internal/glob"
	"github.com/unkn0wn-root/anystore/internal/sweeper"
	"github.com/unkn0wn-root/anystore/store"
)

// Config tunes a Memory adapter. Only Namespace has a validity rule; the
// rest default sensibly.
type Config struct {
	// Namespace must be empty or end with ":".
	Namespace string
	// DefaultTTL in whole seconds applies to writes without a per-call TTL.
	// 0 disables the default (entries never expire).
	DefaultTTL int64
	// CleanupIntervalSec is the sweep interval; 0 disables the sweeper and
	// expiry relies on lazy checks alone.
	CleanupIntervalSec int64

	Codec  codec.Codec  // nil => codec.JSON{}
	Logger store.Logger // nil => store.NopLogger{}
}

// Memory is the in-process backend.
type Memory struct {
	ns         store.Namespace
	defaultTTL int64
	sweepEvery time.Duration
	codec      codec.Codec
	log        store.Logger

	mu          sync.Mutex
	values      map[string][]byte
	expiries    map[string]time.Time
	initialized bool
	sweep       *sweeper.Sweeper
}

var _ store.Store = (*Memory)(nil)

func New(cfg Config) (*Memory, error) {
	ns := store.Namespace(cfg.Namespace)
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	m := &Memory{
		ns:         ns,
		defaultTTL: cfg.DefaultTTL,
		codec:      cfg.Codec,
		log:        cfg.Logger,
		values:     make(map[string][]byte),
		expiries:   make(map[string]time.Time),
	}
	if cfg.CleanupIntervalSec > 0 {
		m.sweepEvery = time.Duration(cfg.CleanupIntervalSec) * time.Second
	}
	if m.codec == nil {
		m.codec = codec.JSON{}
	}
	if m.log == nil {
		m.log = store.NopLogger{}
	}
	return m, nil
}

func (m *Memory) Initialize(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}
	if m.sweepEvery > 0 {
		m.sweep = sweeper.Start(m.sweepEvery, m.removeExpired)
	}
	m.initialized = true
	return nil
}

// Destroy stops the sweeper. With hard=true both maps are wiped entirely,
// including entries outside this adapter's namespace.
func (m *Memory) Destroy(_ context.Context, hard bool) error {
	m.mu.Lock()
	sw := m.sweep
	m.sweep = nil
	m.initialized = false
	if hard {
		m.values = make(map[string][]byte)
		m.expiries = make(map[string]time.Time)
	}
	m.mu.Unlock()
	// outside the lock: the sweep callback takes m.mu
	sw.Stop()
	return nil
}

func (m *Memory) ready() error {
	m.mu.Lock()
	ok := m.initialized
	m.mu.Unlock()
	if !ok {
		return store.ErrNotInitialized
	}
	return nil
}

func (m *Memory) Set(_ context.Context, key string, value any, ttlSeconds int64) error {
	if err := m.ready(); err != nil {
		return err
	}
	raw, err := store.Encode(m.codec, value)
	if err != nil {
		return err
	}
	exp := store.Deadline(time.Now(), store.ResolveTTL(ttlSeconds, m.defaultTTL))
	m.mu.Lock()
	m.put(m.ns.Apply(key), raw, exp)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (any, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	raw, ok := m.live(m.ns.Apply(key), time.Now())
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return store.Decode(m.codec, raw), nil
}

func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	if err := m.ready(); err != nil {
		return false, err
	}
	full := m.ns.Apply(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(full, time.Now()); !ok {
		return false, nil
	}
	m.drop(full)
	return true, nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	if err := m.ready(); err != nil {
		return false, err
	}
	m.mu.Lock()
	_, ok := m.live(m.ns.Apply(key), time.Now())
	m.mu.Unlock()
	return ok, nil
}

func (m *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	re, err := glob.Regexp(pattern)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	m.mu.Lock()
	locals := make([]string, 0)
	for full := range m.values {
		if !m.ns.Owns(full) {
			continue
		}
		if _, ok := m.live(full, now); !ok {
			continue
		}
		if local := m.ns.Strip(full); re.MatchString(local) {
			locals = append(locals, local)
		}
	}
	m.mu.Unlock()
	sort.Strings(locals)
	return locals, nil
}

func (m *Memory) Clear(_ context.Context, pattern string) (int, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	re, err := glob.Regexp(pattern)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	m.mu.Lock()
	for full := range m.values {
		if !m.ns.Owns(full) {
			continue
		}
		if _, ok := m.live(full, now); !ok {
			continue
		}
		if re.MatchString(m.ns.Strip(full)) {
			m.drop(full)
			removed++
		}
	}
	m.mu.Unlock()
	return removed, nil
}

func (m *Memory) SetMultiple(_ context.Context, pairs map[string]any, ttlSeconds int64) error {
	if err := m.ready(); err != nil {
		return err
	}
	// encode everything up front so a bad value mutates nothing
	encoded := make(map[string][]byte, len(pairs))
	for key, value := range pairs {
		raw, err := store.Encode(m.codec, value)
		if err != nil {
			return fmt.Errorf("encode %q: %w", key, err)
		}
		encoded[m.ns.Apply(key)] = raw
	}
	exp := store.Deadline(time.Now(), store.ResolveTTL(ttlSeconds, m.defaultTTL))
	m.mu.Lock()
	for full, raw := range encoded {
		m.put(full, raw, exp)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetMultiple(_ context.Context, keys []string) (map[string]any, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	now := time.Now()
	raws := make(map[string][]byte, len(keys))
	m.mu.Lock()
	for _, key := range keys {
		if raw, ok := m.live(m.ns.Apply(key), now); ok {
			raws[key] = raw
		}
	}
	m.mu.Unlock()

	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if raw, ok := raws[key]; ok {
			out[key] = store.Decode(m.codec, raw)
		} else {
			out[key] = nil
		}
	}
	return out, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttlSeconds int64) (bool, error) {
	if err := m.ready(); err != nil {
		return false, err
	}
	if ttlSeconds <= 0 {
		return false, nil
	}
	now := time.Now()
	full := m.ns.Apply(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(full, now); !ok {
		return false, nil
	}
	m.expiries[full] = now.Add(time.Duration(ttlSeconds) * time.Second)
	return true, nil
}

func (m *Memory) TTL(_ context.Context, key string) (store.TTL, error) {
	if err := m.ready(); err != nil {
		return store.NotFound(), err
	}
	full := m.ns.Apply(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(full, time.Now()); !ok {
		return store.NotFound(), nil
	}
	if exp, ok := m.expiries[full]; ok {
		return store.Expiring(exp), nil
	}
	return store.NoExpiry(), nil
}

// Transaction executes ops sequentially. Best-effort only: a failing
// operation propagates its error and earlier effects stay applied.
func (m *Memory) Transaction(ctx context.Context, ops []store.Operation) ([]any, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	results := make([]any, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case store.OpSet:
			if err := m.Set(ctx, op.Key, op.Value, op.TTL); err != nil {
				return nil, err
			}
			results = append(results, true)
		case store.OpGet:
			v, err := m.Get(ctx, op.Key)
			if err != nil {
				return nil, err
			}
			results = append(results, v)
		case store.OpDelete:
			ok, err := m.Delete(ctx, op.Key)
			if err != nil {
				return nil, err
			}
			results = append(results, ok)
		default:
			return nil, fmt.Errorf("anystore: unknown operation kind %d", op.Kind)
		}
	}
	return results, nil
}

func (m *Memory) Info() store.Info { return store.Info{Backend: store.KindMemory} }

// Dump returns a snapshot of the raw stored content by full key.
// Test helper only; not part of the adapter contract.
func (m *Memory) Dump(context.Context) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

// put, drop and live assume m.mu is held.

func (m *Memory) put(full string, raw []byte, exp time.Time) {
	m.values[full] = raw
	if exp.IsZero() {
		delete(m.expiries, full)
	} else {
		m.expiries[full] = exp
	}
}

func (m *Memory) drop(full string) {
	delete(m.values, full)
	delete(m.expiries, full)
}

// live returns the stored bytes when the entry exists and has not expired.
// A past-expiry entry is removed on the spot (lazy expiry).
func (m *Memory) live(full string, now time.Time) ([]byte, bool) {
	raw, ok := m.values[full]
	if !ok {
		return nil, false
	}
	if exp, ok := m.expiries[full]; ok && !exp.After(now) {
		m.drop(full)
		return nil, false
	}
	return raw, true
}

func (m *Memory) removeExpired(context.Context) {
	now := time.Now()
	removed := 0
	m.mu.Lock()
	for full, exp := range m.expiries {
		if !exp.After(now) {
			m.drop(full)
			removed++
		}
	}
	m.mu.Unlock()
	if removed > 0 {
		m.log.Debug("sweep removed expired entries", store.Fields{"count": removed})
	}
}
