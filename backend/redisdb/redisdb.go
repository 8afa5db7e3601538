// Package redisdb implements the adapter contract over a caller-supplied
// go-redis UniversalClient.
//
// Each operation maps to one native command (or a pipelined batch for the
// plural forms). Expiry is delegated to redis TTLs, so there is no sweeper.
// A namespace is mandatory here: without it, pattern scans would walk the
// whole keyspace of a shared server.
//
// Documented limitations of this backend:
//   - Delete always reports true; the native reply count is ignored so the
//     result shape stays stable (kept as-is, inherited behavior).
//   - Cluster deployments disable pattern operations entirely; Keys and
//     Clear fail fast with store.ErrClusterPattern.
//   - Clear is a non-atomic scan-then-delete two-step: under concurrent
//     writers a key created between the steps is missed. Best effort, not a
//     snapshot-consistent sweep.
package redisdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/anystore/codec"
	"github.com/unkn0wn-root/anystore/internal/glob"
	"github.com/unkn0wn-root/anystore/store"
)

const scanCount = 256

// Config tunes a Redis adapter.
type Config struct {
	// Namespace must be non-empty and end with ":". Mandatory for this
	// backend so pattern scans stay scoped.
	Namespace string
	// Client is the already-connected handle. Required.
	Client redis.UniversalClient
	// Cluster disables pattern operations (Keys, Clear).
	Cluster bool
	// DefaultTTL in whole seconds; 0 disables the default.
	DefaultTTL int64
	// CloseClient closes the handle on Destroy. Set it only when this
	// adapter exclusively owns the client.
	CloseClient bool

	Codec  codec.Codec  // nil => codec.JSON{}
	Logger store.Logger // nil => store.NopLogger{}
}

// Redis is the remote-server backend.
type Redis struct {
	ns          store.Namespace
	rdb         redis.UniversalClient
	cluster     bool
	defaultTTL  int64
	closeClient bool
	codec       codec.Codec
	log         store.Logger

	mu          sync.Mutex
	initialized bool
}

var _ store.Store = (*Redis)(nil)

func New(cfg Config) (*Redis, error) {
	ns := store.Namespace(cfg.Namespace)
	if ns == "" {
		return nil, &store.InvalidNamespaceError{
			Namespace: "",
			Reason:    "must not be empty for the redis backend",
		}
	}
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, &store.MissingOptionError{Option: "Client"}
	}
	r := &Redis{
		ns:          ns,
		rdb:         cfg.Client,
		cluster:     cfg.Cluster,
		defaultTTL:  cfg.DefaultTTL,
		closeClient: cfg.CloseClient,
		codec:       cfg.Codec,
		log:         cfg.Logger,
	}
	if r.codec == nil {
		r.codec = codec.JSON{}
	}
	if r.log == nil {
		r.log = store.NopLogger{}
	}
	return r, nil
}

// Initialize verifies the connection with a ping.
func (r *Redis) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil
	}
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	r.initialized = true
	return nil
}

// Destroy releases the client when the adapter owns it. With hard=true the
// whole database is flushed first - every key on the server, not just this
// namespace. Test teardown only.
func (r *Redis) Destroy(ctx context.Context, hard bool) error {
	r.mu.Lock()
	r.initialized = false
	r.mu.Unlock()

	if hard {
		if err := r.rdb.FlushDB(ctx).Err(); err != nil {
			return err
		}
	}
	if r.closeClient {
		if err := r.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			return err
		}
	}
	return nil
}

func (r *Redis) ready() error {
	r.mu.Lock()
	ok := r.initialized
	r.mu.Unlock()
	if !ok {
		return store.ErrNotInitialized
	}
	return nil
}

func (r *Redis) expiration(ttlSeconds int64) time.Duration {
	resolved := store.ResolveTTL(ttlSeconds, r.defaultTTL)
	if resolved <= 0 {
		return 0 // no expiry
	}
	return time.Duration(resolved) * time.Second
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttlSeconds int64) error {
	if err := r.ready(); err != nil {
		return err
	}
	raw, err := store.Encode(r.codec, value)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.ns.Apply(key), raw, r.expiration(ttlSeconds)).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (any, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	raw, err := r.rdb.Get(ctx, r.ns.Apply(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // miss
	}
	if err != nil {
		return nil, err
	}
	return store.Decode(r.codec, raw), nil
}

// Delete always reports true on success; DEL's reply count is ignored.
// See the package documentation.
func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	if err := r.rdb.Del(ctx, r.ns.Apply(key)).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	n, err := r.rdb.Exists(ctx, r.ns.Apply(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys scans on the namespace plus the pattern's literal prefix and refines
// the candidates client-side with the full anchored expression, avoiding a
// whole-keyspace walk whenever the pattern starts with literal text.
func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	locals, err := r.scanMatching(ctx, pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(locals)
	return locals, nil
}

// escapeMatch backslash-quotes redis glob metacharacters so namespace and
// prefix text is matched literally in SCAN's MATCH argument.
func escapeMatch(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func (r *Redis) scanMatching(ctx context.Context, pattern string) ([]string, error) {
	if r.cluster {
		return nil, store.ErrClusterPattern
	}
	re, err := glob.Regexp(pattern)
	if err != nil {
		return nil, err
	}
	match := escapeMatch(string(r.ns)+glob.LiteralPrefix(pattern)) + "*"

	var locals []string
	iter := r.rdb.Scan(ctx, 0, match, scanCount).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		if !r.ns.Owns(full) {
			continue
		}
		if local := r.ns.Strip(full); re.MatchString(local) {
			locals = append(locals, local)
		}
	}
	return locals, iter.Err()
}

// Clear lists matching keys, then deletes them. Non-atomic two-step; see the
// package documentation.
func (r *Redis) Clear(ctx context.Context, pattern string) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	locals, err := r.scanMatching(ctx, pattern)
	if err != nil {
		if !errors.Is(err, store.ErrClusterPattern) {
			r.log.Error("clear scan failed", store.Fields{
				"pattern": pattern,
				"error":   err.Error(),
			})
		}
		return 0, err
	}
	if len(locals) == 0 {
		return 0, nil
	}
	fulls := make([]string, len(locals))
	for i, local := range locals {
		fulls[i] = r.ns.Apply(local)
	}
	if err := r.rdb.Del(ctx, fulls...).Err(); err != nil {
		r.log.Error("clear delete failed", store.Fields{
			"pattern": pattern,
			"keys":    len(fulls),
			"error":   err.Error(),
		})
		return 0, err
	}
	return len(fulls), nil
}

// SetMultiple pipelines one SET per pair so each write carries the TTL.
func (r *Redis) SetMultiple(ctx context.Context, pairs map[string]any, ttlSeconds int64) error {
	if err := r.ready(); err != nil {
		return err
	}
	exp := r.expiration(ttlSeconds)
	pipe := r.rdb.Pipeline()
	for key, value := range pairs {
		raw, err := store.Encode(r.codec, value)
		if err != nil {
			return fmt.Errorf("encode %q: %w", key, err)
		}
		pipe.Set(ctx, r.ns.Apply(key), raw, exp)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) GetMultiple(ctx context.Context, keys []string) (map[string]any, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	fulls := make([]string, len(keys))
	for i, key := range keys {
		fulls[i] = r.ns.Apply(key)
	}
	vals, err := r.rdb.MGet(ctx, fulls...).Result()
	if err != nil {
		return nil, err
	}
	for i, key := range keys {
		switch raw := vals[i].(type) {
		case nil:
			out[key] = nil
		case string:
			out[key] = store.Decode(r.codec, []byte(raw))
		default:
			out[key] = nil
		}
	}
	return out, nil
}

func (r *Redis) Expire(ctx context.Context, key string, ttlSeconds int64) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	if ttlSeconds <= 0 {
		return false, nil
	}
	return r.rdb.Expire(ctx, r.ns.Apply(key), time.Duration(ttlSeconds)*time.Second).Result()
}

func (r *Redis) TTL(ctx context.Context, key string) (store.TTL, error) {
	if err := r.ready(); err != nil {
		return store.NotFound(), err
	}
	d, err := r.rdb.PTTL(ctx, r.ns.Apply(key)).Result()
	if err != nil {
		return store.NotFound(), err
	}
	// go-redis passes PTTL's sentinel replies through as the raw integers
	// -2 (missing) and -1 (no expiry), unscaled by the command precision
	switch {
	case d == -2:
		return store.NotFound(), nil
	case d < 0:
		return store.NoExpiry(), nil
	}
	return store.Expiring(time.Now().Add(d)), nil
}

// Transaction queues every operation on a MULTI/EXEC pipeline and executes
// them as one unit. Native replies are coerced back to the per-operation
// result shapes: a write acknowledgment becomes true, a nil reply becomes a
// nil value, a DEL count becomes the same constant true as Delete.
func (r *Redis) Transaction(ctx context.Context, ops []store.Operation) ([]any, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	type queued struct {
		kind store.OpKind
		cmd  redis.Cmder
	}
	pipe := r.rdb.TxPipeline()
	cmds := make([]queued, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case store.OpSet:
			raw, err := store.Encode(r.codec, op.Value)
			if err != nil {
				return nil, err
			}
			cmds = append(cmds, queued{op.Kind, pipe.Set(ctx, r.ns.Apply(op.Key), raw, r.expiration(op.TTL))})
		case store.OpGet:
			cmds = append(cmds, queued{op.Kind, pipe.Get(ctx, r.ns.Apply(op.Key))})
		case store.OpDelete:
			cmds = append(cmds, queued{op.Kind, pipe.Del(ctx, r.ns.Apply(op.Key))})
		default:
			return nil, fmt.Errorf("anystore: unknown operation kind %d", op.Kind)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	results := make([]any, 0, len(cmds))
	for _, q := range cmds {
		switch q.kind {
		case store.OpSet:
			if err := q.cmd.Err(); err != nil {
				return nil, err
			}
			results = append(results, true)
		case store.OpGet:
			sc := q.cmd.(*redis.StringCmd)
			if errors.Is(sc.Err(), redis.Nil) {
				results = append(results, nil)
				continue
			}
			raw, err := sc.Bytes()
			if err != nil {
				return nil, err
			}
			results = append(results, store.Decode(r.codec, raw))
		case store.OpDelete:
			if err := q.cmd.Err(); err != nil {
				return nil, err
			}
			results = append(results, true)
		}
	}
	return results, nil
}

func (r *Redis) Info() store.Info { return store.Info{Backend: store.KindRedis} }

// Dump returns a snapshot of the raw stored content by full key.
// Test helper only; not part of the adapter contract.
func (r *Redis) Dump(ctx context.Context) (map[string][]byte, error) {
	var fulls []string
	iter := r.rdb.Scan(ctx, 0, escapeMatch(string(r.ns))+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		fulls = append(fulls, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(fulls))
	if len(fulls) == 0 {
		return out, nil
	}
	vals, err := r.rdb.MGet(ctx, fulls...).Result()
	if err != nil {
		return nil, err
	}
	for i, full := range fulls {
		if raw, ok := vals[i].(string); ok {
			out[full] = []byte(raw)
		}
	}
	return out, nil
}
