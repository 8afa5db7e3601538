package store

import "context"

// Kind tags the engine behind an adapter.
type Kind string

const (
	KindMemory Kind = "memory"
	KindSQL    Kind = "sql"
	KindRedis  Kind = "redis"
)

// Info is the backend identity returned by Store.Info.
type Info struct {
	Backend Kind `json:"backend"`
}

// Store is the uniform operation set every backend implements.
//
// Initialize must be called before any other operation; operations invoked
// earlier fail with ErrNotInitialized. Destroy releases resources, stops any
// background sweep and is safe to call even when Initialize never ran or the
// adapter was already destroyed. Destroy(ctx, true) additionally drops the
// entire backing structure - not just this namespace's entries - and exists
// for test teardown.
//
// Keys are local (caller-visible) keys; the adapter applies its namespace on
// the way in and strips it on the way out. TTLs are whole seconds relative to
// the call instant; 0 means "use the adapter default", and a zero default
// means "never expires".
type Store interface {
	Initialize(ctx context.Context) error
	Destroy(ctx context.Context, hard bool) error

	// Set upserts key; the previous value and expiry are replaced, never merged.
	Set(ctx context.Context, key string, value any, ttlSeconds int64) error
	// Get returns the decoded value, or nil for a missing or expired key.
	Get(ctx context.Context, key string) (any, error)
	// Delete reports whether a live entry existed and was removed.
	Delete(ctx context.Context, key string) (bool, error)
	// Exists reports whether a live entry is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Keys returns all local keys matching pattern, sorted lexicographically.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Clear removes all entries matching pattern and returns the count removed.
	Clear(ctx context.Context, pattern string) (int, error)

	// SetMultiple upserts all pairs with one resolved TTL.
	SetMultiple(ctx context.Context, pairs map[string]any, ttlSeconds int64) error
	// GetMultiple returns exactly one entry per requested key, nil for any
	// missing or expired key. A requested key is never omitted.
	GetMultiple(ctx context.Context, keys []string) (map[string]any, error)

	// Expire replaces the expiry of a live key with a new future deadline.
	// It reports false when the key is missing, already expired, or
	// ttlSeconds is not positive.
	Expire(ctx context.Context, key string, ttlSeconds int64) (bool, error)
	// TTL reports the tri-state expiry of key. See TTL type.
	TTL(ctx context.Context, key string) (TTL, error)

	// Transaction executes ops in order and returns one result per operation:
	// true for set, the decoded value for get, the Delete boolean for delete.
	// The atomicity guarantee is backend-specific and documented per adapter.
	Transaction(ctx context.Context, ops []Operation) ([]any, error)

	Info() Info
}
