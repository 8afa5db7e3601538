// Package sqldb implements the adapter contract over one relational table
// reached through a caller-supplied *sql.DB handle.
//
// Layout: ("key" VARCHAR(255) PRIMARY KEY, value TEXT, expires_at BIGINT NULL,
// created_at BIGINT, updated_at BIGINT), timestamps in unix milliseconds, plus
// a partial index on non-null expires_at so the background sweep deletes
// cheaply. Upserts resolve conflicts on the primary key; every read filters on
// "expires_at IS NULL OR expires_at > now".
//
// Patterns translate to SQL LIKE ('*' -> '%', '?' -> '_'). Literal '%'/'_'
// characters in stored keys are not escaped before substitution; the engine
// treats them as wildcards. Documented limitation, kept as-is.
//
// The statements target SQLite and PostgreSQL style SQL (ON CONFLICT upsert,
// '?' placeholders as supported by the driver in use).
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/unkn0wn-root/anystore/codec"
	"github.com/unkn0wn-root/anystore/internal/glob"
	"github.com/unkn0wn-root/anystore/internal/sweeper"
	"github.com/unkn0wn-root/anystore/store"
)

// DefaultTable is the backing table name when Config.Table is empty.
const DefaultTable = "anystore_kv"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config tunes a SQL adapter.
type Config struct {
	// Namespace must be empty or end with ":".
	Namespace string
	// DB is the already-connected handle. Required.
	DB *sql.DB
	// Table is the backing table name; empty means DefaultTable.
	Table string
	// DefaultTTL in whole seconds; 0 disables the default.
	DefaultTTL int64
	// CleanupIntervalSec is the sweep interval; 0 disables the sweeper.
	CleanupIntervalSec int64
	// CloseDB closes the handle on Destroy. Set it only when this adapter
	// exclusively owns the connection.
	CloseDB bool

	Codec  codec.Codec  // nil => codec.JSON{}
	Logger store.Logger // nil => store.NopLogger{}
}

// SQL is the relational backend.
type SQL struct {
	ns         store.Namespace
	db         *sql.DB
	table      string
	defaultTTL int64
	sweepEvery time.Duration
	closeDB    bool
	codec      codec.Codec
	log        store.Logger
	q          statements

	mu          sync.Mutex
	initialized bool
	sweep       *sweeper.Sweeper
}

var _ store.Store = (*SQL)(nil)

// statements holds the per-table query text, built once at construction.
type statements struct {
	upsert   string
	get      string
	del      string
	exists   string
	keys     string
	clear    string
	expire   string
	ttl      string
	sweep    string
	dump     string
	createT  string
	createIx string
	dropT    string
}

func New(cfg Config) (*SQL, error) {
	ns := store.Namespace(cfg.Namespace)
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	if cfg.DB == nil {
		return nil, &store.MissingOptionError{Option: "DB"}
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("anystore: invalid table name %q", table)
	}
	s := &SQL{
		ns:         ns,
		db:         cfg.DB,
		table:      table,
		defaultTTL: cfg.DefaultTTL,
		closeDB:    cfg.CloseDB,
		codec:      cfg.Codec,
		log:        cfg.Logger,
		q:          buildStatements(table),
	}
	if cfg.CleanupIntervalSec > 0 {
		s.sweepEvery = time.Duration(cfg.CleanupIntervalSec) * time.Second
	}
	if s.codec == nil {
		s.codec = codec.JSON{}
	}
	if s.log == nil {
		s.log = store.NopLogger{}
	}
	return s, nil
}

func buildStatements(table string) statements {
	const live = `(expires_at IS NULL OR expires_at > ?)`
	return statements{
		createT: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			"key" VARCHAR(255) PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at BIGINT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`, table),
		createIx: fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_expires_at
			ON %s (expires_at) WHERE expires_at IS NOT NULL`, table, table),
		dropT: fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table),
		upsert: fmt.Sprintf(`INSERT INTO %s ("key", value, expires_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT("key") DO UPDATE SET
				value = excluded.value,
				expires_at = excluded.expires_at,
				updated_at = excluded.updated_at`, table),
		get:    fmt.Sprintf(`SELECT value FROM %s WHERE "key" = ? AND %s`, table, live),
		del:    fmt.Sprintf(`DELETE FROM %s WHERE "key" = ? AND %s`, table, live),
		exists: fmt.Sprintf(`SELECT 1 FROM %s WHERE "key" = ? AND %s`, table, live),
		keys:   fmt.Sprintf(`SELECT "key" FROM %s WHERE "key" LIKE ? AND %s ORDER BY "key"`, table, live),
		clear:  fmt.Sprintf(`DELETE FROM %s WHERE "key" LIKE ? AND %s`, table, live),
		expire: fmt.Sprintf(`UPDATE %s SET expires_at = ?, updated_at = ? WHERE "key" = ? AND %s`, table, live),
		ttl:    fmt.Sprintf(`SELECT expires_at FROM %s WHERE "key" = ? AND %s`, table, live),
		sweep:  fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at <= ?`, table),
		dump:   fmt.Sprintf(`SELECT "key", value FROM %s WHERE "key" LIKE ?`, table),
	}
}

// Initialize ensures the backing table and expiry index exist and starts the
// sweeper when an interval is configured. Calling it again is a no-op.
func (s *SQL) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, s.q.createT); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.q.createIx); err != nil {
		return err
	}
	if s.sweepEvery > 0 {
		s.sweep = sweeper.Start(s.sweepEvery, s.removeExpired)
	}
	s.initialized = true
	return nil
}

// Destroy stops the sweeper and, when hard, drops the whole backing table
// (every namespace in it, irreversibly). The handle is closed only when the
// adapter owns it per Config.CloseDB.
func (s *SQL) Destroy(ctx context.Context, hard bool) error {
	s.mu.Lock()
	sw := s.sweep
	s.sweep = nil
	s.initialized = false
	s.mu.Unlock()
	sw.Stop()

	if hard {
		if _, err := s.db.ExecContext(ctx, s.q.dropT); err != nil {
			return err
		}
	}
	if s.closeDB {
		return s.db.Close()
	}
	return nil
}

func (s *SQL) ready() error {
	s.mu.Lock()
	ok := s.initialized
	s.mu.Unlock()
	if !ok {
		return store.ErrNotInitialized
	}
	return nil
}

// dbtx is the slice of database/sql shared by *sql.DB and *sql.Tx, so the
// single-operation paths and the transactional path run the same statements.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func (s *SQL) expiresArg(ttlSeconds int64, now time.Time) sql.NullInt64 {
	deadline := store.Deadline(now, store.ResolveTTL(ttlSeconds, s.defaultTTL))
	if deadline.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: deadline.UnixMilli(), Valid: true}
}

func (s *SQL) setOn(ctx context.Context, run dbtx, key string, value any, ttlSeconds int64) error {
	raw, err := store.Encode(s.codec, value)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = run.ExecContext(ctx, s.q.upsert,
		s.ns.Apply(key), string(raw), s.expiresArg(ttlSeconds, now), now.UnixMilli(), now.UnixMilli())
	return err
}

func (s *SQL) getOn(ctx context.Context, run dbtx, key string) (any, error) {
	var raw string
	err := run.QueryRowContext(ctx, s.q.get, s.ns.Apply(key), nowMillis()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return store.Decode(s.codec, []byte(raw)), nil
}

func (s *SQL) deleteOn(ctx context.Context, run dbtx, key string) (bool, error) {
	res, err := run.ExecContext(ctx, s.q.del, s.ns.Apply(key), nowMillis())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQL) Set(ctx context.Context, key string, value any, ttlSeconds int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.setOn(ctx, s.db, key, value, ttlSeconds)
}

func (s *SQL) Get(ctx context.Context, key string) (any, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.getOn(ctx, s.db, key)
}

func (s *SQL) Delete(ctx context.Context, key string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.deleteOn(ctx, s.db, key)
}

func (s *SQL) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	var one int
	err := s.db.QueryRowContext(ctx, s.q.exists, s.ns.Apply(key), nowMillis()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Keys delegates matching to the engine via LIKE and relies on ORDER BY for
// the lexicographic result invariant (full-key order equals local-key order
// because every row shares the namespace prefix).
func (s *SQL) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.q.keys, string(s.ns)+glob.Like(pattern), nowMillis())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locals := make([]string, 0)
	for rows.Next() {
		var full string
		if err := rows.Scan(&full); err != nil {
			return nil, err
		}
		locals = append(locals, s.ns.Strip(full))
	}
	return locals, rows.Err()
}

func (s *SQL) Clear(ctx context.Context, pattern string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.q.clear, string(s.ns)+glob.Like(pattern), nowMillis())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SetMultiple writes all pairs inside one database transaction.
func (s *SQL) SetMultiple(ctx context.Context, pairs map[string]any, ttlSeconds int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for key, value := range pairs {
		if err := s.setOn(ctx, tx, key, value, ttlSeconds); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQL) GetMultiple(ctx context.Context, keys []string) (map[string]any, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		out[key] = nil
	}
	if len(keys) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(keys)+1)
	for _, key := range keys {
		args = append(args, s.ns.Apply(key))
	}
	args = append(args, nowMillis())
	query := fmt.Sprintf(`SELECT "key", value FROM %s WHERE "key" IN (%s) AND (expires_at IS NULL OR expires_at > ?)`,
		s.table, placeholders(len(keys)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var full, raw string
		if err := rows.Scan(&full, &raw); err != nil {
			return nil, err
		}
		out[s.ns.Strip(full)] = store.Decode(s.codec, []byte(raw))
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQL) Expire(ctx context.Context, key string, ttlSeconds int64) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	if ttlSeconds <= 0 {
		return false, nil
	}
	now := time.Now()
	deadline := now.Add(time.Duration(ttlSeconds) * time.Second)
	res, err := s.db.ExecContext(ctx, s.q.expire,
		deadline.UnixMilli(), now.UnixMilli(), s.ns.Apply(key), now.UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQL) TTL(ctx context.Context, key string) (store.TTL, error) {
	if err := s.ready(); err != nil {
		return store.NotFound(), err
	}
	var expires sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.q.ttl, s.ns.Apply(key), nowMillis()).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return store.NotFound(), nil
	}
	if err != nil {
		return store.NotFound(), err
	}
	if !expires.Valid {
		return store.NoExpiry(), nil
	}
	return store.Expiring(time.UnixMilli(expires.Int64)), nil
}

// Transaction wraps ops in a database transaction: any failure rolls the
// whole batch back and propagates, leaving no partial effect.
func (s *SQL) Transaction(ctx context.Context, ops []store.Operation) ([]any, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	results := make([]any, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case store.OpSet:
			if err := s.setOn(ctx, tx, op.Key, op.Value, op.TTL); err != nil {
				_ = tx.Rollback()
				return nil, err
			}
			results = append(results, true)
		case store.OpGet:
			v, err := s.getOn(ctx, tx, op.Key)
			if err != nil {
				_ = tx.Rollback()
				return nil, err
			}
			results = append(results, v)
		case store.OpDelete:
			ok, err := s.deleteOn(ctx, tx, op.Key)
			if err != nil {
				_ = tx.Rollback()
				return nil, err
			}
			results = append(results, ok)
		default:
			_ = tx.Rollback()
			return nil, fmt.Errorf("anystore: unknown operation kind %d", op.Kind)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *SQL) Info() store.Info { return store.Info{Backend: store.KindSQL} }

// Dump returns a snapshot of the raw stored content by full key, expired
// rows included. Test helper only; not part of the adapter contract.
func (s *SQL) Dump(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, s.q.dump, string(s.ns)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var full, raw string
		if err := rows.Scan(&full, &raw); err != nil {
			return nil, err
		}
		out[full] = []byte(raw)
	}
	return out, rows.Err()
}

// removeExpired is the sweep body: one bulk delete of past-expiry rows.
func (s *SQL) removeExpired(ctx context.Context) {
	res, err := s.db.ExecContext(ctx, s.q.sweep, nowMillis())
	if err != nil {
		s.log.Error("expiry sweep failed", store.Fields{"table": s.table, "err": err})
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.log.Debug("expiry sweep removed rows", store.Fields{"table": s.table, "rows": n})
	}
}
