package anystore

import (
	"database/sql"

	redis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/anystore/backend/memory"
	"github.com/unkn0wn-root/anystore/backend/redisdb"
	"github.com/unkn0wn-root/anystore/backend/sqldb"
	"github.com/unkn0wn-root/anystore/codec"
	"github.com/unkn0wn-root/anystore/store"
)

// Store is an alias for the adapter contract -> anystore.Store at the call site.
type Store = store.Store

// Operation is an alias for the transaction element type.
type Operation = store.Operation

// Backend kinds accepted by New.
const (
	Memory = store.KindMemory
	SQL    = store.KindSQL
	Redis  = store.KindRedis
)

// Options is the flat construction surface of New. Shared fields apply to
// every backend; the rest are read only by the backend they belong to.
// Prefer the per-backend Config structs (memory.Config, sqldb.Config,
// redisdb.Config) when constructing an adapter directly.
type Options struct {
	// Shared
	DefaultTTL int64        // whole seconds; 0 disables the default
	Codec      codec.Codec  // nil => codec.JSON{}
	Logger     store.Logger // nil => store.NopLogger{}

	// Memory and SQL: sweep interval in seconds; 0 disables the sweeper.
	CleanupIntervalSec int64

	// SQL
	DB      *sql.DB
	Table   string // empty => sqldb.DefaultTable
	CloseDB bool

	// Redis
	Client      redis.UniversalClient
	Cluster     bool
	CloseClient bool
}

// New maps a backend kind tag to the matching adapter constructor. It fails
// with store.UnsupportedBackendError for an unknown tag and with the
// constructor's own error for invalid namespaces or missing handles.
func New(namespace string, backend store.Kind, opts Options) (store.Store, error) {
	switch backend {
	case store.KindMemory:
		return memory.New(memory.Config{
			Namespace:          namespace,
			DefaultTTL:         opts.DefaultTTL,
			CleanupIntervalSec: opts.CleanupIntervalSec,
			Codec:              opts.Codec,
			Logger:             opts.Logger,
		})
	case store.KindSQL:
		return sqldb.New(sqldb.Config{
			Namespace:          namespace,
			DB:                 opts.DB,
			Table:              opts.Table,
			DefaultTTL:         opts.DefaultTTL,
			CleanupIntervalSec: opts.CleanupIntervalSec,
			CloseDB:            opts.CloseDB,
			Codec:              opts.Codec,
			Logger:             opts.Logger,
		})
	case store.KindRedis:
		return redisdb.New(redisdb.Config{
			Namespace:   namespace,
			Client:      opts.Client,
			Cluster:     opts.Cluster,
			DefaultTTL:  opts.DefaultTTL,
			CloseClient: opts.CloseClient,
			Codec:       opts.Codec,
			Logger:      opts.Logger,
		})
	}
	return nil, &store.UnsupportedBackendError{Backend: string(backend)}
}
