// Package anystore exposes one uniform key-value contract over heterogeneous
// storage engines: an in-process map, a relational table and a redis server.
//
// Components:
//   - store.Store: the adapter contract (set/get/delete/exists, glob pattern
//     listing, batch forms, transactions, whole-second TTLs, tri-state TTL
//     queries).
//   - codec.Codec: (de)serializes values <-> []byte. JSON by default; nil
//     values collapse to null so "no value" and "null value" store alike.
//   - backend/memory, backend/sqldb, backend/redisdb: one adapter per engine,
//     each reconciling its engine's native notion of expiry, atomicity and
//     pattern search into the same observable behavior.
//
// Keys:
//
//	<namespace><key> - namespaces are empty or end with ":", fixed at
//	construction. Callers only ever see the local (de-prefixed) key.
//
// Typical use:
//
//	s, err := anystore.New("app:", anystore.Memory, anystore.Options{DefaultTTL: 300})
//	if err != nil { ... }
//	if err := s.Initialize(ctx); err != nil { ... }
//	defer s.Destroy(ctx, false)
//
//	_ = s.Set(ctx, "user:1", map[string]any{"name": "ada"}, 0)
//	v, _ := s.Get(ctx, "user:1")
package anystore
