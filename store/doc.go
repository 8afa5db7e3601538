// Package store defines the uniform adapter contract shared by every backend.
//
// A Store is one concrete storage engine (in-memory map, relational table,
// redis server) exposed through one operation set with identical observable
// semantics: value normalization through a codec, namespace prefixing,
// whole-second TTL arithmetic, glob pattern matching with lexicographically
// sorted results, and ordered transactions.
//
// Implementations MUST keep the contract total: optional-value returns
// (nil value, false, TTL NotFound) are reserved for well-defined domain
// outcomes (missing key, expired key, unset expiry) and are never used in
// place of a real backend fault. Backend faults propagate to the caller
// unchanged and are never retried internally.
//
// A backend that cannot query or replace an expiry after the initial write
// must still accept a TTL on Set where it can, and must answer Expire with
// false and TTL with NoExpiry instead of failing, so that no operation errors
// solely because a feature is unsupported on that engine. The only allowed
// fail-fast gaps are pattern operations in cluster mode and missing required
// construction options.
package store
