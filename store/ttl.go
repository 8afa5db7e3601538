package store

import "time"

// TTLState enumerates the three possible answers to a TTL query.
type TTLState uint8

const (
	// TTLNotFound - the key is missing or already expired.
	TTLNotFound TTLState = iota
	// TTLNoExpiry - the key exists and never expires.
	TTLNoExpiry
	// TTLExpiresAt - the key exists and expires at TTL.ExpiresAt.
	TTLExpiresAt
)

// TTL is the tri-state result of Store.TTL. The three variants are load
// bearing: callers distinguish "permanent" from "absent" only through them,
// so adapters must never collapse NoExpiry and NotFound into one shape.
type TTL struct {
	State     TTLState
	ExpiresAt time.Time // set only when State == TTLExpiresAt
}

// Expiring builds the TTLExpiresAt variant.
func Expiring(at time.Time) TTL { return TTL{State: TTLExpiresAt, ExpiresAt: at} }

// NoExpiry is the "exists, never expires" answer.
func NoExpiry() TTL { return TTL{State: TTLNoExpiry} }

// NotFound is the "missing or expired" answer.
func NotFound() TTL { return TTL{State: TTLNotFound} }

// ResolveTTL applies the write-time precedence: the per-call TTL wins when
// positive, otherwise the adapter default. Zero at both levels means the
// entry never expires - 0 is "unset", not "expire immediately".
func ResolveTTL(perCall, adapterDefault int64) int64 {
	if perCall > 0 {
		return perCall
	}
	return adapterDefault
}

// Deadline converts relative whole seconds into the absolute expiry instant.
// Non-positive seconds yield the zero time, meaning "never expires".
func Deadline(now time.Time, seconds int64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(seconds) * time.Second)
}
