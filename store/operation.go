package store

// OpKind tags a transaction element.
type OpKind uint8

const (
	OpSet OpKind = iota + 1
	OpGet
	OpDelete
)

// Operation is one element of a transaction: a tagged variant over
// {set, get, delete} carrying a key and, for set, a value and an optional
// per-operation TTL override in whole seconds.
type Operation struct {
	Kind  OpKind
	Key   string
	Value any
	TTL   int64
}

// SetOp builds a set operation with no per-operation TTL.
func SetOp(key string, value any) Operation {
	return Operation{Kind: OpSet, Key: key, Value: value}
}

// SetOpTTL builds a set operation with a per-operation TTL override.
func SetOpTTL(key string, value any, ttlSeconds int64) Operation {
	return Operation{Kind: OpSet, Key: key, Value: value, TTL: ttlSeconds}
}

// GetOp builds a get operation.
func GetOp(key string) Operation { return Operation{Kind: OpGet, Key: key} }

// DelOp builds a delete operation.
func DelOp(key string) Operation { return Operation{Kind: OpDelete, Key: key} }
