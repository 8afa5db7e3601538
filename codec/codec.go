package codec

// Codec encodes/decodes structured values to []byte for storage.
//
// Every adapter stores the canonical encoded form - even the in-memory one -
// so that a value round-trips identically no matter which engine holds it.
// Encode must map a nil value to the codec's null representation.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}
