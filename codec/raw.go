package codec

import "fmt"

// Bytes is an identity codec for []byte values. Encode passes the slice
// through unchanged and Decode returns the stored bytes as-is. Useful when
// the caller already holds serialized data and only needs the adapter's
// namespacing and TTL handling.
type Bytes struct{}

var _ Codec = Bytes{}

func (Bytes) Encode(v any) ([]byte, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	}
	return nil, fmt.Errorf("codec: bytes encode: want []byte or string, got %T", v)
}

func (Bytes) Decode(b []byte) (any, error) { return b, nil }
