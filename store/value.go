package store

import "github.com/unkn0wn-root/anystore/codec"

// Encode normalizes value through c. A nil value produces the same bytes as
// an explicit null, so "no value" and "null value" are indistinguishable once
// stored - that collapse is part of the contract, not an accident.
func Encode(c codec.Codec, value any) ([]byte, error) {
	return c.Encode(value)
}

// Decode decodes stored bytes back into a value. Malformed bytes (a foreign
// writer, a manual edit) decode to the raw text as a best-effort string
// instead of failing the read.
func Decode(c codec.Codec, raw []byte) any {
	v, err := c.Decode(raw)
	if err != nil {
		return string(raw)
	}
	return v
}
