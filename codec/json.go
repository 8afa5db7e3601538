package codec

import "encoding/json"

// JSON is the default codec. Values are stored in canonical JSON form, so a
// nil value and an explicit null encode to the same bytes, and numbers decode
// as float64. The zero value is ready to use.
type JSON struct{}

var _ Codec = JSON{}

func (JSON) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Decode(b []byte) (any, error) {
	var v any
	err := json.Unmarshal(b, &v)
	return v, err
}
