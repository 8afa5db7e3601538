package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf serializes proto.Message values. Because the store contract is
// untyped, the concrete message type is injected via a constructor function
// (e.g. func() proto.Message { return &mypb.User{} }).
//
// Encode accepts only values implementing proto.Message; a nil value encodes
// as an empty message, the closest protobuf has to null.
type Protobuf struct {
	new func() proto.Message
}

var _ Codec = Protobuf{}

func NewProtobuf(ctor func() proto.Message) Protobuf {
	return Protobuf{new: ctor}
}

func (c Protobuf) Encode(v any) ([]byte, error) {
	if v == nil {
		return proto.Marshal(c.new())
	}
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("codec: protobuf encode: %T does not implement proto.Message", v)
	}
	return proto.Marshal(m)
}

func (c Protobuf) Decode(b []byte) (any, error) {
	m := c.new()
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, err
	}
	return m, nil
}
