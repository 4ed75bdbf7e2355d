package proto

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	protov2 "google.golang.org/protobuf/proto"
)

// CodecName is the gRPC content subtype the messages travel under. It is the
// default "proto" subtype, so clients generated from nebula.proto interoperate.
const CodecName = "proto"

// Message is implemented by every wire message in this package.
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// codec encodes the messages of this package and hands generated protobuf
// messages to the protobuf runtime. It replaces grpc's default proto codec.
type codec struct{}

func (codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case Message:
		return m.Marshal()
	case protov2.Message:
		return protov2.Marshal(m)
	default:
		return nil, fmt.Errorf("proto codec: cannot marshal %T", v)
	}
}

func (codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case Message:
		return m.Unmarshal(data)
	case protov2.Message:
		return protov2.Unmarshal(data, m)
	default:
		return fmt.Errorf("proto codec: cannot unmarshal into %T", v)
	}
}

func (codec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(codec{})
}
