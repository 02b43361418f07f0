package storefrontv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName задаёт content-subtype, под которым зарегистрирован кодек.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec сериализует сообщения API в JSON.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("json codec: nil message")
	}
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (Codec) Name() string {
	return CodecName
}

// WithJSONCodec выбирает JSON-кодек для вызова.
func WithJSONCodec() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
