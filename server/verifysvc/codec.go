package verifysvc

import "encoding/json"

// jsonCodec is a connect.Codec over plain Go structs rather than
// protobuf messages. The service's request/response shapes are small
// and JSON-native (method token, IL bytes as base64, verifier
// diagnostics); protobuf's generated-stub machinery buys nothing here,
// and connect's Codec interface is deliberately payload-agnostic (it
// marshals `any`, not `proto.Message`), so registering a codec by name
// is the documented way to run Connect/gRPC transport over a
// non-protobuf wire format.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
