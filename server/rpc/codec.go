// Package rpc implements the four gRPC services of the network server
// (spec §4.5, C5): repository metadata, tag, database, and payload. The
// wire protocol of the underlying CAS is explicitly out of scope (spec
// §6) and no .proto-derived stubs are available in the retrieved pack, so
// each service is registered by hand as a grpc.ServiceDesc over a small
// JSON codec rather than invented generated code — a documented, first
// class extension point of google.golang.org/grpc (see DESIGN.md).
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype negotiated for these services
// ("application/grpc+json"). Clients opt in with grpc.CallContentSubtype
// or grpc.ForceCodec; servers always understand it once registered.
const codecName = "json"

// jsonCodec implements encoding.Codec by marshaling through encoding/json,
// standing in for the protobuf codec grpc.Server uses by default. Request
// and response types in this package are plain structs with json tags.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
