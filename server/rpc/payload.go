package rpc

import (
	"context"
	"strings"

	digest "github.com/opencontainers/go-digest"
	"google.golang.org/grpc"
)

// PayloadPathPrefix is the CAS-internal HTTP path prefix a payload URL is
// built from (spec §4.5, §6): a digest is appended to form the single GET
// (download)/PUT (upload) path the HTTP payload endpoint serves.
const PayloadPathPrefix = "/payload/"

// PayloadPath returns the CAS-internal path for dgst.
func PayloadPath(dgst digest.Digest) string {
	return PayloadPathPrefix + dgst.String()
}

// NegotiateRequest names the blob digest a caller intends to either
// download (GET) or upload (PUT) against the returned URL. For an upload,
// the caller supplies the digest it expects its content to hash to; the
// HTTP endpoint rejects a PUT whose body does not match.
type NegotiateRequest struct {
	Digest digest.Digest `json:"digest"`
}

// NegotiateResponse carries the payload URL formed by prefixing the
// configured external root to the CAS-internal path (spec §4.5).
type NegotiateResponse struct {
	URL string `json:"url"`
}

// payloadServer is the handler backing PayloadServiceDesc (spec §4.5:
// "Payload service (gRPC + HTTP): negotiate upload/download of blob
// payloads.").
type payloadServer struct {
	urlRoot string
}

func (s *payloadServer) negotiate(ctx context.Context, req *NegotiateRequest) (*NegotiateResponse, error) {
	root := strings.TrimSuffix(s.urlRoot, "/")
	return &NegotiateResponse{URL: root + PayloadPath(req.Digest)}, nil
}

func negotiatePayloadHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(NegotiateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*payloadServer)
	if interceptor == nil {
		return s.negotiate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/spk.rpc.PayloadService/Negotiate"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.negotiate(ctx, req.(*NegotiateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// PayloadServiceDesc is the hand-registered grpc.ServiceDesc for the
// payload service (spec §4.5).
var PayloadServiceDesc = grpc.ServiceDesc{
	ServiceName: "spk.rpc.PayloadService",
	HandlerType: (*payloadServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Negotiate", Handler: negotiatePayloadHandler},
	},
	Metadata: "spk/rpc/payload.proto",
}

// RegisterPayloadService registers the payload service on srv. urlRoot is
// the externally-reachable URL root (e.g. "http://host:7787") prefixed to
// every negotiated payload path.
func RegisterPayloadService(srv *grpc.Server, urlRoot string) {
	srv.RegisterService(&PayloadServiceDesc, &payloadServer{urlRoot: urlRoot})
}
