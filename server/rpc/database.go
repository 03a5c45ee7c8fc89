package rpc

import (
	"bytes"
	"context"
	"io"

	digest "github.com/opencontainers/go-digest"
	"google.golang.org/grpc"

	"github.com/spkrepo/spk/storage/cas"
)

// ReadObjectRequest names a blob by digest.
type ReadObjectRequest struct {
	Digest digest.Digest `json:"digest"`
}

// ReadObjectResponse carries a blob's full contents inline. Large blobs are
// expected to go through the payload service instead (spec §4.5); this RPC
// exists for small CAS objects such as recipe/package/embed-stub YAML.
type ReadObjectResponse struct {
	Data []byte `json:"data"`
}

// WriteObjectRequest commits a blob's contents to the CAS.
type WriteObjectRequest struct {
	Data []byte `json:"data"`
}

// WriteObjectResponse reports the digest the CAS assigned.
type WriteObjectResponse struct {
	Digest digest.Digest `json:"digest"`
}

// databaseServer is the handler backing DatabaseServiceDesc (spec §4.5:
// "Database service (gRPC): read/write CAS objects.").
type databaseServer struct {
	store cas.Store
}

func (s *databaseServer) read(ctx context.Context, req *ReadObjectRequest) (*ReadObjectResponse, error) {
	rc, _, err := s.store.OpenPayload(ctx, req.Digest)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return &ReadObjectResponse{Data: data}, nil
}

func (s *databaseServer) write(ctx context.Context, req *WriteObjectRequest) (*WriteObjectResponse, error) {
	dgst, err := s.store.CommitBlob(ctx, bytes.NewReader(req.Data))
	if err != nil {
		return nil, err
	}
	return &WriteObjectResponse{Digest: dgst}, nil
}

func readObjectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ReadObjectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*databaseServer)
	if interceptor == nil {
		return s.read(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/spk.rpc.DatabaseService/Read"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.read(ctx, req.(*ReadObjectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func writeObjectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(WriteObjectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*databaseServer)
	if interceptor == nil {
		return s.write(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/spk.rpc.DatabaseService/Write"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.write(ctx, req.(*WriteObjectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// DatabaseServiceDesc is the hand-registered grpc.ServiceDesc for the
// database service (spec §4.5).
var DatabaseServiceDesc = grpc.ServiceDesc{
	ServiceName: "spk.rpc.DatabaseService",
	HandlerType: (*databaseServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Read", Handler: readObjectHandler},
		{MethodName: "Write", Handler: writeObjectHandler},
	},
	Metadata: "spk/rpc/database.proto",
}

// RegisterDatabaseService registers the database service on srv, delegating
// directly to store.
func RegisterDatabaseService(srv *grpc.Server, store cas.Store) {
	srv.RegisterService(&DatabaseServiceDesc, &databaseServer{store: store})
}
