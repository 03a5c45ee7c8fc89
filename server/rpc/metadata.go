package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServerInfo is the static response of the repository metadata service
// (spec §4.5): server version and repository identity.
type ServerInfo struct {
	// ServerVersion is the spk-server build version (version.Version()).
	ServerVersion string `json:"server_version"`
	// RepositoryVersion is the stored spk/repo metadata version (spec §6),
	// empty if the repository has not yet been initialized.
	RepositoryVersion string `json:"repository_version"`
	// Address identifies the CAS backend this server wraps.
	Address string `json:"address"`
}

// MetadataProvider supplies the values reported by the repository
// metadata service.
type MetadataProvider interface {
	ServerVersion() string
	RepositoryVersion(ctx context.Context) (string, error)
	Address() string
}

// metadataServer is the handler backing RepositoryMetadataServiceDesc.
type metadataServer struct {
	provider MetadataProvider
}

func (s *metadataServer) getServerInfo(ctx context.Context, _ *struct{}) (*ServerInfo, error) {
	repoVersion, err := s.provider.RepositoryVersion(ctx)
	if err != nil {
		return nil, err
	}
	return &ServerInfo{
		ServerVersion:     s.provider.ServerVersion(),
		RepositoryVersion: repoVersion,
		Address:           s.provider.Address(),
	}, nil
}

func getServerInfoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(struct{})
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*metadataServer)
	if interceptor == nil {
		return s.getServerInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/spk.rpc.RepositoryMetadataService/GetServerInfo",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.getServerInfo(ctx, req.(*struct{}))
	}
	return interceptor(ctx, in, info, handler)
}

// RepositoryMetadataServiceDesc is the hand-registered grpc.ServiceDesc for
// the repository metadata service (spec §4.5): "static; reports server
// version and identity."
var RepositoryMetadataServiceDesc = grpc.ServiceDesc{
	ServiceName: "spk.rpc.RepositoryMetadataService",
	HandlerType: (*MetadataProvider)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetServerInfo",
			Handler:    getServerInfoHandler,
		},
	},
	Metadata: "spk/rpc/metadata.proto",
}

// RegisterRepositoryMetadataService registers the repository metadata
// service on srv, backed by provider.
func RegisterRepositoryMetadataService(srv *grpc.Server, provider MetadataProvider) {
	srv.RegisterService(&RepositoryMetadataServiceDesc, &metadataServer{provider: provider})
}
