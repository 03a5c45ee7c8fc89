package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/spkrepo/spk/storage/cas"
)

// storeMetadataProvider adapts a cas.Store to MetadataProvider, reading the
// repository version directly off the spk/repo tag rather than through
// repo.Repository, since the metadata service (spec §4.5) "wraps the CAS
// directly" the same way the tag/database/payload services do (spec §1:
// "C5 wraps the CAS directly").
type storeMetadataProvider struct {
	store         cas.Store
	serverVersion string
	metadataPath  string
	readVersion   func(ctx context.Context, store cas.Store, path string) (string, error)
}

func (p *storeMetadataProvider) ServerVersion() string { return p.serverVersion }

func (p *storeMetadataProvider) Address() string { return p.store.Address() }

func (p *storeMetadataProvider) RepositoryVersion(ctx context.Context) (string, error) {
	return p.readVersion(ctx, p.store, p.metadataPath)
}

// NewMetadataProvider builds the MetadataProvider backing the repository
// metadata service. readVersion resolves the stored spk/repo metadata
// blob's version field; callers pass repo.ReadRepositoryVersion (or an
// equivalent) to avoid this package depending on repo's YAML schema.
func NewMetadataProvider(store cas.Store, serverVersion, metadataPath string, readVersion func(ctx context.Context, store cas.Store, path string) (string, error)) MetadataProvider {
	return &storeMetadataProvider{store: store, serverVersion: serverVersion, metadataPath: metadataPath, readVersion: readVersion}
}

// RegisterAll registers all four C5 services on srv.
func RegisterAll(srv *grpc.Server, store cas.Store, provider MetadataProvider, payloadURLRoot string) {
	RegisterRepositoryMetadataService(srv, provider)
	RegisterTagService(srv, store)
	RegisterDatabaseService(srv, store)
	RegisterPayloadService(srv, payloadURLRoot)
}
