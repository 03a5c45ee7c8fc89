package rpc

import (
	"bytes"
	"context"
	"testing"

	digest "github.com/opencontainers/go-digest"

	"github.com/spkrepo/spk/storage/cas/memcas"
)

func TestDatabaseServerWriteThenRead(t *testing.T) {
	ctx := context.Background()
	store := memcas.New("mem://" + t.Name())
	s := &databaseServer{store: store}

	written, err := s.write(ctx, &WriteObjectRequest{Data: []byte("recipe: true")})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if written.Digest == "" {
		t.Fatalf("expected non-empty digest")
	}

	read, err := s.read(ctx, &ReadObjectRequest{Digest: written.Digest})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(read.Data, []byte("recipe: true")) {
		t.Fatalf("expected round-tripped data, got %q", read.Data)
	}
}

func TestDatabaseServerReadUnknownDigest(t *testing.T) {
	ctx := context.Background()
	store := memcas.New("mem://" + t.Name())
	s := &databaseServer{store: store}

	unknown := digest.FromBytes([]byte("never committed"))
	if _, err := s.read(ctx, &ReadObjectRequest{Digest: unknown}); err == nil {
		t.Fatalf("expected error reading unknown digest")
	}
}
