// Package cas defines the interface this module consumes from the
// content-addressed store that backs a repository (spec §6). The CAS
// itself — blob and tag primitives — is an external collaborator; this
// package only pins down the surface the repo package calls through.
package cas

import (
	"context"
	"errors"
	"io"
	"time"

	digest "github.com/opencontainers/go-digest"
)

// ErrUnknownReference is returned by Store methods when a tag or digest
// does not exist. Repository-level code translates this to
// *repo.PackageNotFoundError at read boundaries (spec §7).
var ErrUnknownReference = errors.New("unknown reference")

// EntryKind distinguishes a folder (an intermediate path segment with
// children) from a tag (a leaf pointing at a digest) when listing a tag
// path, mirroring the teacher's storage driver FileInfo.IsDir().
type EntryKind int

const (
	EntryTag EntryKind = iota
	EntryFolder
)

// Entry is one result of a LsTags listing.
type Entry struct {
	Name string
	Kind EntryKind
}

// Tag is a named pointer to a digest plus the bookkeeping metadata a CAS
// tag log records for it.
type Tag struct {
	Path   string
	Target digest.Digest
	Parent digest.Digest
	Time   time.Time
	User   string
}

// Store is the CAS collaborator interface consumed by the repo package.
type Store interface {
	// ResolveTag resolves the latest entry of the named tag stream.
	ResolveTag(ctx context.Context, path string) (Tag, error)
	// PushTag appends a new entry to the named tag stream, pointing at
	// target. Tag streams are append-only (spec §1 Non-goals).
	PushTag(ctx context.Context, path string, target digest.Digest) (Tag, error)
	// PushTagPreservingMetadata appends a new entry to path pointing at
	// src's target, but carries over src's parent/time/user rather than
	// stamping fresh ones. Used by the repository upgrade path to
	// synthesize component tags from a legacy tag without inventing
	// history (spec §4.1 upgrade).
	PushTagPreservingMetadata(ctx context.Context, path string, src Tag) (Tag, error)
	// RemoveTagStream deletes every entry of the named tag stream.
	RemoveTagStream(ctx context.Context, path string) error
	// HasTag reports whether the named tag stream has at least one entry.
	HasTag(ctx context.Context, path string) (bool, error)
	// LsTags lists the immediate children of a tag folder path.
	LsTags(ctx context.Context, folder string) ([]Entry, error)

	// OpenPayload opens the blob addressed by dgst for reading, along with
	// a filename hint for the HTTP payload endpoint (spec §4.5).
	OpenPayload(ctx context.Context, dgst digest.Digest) (io.ReadCloser, string, error)
	// CommitBlob stores r's contents and returns its digest.
	CommitBlob(ctx context.Context, r io.Reader) (digest.Digest, error)

	// Address returns the URL identifying this store, used as the cache
	// registry key (spec §4.4).
	Address() string
	// IntoPinned returns a read-only view of the store restricted to state
	// as of the given instant (spec §6 pinning).
	IntoPinned(ctx context.Context, at time.Time) (Store, error)
}
