// Package memcas is an in-memory cas.Store, intended solely for tests
// and examples, mirroring the teacher's inmemory storage driver (a
// mutex-guarded map standing in for a real backend).
package memcas

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	digest "github.com/opencontainers/go-digest"

	"github.com/spkrepo/spk/storage/cas"
)

// Store is a map-backed cas.Store. The zero value is not usable; use New.
type Store struct {
	addr string

	mu     sync.RWMutex
	blobs  map[digest.Digest][]byte
	tags   map[string][]cas.Tag
	pinned *time.Time
}

var _ cas.Store = (*Store)(nil)

// New constructs an empty Store addressed by addr (e.g. "mem://test").
func New(addr string) *Store {
	return &Store{
		addr:  addr,
		blobs: make(map[digest.Digest][]byte),
		tags:  make(map[string][]cas.Tag),
	}
}

func (s *Store) Address() string { return s.addr }

func (s *Store) CommitBlob(ctx context.Context, r io.Reader) (digest.Digest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	dgst := digest.FromBytes(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[dgst] = data
	return dgst, nil
}

func (s *Store) OpenPayload(ctx context.Context, dgst digest.Digest) (io.ReadCloser, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[dgst]
	if !ok {
		return nil, "", cas.ErrUnknownReference
	}
	return io.NopCloser(bytes.NewReader(data)), dgst.Encoded(), nil
}

func (s *Store) PushTag(ctx context.Context, path string, target digest.Digest) (cas.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parent digest.Digest
	if existing := s.tags[path]; len(existing) > 0 {
		parent = existing[len(existing)-1].Target
	}

	tag := cas.Tag{
		Path:   path,
		Target: target,
		Parent: parent,
		Time:   s.now(),
		User:   userFromContext(),
	}
	s.tags[path] = append(s.tags[path], tag)
	return tag, nil
}

func (s *Store) PushTagPreservingMetadata(ctx context.Context, path string, src cas.Tag) (cas.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag := cas.Tag{
		Path:   path,
		Target: src.Target,
		Parent: src.Parent,
		Time:   src.Time,
		User:   src.User,
	}
	s.tags[path] = append(s.tags[path], tag)
	return tag, nil
}

func (s *Store) ResolveTag(ctx context.Context, path string) (cas.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.tags[path]
	if !ok || len(entries) == 0 {
		return cas.Tag{}, cas.ErrUnknownReference
	}
	latest := entries[len(entries)-1]
	if s.pinned != nil && latest.Time.After(*s.pinned) {
		for i := len(entries) - 1; i >= 0; i-- {
			if !entries[i].Time.After(*s.pinned) {
				return entries[i], nil
			}
		}
		return cas.Tag{}, cas.ErrUnknownReference
	}
	return latest, nil
}

func (s *Store) HasTag(ctx context.Context, path string) (bool, error) {
	_, err := s.ResolveTag(ctx, path)
	if err == cas.ErrUnknownReference {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) RemoveTagStream(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[path]; !ok {
		return cas.ErrUnknownReference
	}
	delete(s.tags, path)
	return nil
}

// LsTags lists the immediate children of folder: any tag path sharing
// folder as a prefix contributes either a leaf (EntryTag) or the next
// path segment as a folder (EntryFolder), deduplicated.
func (s *Store) LsTags(ctx context.Context, folder string) ([]cas.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := strings.TrimSuffix(folder, "/") + "/"
	seen := make(map[string]cas.EntryKind)
	for path := range s.tags {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		if rest == "" {
			continue
		}
		if idx := strings.Index(rest, "/"); idx >= 0 {
			seen[rest[:idx]] = cas.EntryFolder
		} else if _, ok := seen[rest]; !ok {
			seen[rest] = cas.EntryTag
		}
	}

	entries := make([]cas.Entry, 0, len(seen))
	for name, kind := range seen {
		entries = append(entries, cas.Entry{Name: name, Kind: kind})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (s *Store) IntoPinned(ctx context.Context, at time.Time) (cas.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Store{
		addr:   s.addr,
		blobs:  s.blobs,
		tags:   s.tags,
		pinned: &at,
	}
	return clone, nil
}

func (s *Store) now() time.Time {
	if s.pinned != nil {
		return *s.pinned
	}
	return time.Now()
}

// userFromContext is a placeholder until an auth layer supplies a real
// principal; the teacher's request context carries this the same way
// (dcontext.GetRequestID and friends).
func userFromContext() string { return "" }
