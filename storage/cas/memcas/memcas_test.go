package memcas

import (
	"bytes"
	"context"
	"testing"

	"github.com/spkrepo/spk/storage/cas"
)

func TestCommitAndOpenPayload(t *testing.T) {
	ctx := context.Background()
	s := New("mem://test")

	dgst, err := s.CommitBlob(ctx, bytes.NewReader([]byte("hello")))
	if err != nil {
		t.Fatalf("CommitBlob: %v", err)
	}

	rc, _, err := s.OpenPayload(ctx, dgst)
	if err != nil {
		t.Fatalf("OpenPayload: %v", err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		t.Fatalf("read: %v", err)
	}
	if buf.String() != "hello" {
		t.Fatalf("want %q got %q", "hello", buf.String())
	}
}

func TestPushAndResolveTag(t *testing.T) {
	ctx := context.Background()
	s := New("mem://test")

	dgst, err := s.CommitBlob(ctx, bytes.NewReader([]byte("v1")))
	if err != nil {
		t.Fatalf("CommitBlob: %v", err)
	}
	if _, err := s.PushTag(ctx, "spk/pkg/foo/1.0.0/abc123", dgst); err != nil {
		t.Fatalf("PushTag: %v", err)
	}

	tag, err := s.ResolveTag(ctx, "spk/pkg/foo/1.0.0/abc123")
	if err != nil {
		t.Fatalf("ResolveTag: %v", err)
	}
	if tag.Target != dgst {
		t.Fatalf("want target %v got %v", dgst, tag.Target)
	}

	if _, err := s.ResolveTag(ctx, "spk/pkg/foo/1.0.0/missing"); err != cas.ErrUnknownReference {
		t.Fatalf("expected ErrUnknownReference, got %v", err)
	}
}

func TestLsTagsListsFoldersAndLeaves(t *testing.T) {
	ctx := context.Background()
	s := New("mem://test")

	dgst, _ := s.CommitBlob(ctx, bytes.NewReader([]byte("x")))
	paths := []string{
		"spk/pkg/foo/1.0.0/abc123",
		"spk/pkg/foo/1.0.0/def456",
		"spk/pkg/foo/2.0.0/abc123",
	}
	for _, p := range paths {
		if _, err := s.PushTag(ctx, p, dgst); err != nil {
			t.Fatalf("PushTag(%s): %v", p, err)
		}
	}

	entries, err := s.LsTags(ctx, "spk/pkg/foo")
	if err != nil {
		t.Fatalf("LsTags: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}
	for _, e := range entries {
		if e.Kind != cas.EntryFolder {
			t.Fatalf("expected %q to be a folder entry", e.Name)
		}
	}

	leaf, err := s.LsTags(ctx, "spk/pkg/foo/1.0.0")
	if err != nil {
		t.Fatalf("LsTags leaf: %v", err)
	}
	if len(leaf) != 2 {
		t.Fatalf("expected 2 leaf entries, got %d", len(leaf))
	}
	for _, e := range leaf {
		if e.Kind != cas.EntryTag {
			t.Fatalf("expected %q to be a tag entry", e.Name)
		}
	}
}

func TestRemoveTagStream(t *testing.T) {
	ctx := context.Background()
	s := New("mem://test")

	dgst, _ := s.CommitBlob(ctx, bytes.NewReader([]byte("x")))
	if _, err := s.PushTag(ctx, "spk/pkg/foo/1.0.0/abc123", dgst); err != nil {
		t.Fatalf("PushTag: %v", err)
	}
	if err := s.RemoveTagStream(ctx, "spk/pkg/foo/1.0.0/abc123"); err != nil {
		t.Fatalf("RemoveTagStream: %v", err)
	}
	if has, err := s.HasTag(ctx, "spk/pkg/foo/1.0.0/abc123"); err != nil || has {
		t.Fatalf("expected tag gone, has=%v err=%v", has, err)
	}
}
