package ident

import "testing"

func TestBuildKeySrc(t *testing.T) {
	b, err := ParseBuildKey("src")
	if err != nil {
		t.Fatalf("parse src: %v", err)
	}
	if !b.IsSrc() {
		t.Fatalf("expected IsSrc")
	}
	if b.String() != "src" {
		t.Fatalf("expected round trip, got %q", b.String())
	}
}

func TestBuildKeyOpaque(t *testing.T) {
	b, err := ParseBuildKey("ABCDEFGH")
	if err != nil {
		t.Fatalf("parse opaque: %v", err)
	}
	if b.IsSrc() || b.IsEmbedded() {
		t.Fatalf("expected opaque build key")
	}
	if b.String() != "ABCDEFGH" {
		t.Fatalf("round trip: got %q", b.String())
	}
}

func TestBuildKeyEmbeddedRoundTrip(t *testing.T) {
	name, err := ParsePkgName("pkg-a")
	if err != nil {
		t.Fatalf("name: %v", err)
	}
	ver, err := ParseVersion("1.2")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	embedder := FromVersionIdent(VersionIdent{Name: name, Version: ver})

	key := EmbeddedBuildKey(embedder)
	s := key.String()
	if !HasEmbeddedPrefix(s) {
		t.Fatalf("expected embedded[ prefix, got %q", s)
	}

	parsed, err := ParseBuildKey(s)
	if err != nil {
		t.Fatalf("parse embedded key %q: %v", s, err)
	}
	if !parsed.IsEmbedded() {
		t.Fatalf("expected IsEmbedded")
	}
	got, ok := parsed.Embedder()
	if !ok {
		t.Fatalf("expected embedder present")
	}
	if got.String() != embedder.String() {
		t.Fatalf("embedder round trip: want %q got %q", embedder.String(), got.String())
	}
}
