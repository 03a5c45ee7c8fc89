package rpc

import (
	"context"
	"testing"

	digest "github.com/opencontainers/go-digest"
)

func TestPayloadServerNegotiate(t *testing.T) {
	s := &payloadServer{urlRoot: "http://example.test:7787/"}
	dgst := digest.FromString("content")

	resp, err := s.negotiate(context.Background(), &NegotiateRequest{Digest: dgst})
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}

	want := "http://example.test:7787" + PayloadPath(dgst)
	if resp.URL != want {
		t.Fatalf("expected URL %q, got %q", want, resp.URL)
	}
}

func TestPayloadPath(t *testing.T) {
	dgst := digest.FromString("content")
	got := PayloadPath(dgst)
	want := PayloadPathPrefix + dgst.String()
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
