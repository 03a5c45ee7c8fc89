package rpc

import (
	"testing"

	"google.golang.org/grpc/encoding"
)

func TestJSONCodecRoundtrip(t *testing.T) {
	c := jsonCodec{}

	in := &PushTagRequest{Path: "spk/pkg/foo", Target: "sha256:deadbeef"}
	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	out := new(PushTagRequest)
	if err := c.Unmarshal(data, out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if *out != *in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestJSONCodecRegistered(t *testing.T) {
	if encoding.GetCodec(codecName) == nil {
		t.Fatalf("expected codec %q to be registered", codecName)
	}
}
