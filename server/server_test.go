package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spkrepo/spk/configuration"
	"github.com/spkrepo/spk/server/rpc"
	"github.com/spkrepo/spk/storage/cas"
	"github.com/spkrepo/spk/storage/cas/memcas"
)

func nopReadVersion(_ context.Context, _ cas.Store, _ string) (string, error) {
	return "", nil
}

func TestWithResponseHeadersSetsConfiguredHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := withResponseHeaders(map[string][]string{"X-Content-Type-Options": {"nosniff"}}, next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected header to be set, got %q", got)
	}
}

func TestWithResponseHeadersNoopWhenEmpty(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := withResponseHeaders(nil, next)
	if _, ok := handler.(http.HandlerFunc); !ok {
		t.Fatalf("expected the bare handler back unwrapped when no headers are configured")
	}
}

func TestNewConstructsServerWithoutBinding(t *testing.T) {
	store := memcas.New("mem://" + t.Name())

	cfg := &configuration.Configuration{
		RPC:  configuration.RPC{Addr: ":0"},
		HTTP: configuration.HTTP{Addr: ":0"},
	}

	provider := rpc.NewMetadataProvider(store, "v1.0.0", "spk/repo", nopReadVersion)
	srv := New(cfg, store, provider)
	if srv == nil {
		t.Fatalf("expected a non-nil Server")
	}
	if srv.grpcServer == nil || srv.httpServer == nil {
		t.Fatalf("expected both listeners to be constructed")
	}
}
