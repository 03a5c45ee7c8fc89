package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	digest "github.com/opencontainers/go-digest"

	"github.com/spkrepo/spk/storage/cas/memcas"
)

func TestUploadThenDownloadRoundtrip(t *testing.T) {
	store := memcas.New("mem://" + t.Name())
	router := NewRouter(store)

	body := []byte("hello payload")
	dgst := digest.FromBytes(body)

	req := httptest.NewRequest(http.MethodPut, "/payload/"+dgst.String(), bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Docker-Content-Digest"); got != dgst.String() {
		t.Fatalf("upload: expected digest header %q, got %q", dgst, got)
	}

	req = httptest.NewRequest(http.MethodGet, "/payload/"+dgst.String(), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != string(body) {
		t.Fatalf("download: expected body %q, got %q", body, rec.Body.String())
	}
}

func TestUploadDigestMismatchRejected(t *testing.T) {
	store := memcas.New("mem://" + t.Name())
	router := NewRouter(store)

	wrong := digest.FromBytes([]byte("not the body"))
	req := httptest.NewRequest(http.MethodPut, "/payload/"+wrong.String(), bytes.NewReader([]byte("actual body")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on digest mismatch, got %d", rec.Code)
	}
}

func TestDownloadUnknownDigestNotFound(t *testing.T) {
	store := memcas.New("mem://" + t.Name())
	router := NewRouter(store)

	dgst := digest.FromBytes([]byte("never uploaded"))
	req := httptest.NewRequest(http.MethodGet, "/payload/"+dgst.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDownloadInvalidDigestBadRequest(t *testing.T) {
	store := memcas.New("mem://" + t.Name())
	router := NewRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/payload/not-a-digest", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
