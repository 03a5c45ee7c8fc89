// Package httpapi implements the HTTP half of the payload service (spec
// §4.5, §6): a single route serving GET (download) and PUT (upload)
// against a CAS-internal path, grounded on the teacher's
// registry/handlers dispatcher-per-route pattern (gorilla/mux +
// gorilla/handlers combined logging).
package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	digest "github.com/opencontainers/go-digest"
	"github.com/gorilla/mux"

	"github.com/spkrepo/spk/internal/dcontext"
	"github.com/spkrepo/spk/storage/cas"
)

// digestVar is the path variable name carrying the payload's digest.
const digestVar = "digest"

// payloadRoutePath must match server/rpc.PayloadPathPrefix's shape.
const payloadRoutePath = "/payload/{digest}"

// NewRouter builds the HTTP payload endpoint's router.
func NewRouter(store cas.Store) *mux.Router {
	r := mux.NewRouter()
	h := &payloadHandler{store: store}
	r.Path(payloadRoutePath).Methods(http.MethodGet).HandlerFunc(h.download)
	r.Path(payloadRoutePath).Methods(http.MethodPut).HandlerFunc(h.upload)
	return r
}

type payloadHandler struct {
	store cas.Store
}

func (h *payloadHandler) download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dgst, err := parseDigestVar(r)
	if err != nil {
		dcontext.GetLogger(ctx).Warnf("payload download: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rc, filename, err := h.store.OpenPayload(ctx, dgst)
	if err != nil {
		if err == cas.ErrUnknownReference {
			http.Error(w, "payload not found", http.StatusNotFound)
			return
		}
		dcontext.GetLogger(ctx).Errorf("payload download %s: %v", dgst, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	}
	w.Header().Set("Docker-Content-Digest", dgst.String())
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		dcontext.GetLogger(ctx).Errorf("payload download %s: copy failed: %v", dgst, err)
	}
}

func (h *payloadHandler) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	expected, err := parseDigestVar(r)
	if err != nil {
		dcontext.GetLogger(ctx).Warnf("payload upload: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	got, err := h.store.CommitBlob(ctx, r.Body)
	if err != nil {
		dcontext.GetLogger(ctx).Errorf("payload upload %s: %v", expected, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if got != expected {
		dcontext.GetLogger(ctx).Warnf("payload upload digest mismatch: expected %s, got %s", expected, got)
		http.Error(w, "digest mismatch", http.StatusBadRequest)
		return
	}

	w.Header().Set("Docker-Content-Digest", got.String())
	w.WriteHeader(http.StatusCreated)
}

func parseDigestVar(r *http.Request) (digest.Digest, error) {
	raw := mux.Vars(r)[digestVar]
	dgst, err := digest.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid digest %q: %w", raw, err)
	}
	return dgst, nil
}
