package http

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/quiztab/internal/storage"
)

// GET /packs/raw/*  serves an archived pack document by the blob_key
// of its pack record.
func PackArchiveHandler(bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if !strings.HasPrefix(key, "packs/") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		rc, err := bs.Get(r.Context(), key)
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "blob: "+err.Error(), http.StatusInternalServerError)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.Copy(w, rc)
	}
}
