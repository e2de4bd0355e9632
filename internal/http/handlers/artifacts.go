package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ArtifactDownload streams a stored artifact by its storage key. The key is
// the wildcard tail of the route, e.g. generated/<batch>/<job>.png.
func (a *App) ArtifactDownload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "artifact key required")
		return
	}

	data, err := a.Store.Read(r.Context(), key)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "artifact not found")
		return
	}

	mime := "application/octet-stream"
	if strings.HasSuffix(key, ".png") {
		mime = "image/png"
	}
	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
