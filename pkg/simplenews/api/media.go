package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ServeMedia streams a stored object for app-routed media URLs.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		h.badRequest(w, r, "missing media key")
		return
	}

	rc, meta, err := h.portal.Media().Open(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	if meta.ETag != "" {
		w.Header().Set("ETag", meta.ETag)
	}
	// keys are never reused, so the object under a key never changes
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "media copy failed", "storage_key", key, "error", err)
	}
}
