package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-news/pkg/simplenews"
)

func (h *Handler) ListSlides(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.portal.Slides())
}

// CreateSlide uploads the multipart media file and adds it to the carousel.
func (h *Handler) CreateSlide(w http.ResponseWriter, r *http.Request) {
	if err := h.portal.Authorize(r.Context(), bearerToken(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	if !isMultipart(r) {
		h.badRequest(w, r, "expected multipart/form-data with a media file")
		return
	}
	_, cleanup, ok := h.parseMultipart(w, r)
	if !ok {
		return
	}
	defer cleanup()

	var req simplenews.CreateSliderEntryRequest
	upload, closeFile, err := formUpload(r)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// the pipeline reports the missing file as a validation error
	case err != nil:
		h.badRequest(w, r, "invalid media file")
		return
	default:
		defer closeFile()
		req.File = upload
	}

	entry, err := h.portal.CreateSliderEntry(r.Context(), bearerToken(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "slider entry created", "slider_id", entry.ID, "media_kind", entry.MediaKind)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, entry)
}

func (h *Handler) DeleteSlide(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.portal.DeleteSliderEntry(r.Context(), bearerToken(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
