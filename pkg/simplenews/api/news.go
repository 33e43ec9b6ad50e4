package api

import (
	"context"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-news/pkg/simplenews"
)

// mediaField is the multipart form field carrying an uploaded file.
const mediaField = "media"

// CounterResponse is returned by the like and view endpoints.
type CounterResponse struct {
	ID    uuid.UUID `json:"id"`
	Count int64     `json:"count"`
}

// ListNews filters the cached catalog and returns it laid out for display.
// Query parameters: q, category, layout, columns, hero.
func (h *Handler) ListNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	layout, err := simplenews.ParseLayout(q.Get("layout"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cfg := simplenews.LayoutConfig{Layout: layout}
	if cfg.Columns, err = intParam(q.Get("columns")); err != nil {
		h.badRequest(w, r, "columns must be a positive integer")
		return
	}
	if cfg.HeroCount, err = intParam(q.Get("hero")); err != nil {
		h.badRequest(w, r, "hero must be a positive integer")
		return
	}

	render.JSON(w, r, h.portal.View(q.Get("q"), q.Get("category"), cfg))
}

func (h *Handler) GetNews(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	item, err := h.portal.Item(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, item)
}

// CreateNews accepts either a multipart form (title, description, body,
// category and an optional media file) or a JSON body without media.
func (h *Handler) CreateNews(w http.ResponseWriter, r *http.Request) {
	// Reject before the body is read or spooled to disk.
	if err := h.portal.Authorize(r.Context(), bearerToken(r)); err != nil {
		h.writeError(w, r, err)
		return
	}

	var req simplenews.CreateContentItemRequest
	if isMultipart(r) {
		form, cleanup, ok := h.parseMultipart(w, r)
		if !ok {
			return
		}
		defer cleanup()

		req.Fields = simplenews.ContentFields{
			Title:       url.Values(form.Value).Get("title"),
			Description: url.Values(form.Value).Get("description"),
			Body:        url.Values(form.Value).Get("body"),
			Category:    simplenews.Category(url.Values(form.Value).Get("category")),
		}
		upload, closeFile, err := formUpload(r)
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			h.badRequest(w, r, "invalid media file")
			return
		}
		if upload != nil {
			defer closeFile()
			req.File = upload
		}
	} else if err := render.DecodeJSON(r.Body, &req.Fields); err != nil {
		h.badRequest(w, r, "invalid JSON body")
		return
	}

	item, err := h.portal.CreateContentItem(r.Context(), bearerToken(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "content item created", "content_id", item.ID, "has_media", item.HasMedia())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, item)
}

// UpdateNews applies a JSON ContentPatch.
func (h *Handler) UpdateNews(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var patch simplenews.ContentPatch
	if err := render.DecodeJSON(r.Body, &patch); err != nil {
		h.badRequest(w, r, "invalid JSON body")
		return
	}
	item, err := h.portal.UpdateContentItem(r.Context(), bearerToken(r), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, item)
}

func (h *Handler) DeleteNews(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.portal.DeleteContentItem(r.Context(), bearerToken(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LikeNews(w http.ResponseWriter, r *http.Request) {
	h.increment(w, r, h.portal.IncrementLike)
}

func (h *Handler) ViewNews(w http.ResponseWriter, r *http.Request) {
	h.increment(w, r, h.portal.IncrementView)
}

func (h *Handler) increment(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (int64, error)) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	n, err := fn(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, CounterResponse{ID: id, Count: n})
}

// ListCategories returns the storable categories in display order.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, simplenews.Categories())
}

// RefreshCatalog reloads the catalog synchronously. Admin only.
func (h *Handler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.portal.Authorize(r.Context(), bearerToken(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.portal.Refresh(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	snap := h.portal.Catalog().Snapshot()
	render.JSON(w, r, map[string]any{
		"items":        len(snap.Items),
		"slides":       len(snap.Slides),
		"refreshed_at": snap.RefreshedAt,
	})
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.badRequest(w, r, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart bounds and parses the request form. The cleanup func
// removes any temporary files the parser spilled to disk.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: "too_large", Message: "upload exceeds size limit"}})
			return nil, nil, false
		}
		h.badRequest(w, r, "invalid multipart form")
		return nil, nil, false
	}
	return r.MultipartForm, func() { _ = r.MultipartForm.RemoveAll() }, true
}

// formUpload opens the media file of a parsed multipart form.
func formUpload(r *http.Request) (*simplenews.Upload, func(), error) {
	file, header, err := r.FormFile(mediaField)
	if err != nil {
		return nil, nil, err
	}
	return &simplenews.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, func() { _ = file.Close() }, nil
}
