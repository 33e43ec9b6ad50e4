package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-news/pkg/simplenews"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []simplenews.FieldError `json:"fields,omitempty"`
}

// statusFor maps core errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, simplenews.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, simplenews.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, simplenews.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, simplenews.ErrStorage):
		return http.StatusBadGateway, "storage_failed"
	case errors.Is(err, simplenews.ErrTransport):
		return http.StatusServiceUnavailable, "record_store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	body := ErrorBody{Code: code, Message: err.Error()}

	var verr *simplenews.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err)
		if status == http.StatusInternalServerError {
			body.Message = "internal error"
		}
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="simple-news"`)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: body})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: "bad_request", Message: message}})
}
