// Package api exposes a simplenews Portal over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-news/pkg/simplenews"
)

// DefaultMaxUploadBytes bounds multipart request bodies.
const DefaultMaxUploadBytes = 64 << 20

// Handler serves the news portal API.
type Handler struct {
	portal         *simplenews.Portal
	logger         *slog.Logger
	mediaMount     string
	maxUploadBytes int64
	gatherer       prometheus.Gatherer
	timeout        time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for request and error logs
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMediaRoute serves stored media under mountPath. Use it when media URLs
// are app-routed, i.e. the blob store has no public endpoint.
func WithMediaRoute(mountPath string) Option {
	return func(h *Handler) {
		h.mediaMount = "/" + strings.Trim(mountPath, "/")
	}
}

// WithMaxUploadBytes overrides DefaultMaxUploadBytes
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		h.maxUploadBytes = n
	}
}

// WithMetricsGatherer exposes the gatherer on /metrics
func WithMetricsGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = g
	}
}

// WithRequestTimeout sets the per-request timeout. Zero disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.timeout = d
	}
}

// New creates a handler for portal.
func New(portal *simplenews.Portal, opts ...Option) *Handler {
	h := &Handler{
		portal:         portal,
		logger:         slog.Default(),
		maxUploadBytes: DefaultMaxUploadBytes,
		timeout:        60 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the full router: health, metrics, media and /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	if h.mediaMount != "" {
		r.Get(h.mediaMount+"/*", h.ServeMedia)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if h.timeout > 0 {
			r.Use(middleware.Timeout(h.timeout))
		}
		r.Get("/categories", h.ListCategories)
		r.Post("/catalog/refresh", h.RefreshCatalog)
		r.Mount("/news", h.newsRoutes())
		r.Mount("/slides", h.slideRoutes())
	})

	return r
}

func (h *Handler) newsRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListNews)
	r.Post("/", h.CreateNews)
	r.Get("/{id}", h.GetNews)
	r.Patch("/{id}", h.UpdateNews)
	r.Delete("/{id}", h.DeleteNews)
	r.Post("/{id}/like", h.LikeNews)
	r.Post("/{id}/view", h.ViewNews)
	return r
}

func (h *Handler) slideRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListSlides)
	r.Post("/", h.CreateSlide)
	r.Delete("/{id}", h.DeleteSlide)
	return r
}

// Health reports liveness together with the catalog's last refresh time.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.portal.Catalog().Snapshot()
	resp := map[string]any{
		"status": "healthy",
		"items":  len(snap.Items),
		"slides": len(snap.Slides),
	}
	if !snap.RefreshedAt.IsZero() {
		resp["refreshed_at"] = snap.RefreshedAt
	}
	render.JSON(w, r, resp)
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// bearerToken extracts the admin credential. X-Admin-Token is accepted for
// clients that cannot set Authorization.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get("X-Admin-Token"))
}
