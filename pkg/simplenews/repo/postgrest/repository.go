// Package postgrest stores content items and slider entries in a hosted
// PostgREST API such as Supabase, using the portal's original table layout.
package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/tendant/simple-news/pkg/simplenews"
)

const backendName = "postgrest"

// Config holds connection settings for the REST endpoint.
type Config struct {
	BaseURL     string // REST root, e.g. https://project.supabase.co/rest/v1
	APIKey      string // sent as apikey and bearer token
	NewsTable   string // default "news"
	SliderTable string // default "slider_images"
	Timeout     time.Duration
}

// Repository implements simplenews.Repository over PostgREST. Requests are
// never retried.
type Repository struct {
	client      *resty.Client
	newsTable   string
	sliderTable string
}

// New creates a repository with its own resty client.
func New(cfg Config) *Repository {
	return NewWithClient(resty.New(), cfg)
}

// NewWithClient configures client for cfg and wraps it.
func NewWithClient(client *resty.Client, cfg Config) *Repository {
	if cfg.NewsTable == "" {
		cfg.NewsTable = "news"
	}
	if cfg.SliderTable == "" {
		cfg.SliderTable = "slider_images"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("apikey", cfg.APIKey).SetAuthToken(cfg.APIKey)
	}

	return &Repository{
		client:      client,
		newsTable:   cfg.NewsTable,
		sliderTable: cfg.SliderTable,
	}
}

// apiError is the PostgREST error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

type newsRow struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ImageURL    *string   `json:"image_url"`
	Content     *string   `json:"content"`
	Views       *int64    `json:"views"`
	Likes       *int64    `json:"likes"`
	CreatedAt   time.Time `json:"created_at"`
}

func (row newsRow) toItem() *simplenews.ContentItem {
	item := &simplenews.ContentItem{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Category:    simplenews.Category(row.Category),
		CreatedAt:   row.CreatedAt,
	}
	if row.ImageURL != nil && *row.ImageURL != "" {
		ref := *row.ImageURL
		item.MediaRef = &ref
	}
	if row.Content != nil {
		item.Body = *row.Content
	}
	if row.Views != nil {
		item.ViewCount = *row.Views
	}
	if row.Likes != nil {
		item.LikeCount = *row.Likes
	}
	return item
}

type sliderRow struct {
	ID        uuid.UUID `json:"id"`
	ImageURL  string    `json:"image_url"`
	MediaType *string   `json:"media_type"`
	CreatedAt time.Time `json:"created_at"`
}

func (row sliderRow) toEntry() *simplenews.SliderEntry {
	kind := simplenews.MediaKindImage
	if row.MediaType != nil && *row.MediaType == string(simplenews.MediaKindVideo) {
		kind = simplenews.MediaKindVideo
	}
	return &simplenews.SliderEntry{
		ID:        row.ID,
		MediaRef:  row.ImageURL,
		MediaKind: kind,
		CreatedAt: row.CreatedAt,
	}
}

// do sends one request and maps transport and status failures.
func (r *Repository) do(ctx context.Context, kind, op string, id uuid.UUID, method, path string, query map[string]string, body any, result any) error {
	req := r.client.R().
		SetContext(ctx).
		SetError(&apiError{}).
		SetQueryParams(query)
	if body != nil {
		req.SetBody(body).SetHeader("Prefer", "return=representation")
	} else if method == http.MethodDelete {
		req.SetHeader("Prefer", "return=minimal")
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return &simplenews.TransportError{Backend: backendName, Op: op, Err: err}
	}
	if !resp.IsError() {
		return nil
	}

	apiErr, _ := resp.Error().(*apiError)
	msg := resp.Status()
	if apiErr != nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return &simplenews.NotFoundError{Kind: kind, ID: idString(id), Err: fmt.Errorf("%s", msg)}
	case apiErr != nil && strings.HasPrefix(apiErr.Code, "23"):
		return simplenews.NewValidationError(kind, apiErr.Code, msg)
	case resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnprocessableEntity:
		return simplenews.NewValidationError(kind, "request", msg)
	default:
		return &simplenews.TransportError{Backend: backendName, Op: op, Status: resp.StatusCode(), Err: fmt.Errorf("%s", msg)}
	}
}

func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func byID(id uuid.UUID) map[string]string {
	return map[string]string{"id": "eq." + id.String(), "select": "*"}
}

// Content item operations

func (r *Repository) ListContentItems(ctx context.Context) ([]*simplenews.ContentItem, error) {
	var rows []newsRow
	err := r.do(ctx, simplenews.KindContentItem, "list content items", uuid.Nil, http.MethodGet, "/"+r.newsTable,
		map[string]string{"select": "*", "order": "created_at.desc"}, nil, &rows)
	if err != nil {
		return nil, err
	}
	items := make([]*simplenews.ContentItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toItem())
	}
	return items, nil
}

func (r *Repository) GetContentItem(ctx context.Context, id uuid.UUID) (*simplenews.ContentItem, error) {
	var rows []newsRow
	if err := r.do(ctx, simplenews.KindContentItem, "get content item", id, http.MethodGet, "/"+r.newsTable, byID(id), nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, simplenews.NotFound(simplenews.KindContentItem, id)
	}
	return rows[0].toItem(), nil
}

func (r *Repository) InsertContentItem(ctx context.Context, fields simplenews.ContentFields) (*simplenews.ContentItem, error) {
	fields, err := simplenews.ValidateContentFields(fields)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"title":       fields.Title,
		"description": fields.Description,
		"category":    string(fields.Category),
		"content":     fields.Body,
		"image_url":   fields.MediaRef,
		"views":       0,
		"likes":       0,
	}
	var rows []newsRow
	if err := r.do(ctx, simplenews.KindContentItem, "insert content item", uuid.Nil, http.MethodPost, "/"+r.newsTable, nil, body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &simplenews.TransportError{Backend: backendName, Op: "insert content item", Err: fmt.Errorf("no row returned")}
	}
	return rows[0].toItem(), nil
}

func (r *Repository) UpdateContentItem(ctx context.Context, id uuid.UUID, patch simplenews.ContentPatch) (*simplenews.ContentItem, error) {
	patch, err := simplenews.ValidateContentPatch(patch)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return r.GetContentItem(ctx, id)
	}

	body := map[string]any{}
	if patch.Title != nil {
		body["title"] = *patch.Title
	}
	if patch.Description != nil {
		body["description"] = *patch.Description
	}
	if patch.Body != nil {
		body["content"] = *patch.Body
	}
	if patch.Category != nil {
		body["category"] = string(*patch.Category)
	}
	if patch.MediaRef != nil {
		if *patch.MediaRef == "" {
			body["image_url"] = nil
		} else {
			body["image_url"] = *patch.MediaRef
		}
	}
	if patch.ViewCount != nil {
		body["views"] = *patch.ViewCount
	}
	if patch.LikeCount != nil {
		body["likes"] = *patch.LikeCount
	}

	var rows []newsRow
	if err := r.do(ctx, simplenews.KindContentItem, "update content item", id, http.MethodPatch, "/"+r.newsTable, byID(id), body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, simplenews.NotFound(simplenews.KindContentItem, id)
	}
	return rows[0].toItem(), nil
}

func (r *Repository) DeleteContentItem(ctx context.Context, id uuid.UUID) error {
	return r.do(ctx, simplenews.KindContentItem, "delete content item", id, http.MethodDelete, "/"+r.newsTable,
		map[string]string{"id": "eq." + id.String()}, nil, nil)
}

// Slider entry operations

func (r *Repository) ListSliderEntries(ctx context.Context) ([]*simplenews.SliderEntry, error) {
	var rows []sliderRow
	err := r.do(ctx, simplenews.KindSliderEntry, "list slider entries", uuid.Nil, http.MethodGet, "/"+r.sliderTable,
		map[string]string{"select": "*", "order": "created_at.desc"}, nil, &rows)
	if err != nil {
		return nil, err
	}
	entries := make([]*simplenews.SliderEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}

func (r *Repository) GetSliderEntry(ctx context.Context, id uuid.UUID) (*simplenews.SliderEntry, error) {
	var rows []sliderRow
	if err := r.do(ctx, simplenews.KindSliderEntry, "get slider entry", id, http.MethodGet, "/"+r.sliderTable, byID(id), nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, simplenews.NotFound(simplenews.KindSliderEntry, id)
	}
	return rows[0].toEntry(), nil
}

func (r *Repository) InsertSliderEntry(ctx context.Context, fields simplenews.SliderFields) (*simplenews.SliderEntry, error) {
	fields, err := simplenews.ValidateSliderFields(fields)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"image_url":  fields.MediaRef,
		"media_type": string(fields.MediaKind),
	}
	var rows []sliderRow
	if err := r.do(ctx, simplenews.KindSliderEntry, "insert slider entry", uuid.Nil, http.MethodPost, "/"+r.sliderTable, nil, body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &simplenews.TransportError{Backend: backendName, Op: "insert slider entry", Err: fmt.Errorf("no row returned")}
	}
	return rows[0].toEntry(), nil
}

func (r *Repository) UpdateSliderEntry(ctx context.Context, id uuid.UUID, patch simplenews.SliderPatch) (*simplenews.SliderEntry, error) {
	patch, err := simplenews.ValidateSliderPatch(patch)
	if err != nil {
		return nil, err
	}

	body := map[string]any{}
	if patch.MediaRef != nil {
		body["image_url"] = *patch.MediaRef
	}
	if patch.MediaKind != nil {
		body["media_type"] = string(*patch.MediaKind)
	}
	if len(body) == 0 {
		return r.GetSliderEntry(ctx, id)
	}

	var rows []sliderRow
	if err := r.do(ctx, simplenews.KindSliderEntry, "update slider entry", id, http.MethodPatch, "/"+r.sliderTable, byID(id), body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, simplenews.NotFound(simplenews.KindSliderEntry, id)
	}
	return rows[0].toEntry(), nil
}

func (r *Repository) DeleteSliderEntry(ctx context.Context, id uuid.UUID) error {
	return r.do(ctx, simplenews.KindSliderEntry, "delete slider entry", id, http.MethodDelete, "/"+r.sliderTable,
		map[string]string{"id": "eq." + id.String()}, nil, nil)
}

var _ simplenews.Repository = (*Repository)(nil)
