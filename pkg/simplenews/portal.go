package simplenews

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Portal is the application state of the news core. All reads and writes go
// through its named operations.
type Portal struct {
	repo     Repository
	media    *MediaStore
	pipeline *Pipeline
	catalog  *Catalog
	counter  *Counter
	logger   *slog.Logger
}

type portalOptions struct {
	auth           Authorizer
	events         EventSink
	metrics        *Metrics
	logger         *slog.Logger
	atomicCounters bool
	refreshTimeout time.Duration
}

// PortalOption configures a Portal.
type PortalOption func(*portalOptions)

// WithPortalAuthorizer sets the admin capability check used for mutations
func WithPortalAuthorizer(auth Authorizer) PortalOption {
	return func(o *portalOptions) {
		o.auth = auth
	}
}

// WithPortalEventSink sets the event sink
func WithPortalEventSink(sink EventSink) PortalOption {
	return func(o *portalOptions) {
		o.events = sink
	}
}

// WithPortalMetrics sets the metrics recorder
func WithPortalMetrics(m *Metrics) PortalOption {
	return func(o *portalOptions) {
		o.metrics = m
	}
}

// WithPortalLogger sets the logger
func WithPortalLogger(logger *slog.Logger) PortalOption {
	return func(o *portalOptions) {
		o.logger = logger
	}
}

// WithPortalAtomicCounters enables atomic counter increments
func WithPortalAtomicCounters(enabled bool) PortalOption {
	return func(o *portalOptions) {
		o.atomicCounters = enabled
	}
}

// WithPortalRefreshTimeout bounds background catalog refreshes
func WithPortalRefreshTimeout(d time.Duration) PortalOption {
	return func(o *portalOptions) {
		o.refreshTimeout = d
	}
}

// NewPortal wires the pipeline, catalog and counter over repo and media.
func NewPortal(repo Repository, media *MediaStore, opts ...PortalOption) (*Portal, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	o := portalOptions{
		auth:   DenyAllAuthorizer{},
		events: NewNoopEventSink(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	catalog := NewCatalog(repo,
		WithCatalogLogger(o.logger),
		WithCatalogMetrics(o.metrics),
		WithRefreshTimeout(o.refreshTimeout),
	)

	pipeline, err := NewPipeline(repo, media,
		WithAuthorizer(o.auth),
		WithRefresher(catalog),
		WithEventSink(o.events),
		WithMetrics(o.metrics),
		WithPipelineLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	counterOpts := []CounterOption{
		WithCounterCache(catalog),
		WithCounterMetrics(o.metrics),
		WithCounterLogger(o.logger),
	}
	if o.atomicCounters {
		counterOpts = append(counterOpts, WithAtomicIncrements())
	}

	return &Portal{
		repo:     repo,
		media:    media,
		pipeline: pipeline,
		catalog:  catalog,
		counter:  NewCounter(repo, counterOpts...),
		logger:   o.logger,
	}, nil
}

// Media returns the media store.
func (p *Portal) Media() *MediaStore { return p.media }

// Catalog returns the catalog cache.
func (p *Portal) Catalog() *Catalog { return p.catalog }

// Mutations

// Authorize checks an admin token without mutating anything.
func (p *Portal) Authorize(ctx context.Context, token string) error {
	return p.pipeline.Authorize(ctx, token)
}

func (p *Portal) CreateContentItem(ctx context.Context, token string, req CreateContentItemRequest) (*ContentItem, error) {
	return p.pipeline.CreateContentItem(ctx, token, req)
}

func (p *Portal) CreateSliderEntry(ctx context.Context, token string, req CreateSliderEntryRequest) (*SliderEntry, error) {
	return p.pipeline.CreateSliderEntry(ctx, token, req)
}

func (p *Portal) UpdateContentItem(ctx context.Context, token string, id uuid.UUID, patch ContentPatch) (*ContentItem, error) {
	return p.pipeline.UpdateContentItem(ctx, token, id, patch)
}

func (p *Portal) DeleteContentItem(ctx context.Context, token string, id uuid.UUID) error {
	return p.pipeline.DeleteContentItem(ctx, token, id)
}

func (p *Portal) DeleteSliderEntry(ctx context.Context, token string, id uuid.UUID) error {
	return p.pipeline.DeleteSliderEntry(ctx, token, id)
}

// Engagement

func (p *Portal) IncrementLike(ctx context.Context, id uuid.UUID) (int64, error) {
	return p.counter.IncrementLike(ctx, id)
}

func (p *Portal) IncrementView(ctx context.Context, id uuid.UUID) (int64, error) {
	return p.counter.IncrementView(ctx, id)
}

// Reads

// Refresh reloads the catalog synchronously.
func (p *Portal) Refresh(ctx context.Context) error {
	return p.catalog.Refresh(ctx)
}

// Search filters the cached catalog.
func (p *Portal) Search(term, category string) []*ContentItem {
	return Filter(p.catalog.Items(), term, category)
}

// View filters the cached catalog and lays it out.
func (p *Portal) View(term, category string, cfg LayoutConfig) View {
	return BuildView(p.Search(term, category), cfg)
}

// Slides returns the cached slider entries.
func (p *Portal) Slides() []*SliderEntry {
	return p.catalog.Slides()
}

// Item returns an item from the cache, falling back to the repository for
// items created since the last refresh.
func (p *Portal) Item(ctx context.Context, id uuid.UUID) (*ContentItem, error) {
	if it, ok := p.catalog.Item(id); ok {
		return it, nil
	}
	it, err := p.repo.GetContentItem(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			p.logger.WarnContext(ctx, "content item lookup failed", "content_id", id, "error", err)
		}
		return nil, err
	}
	return it, nil
}

// Start schedules periodic catalog refreshes after an initial load.
func (p *Portal) Start(ctx context.Context, schedule string) error {
	if err := p.catalog.Refresh(ctx); err != nil {
		p.logger.WarnContext(ctx, "initial catalog load failed", "error", err)
	}
	if schedule == "" {
		return nil
	}
	return p.catalog.Start(ctx, schedule)
}

// Close stops scheduled refreshes and waits for background work.
func (p *Portal) Close() {
	p.catalog.Stop()
}
