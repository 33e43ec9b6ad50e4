package simplenews

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Snapshot is one complete view of the catalog.
type Snapshot struct {
	Items       []*ContentItem
	Slides      []*SliderEntry
	RefreshedAt time.Time
}

// Catalog is the in-process cache of the record store. Each refresh replaces
// the whole cache; overlapping refreshes install in completion order, so the
// last response wins even if it was requested first.
type Catalog struct {
	repo    Repository
	metrics *Metrics
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	mu   sync.RWMutex
	snap Snapshot

	wg sync.WaitGroup

	cronMu  sync.Mutex
	cron    *cron.Cron
	stopped bool
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCatalogLogger sets the logger
func WithCatalogLogger(logger *slog.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithCatalogMetrics sets the metrics recorder
func WithCatalogMetrics(m *Metrics) CatalogOption {
	return func(c *Catalog) {
		c.metrics = m
	}
}

// WithRefreshTimeout bounds background refreshes. Zero means no deadline.
func WithRefreshTimeout(d time.Duration) CatalogOption {
	return func(c *Catalog) {
		c.timeout = d
	}
}

// NewCatalog creates an empty catalog over repo. Call Refresh to load it.
func NewCatalog(repo Repository, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh reloads both record kinds and replaces the cache. On error the
// cache is left as it was.
func (c *Catalog) Refresh(ctx context.Context) error {
	var (
		items  []*ContentItem
		slides []*SliderEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = c.repo.ListContentItems(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		slides, err = c.repo.ListSliderEntries(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		c.metrics.refresh(err, 0, 0)
		return err
	}

	c.mu.Lock()
	c.snap = Snapshot{Items: items, Slides: slides, RefreshedAt: c.now()}
	c.mu.Unlock()

	c.metrics.refresh(nil, len(items), len(slides))
	c.logger.DebugContext(ctx, "catalog refreshed", "items", len(items), "slides", len(slides))
	return nil
}

// TriggerRefresh starts a refresh in the background. Errors are logged.
// After Stop it does nothing.
func (c *Catalog) TriggerRefresh() {
	c.cronMu.Lock()
	if c.stopped {
		c.cronMu.Unlock()
		c.logger.Debug("catalog stopped, refresh skipped")
		return
	}
	c.wg.Add(1)
	c.cronMu.Unlock()

	go func() {
		defer c.wg.Done()
		ctx := context.Background()
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		if err := c.Refresh(ctx); err != nil {
			c.logger.Error("background catalog refresh failed", "error", err)
		}
	}()
}

// Wait blocks until every triggered refresh has finished.
func (c *Catalog) Wait() {
	c.wg.Wait()
}

// Start refreshes the catalog on a cron schedule such as "@every 1m". It
// also reopens a stopped catalog to triggered refreshes.
func (c *Catalog) Start(ctx context.Context, schedule string) error {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()

	if c.cron != nil {
		return fmt.Errorf("catalog refresh already scheduled")
	}

	cr := cron.New()
	_, err := cr.AddFunc(schedule, func() {
		if err := c.Refresh(ctx); err != nil {
			c.logger.ErrorContext(ctx, "scheduled catalog refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	cr.Start()
	c.cron = cr
	c.stopped = false

	c.logger.InfoContext(ctx, "catalog refresh scheduled", "schedule", schedule)
	return nil
}

// Stop ends scheduled refreshes and waits for running ones to finish.
// Refreshes triggered afterwards are dropped.
func (c *Catalog) Stop() {
	c.cronMu.Lock()
	cr := c.cron
	c.cron = nil
	c.stopped = true
	c.cronMu.Unlock()

	if cr != nil {
		<-cr.Stop().Done()
	}
	c.Wait()
}

// Snapshot returns a copy of the current cache.
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Items:       cloneItems(c.snap.Items),
		Slides:      cloneSlides(c.snap.Slides),
		RefreshedAt: c.snap.RefreshedAt,
	}
}

// Items returns the cached content items, newest first.
func (c *Catalog) Items() []*ContentItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneItems(c.snap.Items)
}

// Slides returns the cached slider entries, newest first.
func (c *Catalog) Slides() []*SliderEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlides(c.snap.Slides)
}

// Item returns the cached item with id.
func (c *Catalog) Item(id uuid.UUID) (*ContentItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.snap.Items {
		if it.ID == id {
			return it.Clone(), true
		}
	}
	return nil, false
}

// ApplyItem replaces the cached copy of item in place. Items not in the
// cache are ignored; they arrive with the next refresh.
func (c *Catalog) ApplyItem(item *ContentItem) bool {
	if item == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.snap.Items {
		if it.ID == item.ID {
			// copy the slice so earlier snapshots stay untouched
			items := make([]*ContentItem, len(c.snap.Items))
			copy(items, c.snap.Items)
			items[i] = item.Clone()
			c.snap.Items = items
			return true
		}
	}
	return false
}

func cloneItems(in []*ContentItem) []*ContentItem {
	out := make([]*ContentItem, len(in))
	for i, it := range in {
		out[i] = it.Clone()
	}
	return out
}

func cloneSlides(in []*SliderEntry) []*SliderEntry {
	out := make([]*SliderEntry, len(in))
	for i, s := range in {
		cp := *s
		out[i] = &cp
	}
	return out
}

var _ Refresher = (*Catalog)(nil)
