package simplenews

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ItemApplier receives items changed outside a full refresh.
type ItemApplier interface {
	ApplyItem(item *ContentItem) bool
}

// Counter increments view and like counts. By default it reads the item,
// adds one and writes the result back, so concurrent increments of the same
// item can lose updates. WithAtomicIncrements switches to the record store's
// atomic primitive when the repository offers one.
type Counter struct {
	repo    Repository
	atomic  bool
	cache   ItemApplier
	metrics *Metrics
	logger  *slog.Logger
}

// CounterOption configures a Counter.
type CounterOption func(*Counter)

// WithAtomicIncrements uses CounterIncrementer when the repository implements it
func WithAtomicIncrements() CounterOption {
	return func(c *Counter) {
		c.atomic = true
	}
}

// WithCounterCache sets where updated items are applied after an increment
func WithCounterCache(cache ItemApplier) CounterOption {
	return func(c *Counter) {
		c.cache = cache
	}
}

// WithCounterMetrics sets the metrics recorder
func WithCounterMetrics(m *Metrics) CounterOption {
	return func(c *Counter) {
		c.metrics = m
	}
}

// WithCounterLogger sets the logger
func WithCounterLogger(logger *slog.Logger) CounterOption {
	return func(c *Counter) {
		c.logger = logger
	}
}

// NewCounter creates an engagement counter over repo.
func NewCounter(repo Repository, opts ...CounterOption) *Counter {
	c := &Counter{
		repo:   repo,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.atomic {
		if _, ok := repo.(CounterIncrementer); !ok {
			c.logger.Warn("repository has no atomic increment, falling back to read-modify-write")
		}
	}
	return c
}

// IncrementLike adds one like and returns the new count.
func (c *Counter) IncrementLike(ctx context.Context, id uuid.UUID) (int64, error) {
	item, err := c.increment(ctx, id, CounterLikes)
	if err != nil {
		return 0, err
	}
	return item.LikeCount, nil
}

// IncrementView adds one view and returns the new count.
func (c *Counter) IncrementView(ctx context.Context, id uuid.UUID) (int64, error) {
	item, err := c.increment(ctx, id, CounterViews)
	if err != nil {
		return 0, err
	}
	return item.ViewCount, nil
}

func (c *Counter) increment(ctx context.Context, id uuid.UUID, field CounterField) (*ContentItem, error) {
	var (
		item *ContentItem
		err  error
		mode = "read_modify_write"
	)
	if inc, ok := c.repo.(CounterIncrementer); ok && c.atomic {
		mode = "atomic"
		item, err = inc.IncrementContentCounter(ctx, id, field)
	} else {
		item, err = c.readModifyWrite(ctx, id, field)
	}
	c.metrics.increment(field, mode, err)
	if err != nil {
		c.logger.WarnContext(ctx, "counter increment failed", "content_id", id, "counter", field, "error", err)
		return nil, err
	}

	if c.cache != nil {
		c.cache.ApplyItem(item)
	}
	return item, nil
}

func (c *Counter) readModifyWrite(ctx context.Context, id uuid.UUID, field CounterField) (*ContentItem, error) {
	current, err := c.repo.GetContentItem(ctx, id)
	if err != nil {
		return nil, err
	}

	var patch ContentPatch
	switch field {
	case CounterLikes:
		next := current.LikeCount + 1
		patch.LikeCount = &next
	case CounterViews:
		next := current.ViewCount + 1
		patch.ViewCount = &next
	default:
		return nil, NewValidationError(KindContentItem, "counter", fmt.Sprintf("unknown counter %q", field))
	}
	return c.repo.UpdateContentItem(ctx, id, patch)
}
