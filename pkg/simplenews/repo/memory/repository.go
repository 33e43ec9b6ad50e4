package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-news/pkg/simplenews"
)

// Repository implements simplenews.Repository using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	items   map[uuid.UUID]*simplenews.ContentItem
	entries map[uuid.UUID]*simplenews.SliderEntry
	now     func() time.Time
	last    time.Time
}

// New creates a new in-memory repository
func New() *Repository {
	return NewWithClock(time.Now)
}

// NewWithClock creates a repository that stamps records with the given clock.
// CreatedAt values are kept strictly increasing even if the clock stalls.
func NewWithClock(now func() time.Time) *Repository {
	return &Repository{
		items:   make(map[uuid.UUID]*simplenews.ContentItem),
		entries: make(map[uuid.UUID]*simplenews.SliderEntry),
		now:     now,
	}
}

// nextCreatedAt must be called with the write lock held.
func (r *Repository) nextCreatedAt() time.Time {
	t := r.now().UTC()
	if !t.After(r.last) {
		t = r.last.Add(time.Microsecond)
	}
	r.last = t
	return t
}

// Content item operations

func (r *Repository) ListContentItems(ctx context.Context) ([]*simplenews.ContentItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*simplenews.ContentItem, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) GetContentItem(ctx context.Context, id uuid.UUID) (*simplenews.ContentItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[id]
	if !exists {
		return nil, simplenews.NotFound(simplenews.KindContentItem, id)
	}
	return item.Clone(), nil
}

func (r *Repository) InsertContentItem(ctx context.Context, fields simplenews.ContentFields) (*simplenews.ContentItem, error) {
	fields, err := simplenews.ValidateContentFields(fields)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	item := &simplenews.ContentItem{
		ID:          uuid.New(),
		Title:       fields.Title,
		Description: fields.Description,
		Body:        fields.Body,
		Category:    fields.Category,
		MediaRef:    fields.MediaRef,
		CreatedAt:   r.nextCreatedAt(),
	}
	item = item.Clone()
	r.items[item.ID] = item
	return item.Clone(), nil
}

func (r *Repository) UpdateContentItem(ctx context.Context, id uuid.UUID, patch simplenews.ContentPatch) (*simplenews.ContentItem, error) {
	patch, err := simplenews.ValidateContentPatch(patch)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	item, exists := r.items[id]
	if !exists {
		return nil, simplenews.NotFound(simplenews.KindContentItem, id)
	}
	updated := item.Clone()
	patch.Apply(updated)
	r.items[id] = updated
	return updated.Clone(), nil
}

func (r *Repository) DeleteContentItem(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, id)
	return nil
}

// IncrementContentCounter bumps a counter under the write lock.
func (r *Repository) IncrementContentCounter(ctx context.Context, id uuid.UUID, field simplenews.CounterField) (*simplenews.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, exists := r.items[id]
	if !exists {
		return nil, simplenews.NotFound(simplenews.KindContentItem, id)
	}
	switch field {
	case simplenews.CounterLikes:
		item.LikeCount++
	case simplenews.CounterViews:
		item.ViewCount++
	default:
		return nil, simplenews.NewValidationError(simplenews.KindContentItem, "counter", "unknown counter "+string(field))
	}
	return item.Clone(), nil
}

// Slider entry operations

func (r *Repository) ListSliderEntries(ctx context.Context) ([]*simplenews.SliderEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*simplenews.SliderEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		cp := *entry
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) GetSliderEntry(ctx context.Context, id uuid.UUID) (*simplenews.SliderEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[id]
	if !exists {
		return nil, simplenews.NotFound(simplenews.KindSliderEntry, id)
	}
	cp := *entry
	return &cp, nil
}

func (r *Repository) InsertSliderEntry(ctx context.Context, fields simplenews.SliderFields) (*simplenews.SliderEntry, error) {
	fields, err := simplenews.ValidateSliderFields(fields)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &simplenews.SliderEntry{
		ID:        uuid.New(),
		MediaRef:  fields.MediaRef,
		MediaKind: fields.MediaKind,
		CreatedAt: r.nextCreatedAt(),
	}
	r.entries[entry.ID] = entry
	cp := *entry
	return &cp, nil
}

func (r *Repository) UpdateSliderEntry(ctx context.Context, id uuid.UUID, patch simplenews.SliderPatch) (*simplenews.SliderEntry, error) {
	patch, err := simplenews.ValidateSliderPatch(patch)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[id]
	if !exists {
		return nil, simplenews.NotFound(simplenews.KindSliderEntry, id)
	}
	updated := *entry
	patch.Apply(&updated)
	r.entries[id] = &updated
	cp := updated
	return &cp, nil
}

func (r *Repository) DeleteSliderEntry(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, id)
	return nil
}

var (
	_ simplenews.Repository         = (*Repository)(nil)
	_ simplenews.CounterIncrementer = (*Repository)(nil)
)
