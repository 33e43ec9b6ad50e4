// Package sqlite is a single-node simplenews.Repository on an embedded
// SQLite file, accessed through GORM and the pure-Go glebarez driver.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tendant/simple-news/pkg/simplenews"
)

const backendName = "sqlite"

type newsItemModel struct {
	ID          uuid.UUID `gorm:"type:text;primaryKey"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	Body        string    `gorm:"not null;default:''"`
	Category    string    `gorm:"not null;index"`
	MediaRef    *string
	ViewCount   int64     `gorm:"not null;default:0"`
	LikeCount   int64     `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

func (newsItemModel) TableName() string { return "news_items" }

func (m newsItemModel) toItem() *simplenews.ContentItem {
	item := &simplenews.ContentItem{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Body:        m.Body,
		Category:    simplenews.Category(m.Category),
		CreatedAt:   m.CreatedAt,
		ViewCount:   m.ViewCount,
		LikeCount:   m.LikeCount,
	}
	if m.MediaRef != nil {
		ref := *m.MediaRef
		item.MediaRef = &ref
	}
	return item
}

type sliderEntryModel struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	MediaRef  string    `gorm:"not null"`
	MediaKind string    `gorm:"not null;default:'image'"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (sliderEntryModel) TableName() string { return "slider_entries" }

func (m sliderEntryModel) toEntry() *simplenews.SliderEntry {
	return &simplenews.SliderEntry{
		ID:        m.ID,
		MediaRef:  m.MediaRef,
		MediaKind: simplenews.MediaKind(m.MediaKind),
		CreatedAt: m.CreatedAt,
	}
}

// Repository implements simplenews.Repository on SQLite.
type Repository struct {
	db *gorm.DB

	mu   sync.Mutex
	last time.Time
}

// Open opens (creating if needed) the database file at path and migrates it.
// Use ":memory:" for a throwaway database.
func Open(path string, log *slog.Logger) (*Repository, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log == nil {
		log = slog.Default()
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 newGormLogger(log),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	// one writer at a time; also keeps ":memory:" on a single connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&newsItemModel{}, &sliderEntryModel{}); err != nil {
		return nil, fmt.Errorf("migrating sqlite schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close releases the underlying connection.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Repository) nextCreatedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := time.Now().UTC()
	if !t.After(r.last) {
		t = r.last.Add(time.Microsecond)
	}
	r.last = t
	return t
}

func mapError(kind, op string, id uuid.UUID, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return simplenews.NotFound(kind, id)
	}
	return &simplenews.TransportError{Backend: backendName, Op: op, Err: err}
}

// Content item operations

func (r *Repository) ListContentItems(ctx context.Context) ([]*simplenews.ContentItem, error) {
	var models []newsItemModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, mapError(simplenews.KindContentItem, "list content items", uuid.Nil, err)
	}
	items := make([]*simplenews.ContentItem, 0, len(models))
	for _, m := range models {
		items = append(items, m.toItem())
	}
	return items, nil
}

func (r *Repository) GetContentItem(ctx context.Context, id uuid.UUID) (*simplenews.ContentItem, error) {
	var m newsItemModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapError(simplenews.KindContentItem, "get content item", id, err)
	}
	return m.toItem(), nil
}

func (r *Repository) InsertContentItem(ctx context.Context, fields simplenews.ContentFields) (*simplenews.ContentItem, error) {
	fields, err := simplenews.ValidateContentFields(fields)
	if err != nil {
		return nil, err
	}

	m := newsItemModel{
		ID:          uuid.New(),
		Title:       fields.Title,
		Description: fields.Description,
		Body:        fields.Body,
		Category:    string(fields.Category),
		MediaRef:    fields.MediaRef,
		CreatedAt:   r.nextCreatedAt(),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, mapError(simplenews.KindContentItem, "insert content item", m.ID, err)
	}
	return m.toItem(), nil
}

func (r *Repository) UpdateContentItem(ctx context.Context, id uuid.UUID, patch simplenews.ContentPatch) (*simplenews.ContentItem, error) {
	patch, err := simplenews.ValidateContentPatch(patch)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Body != nil {
		updates["body"] = *patch.Body
	}
	if patch.Category != nil {
		updates["category"] = string(*patch.Category)
	}
	if patch.MediaRef != nil {
		if *patch.MediaRef == "" {
			updates["media_ref"] = nil
		} else {
			updates["media_ref"] = *patch.MediaRef
		}
	}
	if patch.ViewCount != nil {
		updates["view_count"] = *patch.ViewCount
	}
	if patch.LikeCount != nil {
		updates["like_count"] = *patch.LikeCount
	}

	var m newsItemModel
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			res := tx.Model(&newsItemModel{}).Where("id = ?", id).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return tx.First(&m, "id = ?", id).Error
	})
	if err != nil {
		return nil, mapError(simplenews.KindContentItem, "update content item", id, err)
	}
	return m.toItem(), nil
}

func (r *Repository) DeleteContentItem(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&newsItemModel{}, "id = ?", id).Error; err != nil {
		return mapError(simplenews.KindContentItem, "delete content item", id, err)
	}
	return nil
}

// IncrementContentCounter bumps a counter with a single UPDATE expression.
func (r *Repository) IncrementContentCounter(ctx context.Context, id uuid.UUID, field simplenews.CounterField) (*simplenews.ContentItem, error) {
	var column string
	switch field {
	case simplenews.CounterLikes:
		column = "like_count"
	case simplenews.CounterViews:
		column = "view_count"
	default:
		return nil, simplenews.NewValidationError(simplenews.KindContentItem, "counter", "unknown counter "+string(field))
	}

	var m newsItemModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&newsItemModel{}).Where("id = ?", id).UpdateColumn(column, gorm.Expr(column+" + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&m, "id = ?", id).Error
	})
	if err != nil {
		return nil, mapError(simplenews.KindContentItem, "increment "+string(field), id, err)
	}
	return m.toItem(), nil
}

// Slider entry operations

func (r *Repository) ListSliderEntries(ctx context.Context) ([]*simplenews.SliderEntry, error) {
	var models []sliderEntryModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, mapError(simplenews.KindSliderEntry, "list slider entries", uuid.Nil, err)
	}
	entries := make([]*simplenews.SliderEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, m.toEntry())
	}
	return entries, nil
}

func (r *Repository) GetSliderEntry(ctx context.Context, id uuid.UUID) (*simplenews.SliderEntry, error) {
	var m sliderEntryModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapError(simplenews.KindSliderEntry, "get slider entry", id, err)
	}
	return m.toEntry(), nil
}

func (r *Repository) InsertSliderEntry(ctx context.Context, fields simplenews.SliderFields) (*simplenews.SliderEntry, error) {
	fields, err := simplenews.ValidateSliderFields(fields)
	if err != nil {
		return nil, err
	}

	m := sliderEntryModel{
		ID:        uuid.New(),
		MediaRef:  fields.MediaRef,
		MediaKind: string(fields.MediaKind),
		CreatedAt: r.nextCreatedAt(),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, mapError(simplenews.KindSliderEntry, "insert slider entry", m.ID, err)
	}
	return m.toEntry(), nil
}

func (r *Repository) UpdateSliderEntry(ctx context.Context, id uuid.UUID, patch simplenews.SliderPatch) (*simplenews.SliderEntry, error) {
	patch, err := simplenews.ValidateSliderPatch(patch)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if patch.MediaRef != nil {
		updates["media_ref"] = *patch.MediaRef
	}
	if patch.MediaKind != nil {
		updates["media_kind"] = string(*patch.MediaKind)
	}

	var m sliderEntryModel
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			res := tx.Model(&sliderEntryModel{}).Where("id = ?", id).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return tx.First(&m, "id = ?", id).Error
	})
	if err != nil {
		return nil, mapError(simplenews.KindSliderEntry, "update slider entry", id, err)
	}
	return m.toEntry(), nil
}

func (r *Repository) DeleteSliderEntry(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&sliderEntryModel{}, "id = ?", id).Error; err != nil {
		return mapError(simplenews.KindSliderEntry, "delete slider entry", id, err)
	}
	return nil
}

var (
	_ simplenews.Repository         = (*Repository)(nil)
	_ simplenews.CounterIncrementer = (*Repository)(nil)
)
