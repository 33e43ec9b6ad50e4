package simplenews

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is the editorial section of a content item.
type Category string

// Category constants (typed).
const (
	CategoryBreakingNews  Category = "Breaking News"
	CategoryPolitics      Category = "Politics"
	CategoryBusiness      Category = "Business"
	CategoryTechnology    Category = "Technology"
	CategoryEntertainment Category = "Entertainment"
	CategorySports        Category = "Sports"
)

// CategoryAll is the filter value that matches every category. It is never stored.
const CategoryAll = "All"

// Categories returns the fixed set of storable categories in display order.
func Categories() []Category {
	return []Category{
		CategoryBreakingNews,
		CategoryPolitics,
		CategoryBusiness,
		CategoryTechnology,
		CategoryEntertainment,
		CategorySports,
	}
}

// IsValid reports whether c is one of the fixed categories.
func (c Category) IsValid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// MediaKind distinguishes image and video assets.
type MediaKind string

// MediaKind constants (typed).
const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// KindFromContentType derives the media kind from a MIME type.
// Only video/* maps to video; everything else, including an empty type, is an image.
func KindFromContentType(contentType string) MediaKind {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/") {
		return MediaKindVideo
	}
	return MediaKindImage
}

// ContentItem is a published article.
type ContentItem struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Body        string    `json:"body,omitempty"`
	Category    Category  `json:"category,omitempty"`
	MediaRef    *string   `json:"media_ref"`
	CreatedAt   time.Time `json:"created_at"`
	ViewCount   int64     `json:"view_count"`
	LikeCount   int64     `json:"like_count"`
}

// HasMedia reports whether the item references a media asset.
func (c *ContentItem) HasMedia() bool {
	return c.MediaRef != nil && *c.MediaRef != ""
}

// Clone returns a deep copy of the item.
func (c *ContentItem) Clone() *ContentItem {
	cp := *c
	if c.MediaRef != nil {
		ref := *c.MediaRef
		cp.MediaRef = &ref
	}
	return &cp
}

// SliderEntry is a carousel media record shown on the landing view.
type SliderEntry struct {
	ID        uuid.UUID `json:"id"`
	MediaRef  string    `json:"media_ref"`
	MediaKind MediaKind `json:"media_kind"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaAsset is a stored binary object with a public URL.
type MediaAsset struct {
	StorageKey  string    `json:"storage_key"`
	PublicURL   string    `json:"public_url"`
	MediaKind   MediaKind `json:"media_kind"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size,omitempty"`
}

// ContentFields are the caller-supplied fields of a new content item.
type ContentFields struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Body        string   `json:"body"`
	Category    Category `json:"category" validate:"required,category"`
	MediaRef    *string  `json:"media_ref"`
}

// ContentPatch is a partial update of a content item. Nil fields are left untouched.
type ContentPatch struct {
	Title       *string   `json:"title,omitempty" validate:"omitnil,nonblank"`
	Description *string   `json:"description,omitempty" validate:"omitnil,nonblank"`
	Body        *string   `json:"body,omitempty"`
	Category    *Category `json:"category,omitempty" validate:"omitnil,category"`
	MediaRef    *string   `json:"media_ref,omitempty"`
	ViewCount   *int64    `json:"view_count,omitempty" validate:"omitnil,min=0"`
	LikeCount   *int64    `json:"like_count,omitempty" validate:"omitnil,min=0"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ContentPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Body == nil && p.Category == nil &&
		p.MediaRef == nil && p.ViewCount == nil && p.LikeCount == nil
}

// Apply writes the non-nil patch fields onto item.
func (p ContentPatch) Apply(item *ContentItem) {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Body != nil {
		item.Body = *p.Body
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.MediaRef != nil {
		if *p.MediaRef == "" {
			item.MediaRef = nil
		} else {
			ref := *p.MediaRef
			item.MediaRef = &ref
		}
	}
	if p.ViewCount != nil {
		item.ViewCount = *p.ViewCount
	}
	if p.LikeCount != nil {
		item.LikeCount = *p.LikeCount
	}
}

// SliderFields are the fields of a new slider entry.
type SliderFields struct {
	MediaRef  string    `json:"media_ref" validate:"required"`
	MediaKind MediaKind `json:"media_kind" validate:"omitempty,oneof=image video"`
}

// SliderPatch is a partial update of a slider entry.
type SliderPatch struct {
	MediaRef  *string    `json:"media_ref,omitempty" validate:"omitnil,nonblank"`
	MediaKind *MediaKind `json:"media_kind,omitempty" validate:"omitnil,oneof=image video"`
}

// Apply writes the non-nil patch fields onto entry.
func (p SliderPatch) Apply(entry *SliderEntry) {
	if p.MediaRef != nil {
		entry.MediaRef = *p.MediaRef
	}
	if p.MediaKind != nil {
		entry.MediaKind = *p.MediaKind
	}
}

// CounterField selects which engagement counter to change.
type CounterField string

// CounterField constants (typed).
const (
	CounterViews CounterField = "views"
	CounterLikes CounterField = "likes"
)

// Upload is a file handed to the media store.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Media purposes used as storage key prefixes.
const (
	PurposeNews   = "news"
	PurposeSlider = "slider"
)

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}
