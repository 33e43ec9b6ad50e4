package simplenews

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload stores the reader under params.ObjectKey
	Upload(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download downloads content directly
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes an object. Deleting an absent key is not an error.
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object; ErrObjectNotFound when absent
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// List returns metadata for every object whose key starts with prefix
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)
}

// Repository defines the record store for content items and slider entries.
// Lists return full snapshots ordered by CreatedAt, newest first.
type Repository interface {
	ListContentItems(ctx context.Context) ([]*ContentItem, error)
	GetContentItem(ctx context.Context, id uuid.UUID) (*ContentItem, error)
	InsertContentItem(ctx context.Context, fields ContentFields) (*ContentItem, error)
	UpdateContentItem(ctx context.Context, id uuid.UUID, patch ContentPatch) (*ContentItem, error)
	DeleteContentItem(ctx context.Context, id uuid.UUID) error

	ListSliderEntries(ctx context.Context) ([]*SliderEntry, error)
	GetSliderEntry(ctx context.Context, id uuid.UUID) (*SliderEntry, error)
	InsertSliderEntry(ctx context.Context, fields SliderFields) (*SliderEntry, error)
	UpdateSliderEntry(ctx context.Context, id uuid.UUID, patch SliderPatch) (*SliderEntry, error)
	DeleteSliderEntry(ctx context.Context, id uuid.UUID) error
}

// CounterIncrementer is implemented by repositories whose store can bump a
// counter in a single atomic statement. It returns the item after the change.
type CounterIncrementer interface {
	IncrementContentCounter(ctx context.Context, id uuid.UUID, field CounterField) (*ContentItem, error)
}

// Authorizer checks the admin credential presented with a mutation.
// It returns an *AuthError when the token is missing or rejected.
type Authorizer interface {
	Authorize(ctx context.Context, token string) error
}

// Refresher reloads the cached catalog in the background.
type Refresher interface {
	TriggerRefresh()
}

// EventSink defines the interface for event handling
type EventSink interface {
	// ContentItemCreated is fired after a content item is inserted
	ContentItemCreated(ctx context.Context, item *ContentItem) error

	// ContentItemUpdated is fired after a content item is patched
	ContentItemUpdated(ctx context.Context, item *ContentItem) error

	// ContentItemDeleted is fired after a content item record is removed
	ContentItemDeleted(ctx context.Context, id uuid.UUID) error

	// SliderEntryCreated is fired after a slider entry is inserted
	SliderEntryCreated(ctx context.Context, entry *SliderEntry) error

	// SliderEntryDeleted is fired after a slider entry record is removed
	SliderEntryDeleted(ctx context.Context, id uuid.UUID) error

	// AssetOrphaned is fired when a stored object could not be removed and
	// is no longer referenced by any record
	AssetOrphaned(ctx context.Context, storageKey, reason string, cause error) error
}
