package simplenews

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) ContentItemCreated(ctx context.Context, item *ContentItem) error {
	return nil
}

func (n *NoopEventSink) ContentItemUpdated(ctx context.Context, item *ContentItem) error {
	return nil
}

func (n *NoopEventSink) ContentItemDeleted(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (n *NoopEventSink) SliderEntryCreated(ctx context.Context, entry *SliderEntry) error {
	return nil
}

func (n *NoopEventSink) SliderEntryDeleted(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (n *NoopEventSink) AssetOrphaned(ctx context.Context, storageKey, reason string, cause error) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action.
// Orphaned assets are logged at warn level so operators can clean them up.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) ContentItemCreated(ctx context.Context, item *ContentItem) error {
	l.logger.InfoContext(ctx, "content item created",
		"content_id", item.ID, "title", item.Title, "category", item.Category, "has_media", item.HasMedia())
	return nil
}

func (l *LoggingEventSink) ContentItemUpdated(ctx context.Context, item *ContentItem) error {
	l.logger.InfoContext(ctx, "content item updated", "content_id", item.ID, "title", item.Title)
	return nil
}

func (l *LoggingEventSink) ContentItemDeleted(ctx context.Context, id uuid.UUID) error {
	l.logger.InfoContext(ctx, "content item deleted", "content_id", id)
	return nil
}

func (l *LoggingEventSink) SliderEntryCreated(ctx context.Context, entry *SliderEntry) error {
	l.logger.InfoContext(ctx, "slider entry created", "slider_id", entry.ID, "media_kind", entry.MediaKind)
	return nil
}

func (l *LoggingEventSink) SliderEntryDeleted(ctx context.Context, id uuid.UUID) error {
	l.logger.InfoContext(ctx, "slider entry deleted", "slider_id", id)
	return nil
}

func (l *LoggingEventSink) AssetOrphaned(ctx context.Context, storageKey, reason string, cause error) error {
	l.logger.WarnContext(ctx, "media asset orphaned", "storage_key", storageKey, "reason", reason, "error", cause)
	return nil
}
