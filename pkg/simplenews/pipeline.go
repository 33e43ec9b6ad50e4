package simplenews

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// CreateContentItemRequest contains parameters for creating a content item.
// File is optional; when present it is uploaded first and referenced by the item.
type CreateContentItemRequest struct {
	Fields ContentFields
	File   *Upload
}

// CreateSliderEntryRequest contains parameters for creating a slider entry.
type CreateSliderEntryRequest struct {
	File *Upload
}

// Pipeline performs mutations that span the record store and the blob store.
// Creates upload before inserting and compensate a failed insert by deleting
// the upload. Deletes remove the record before the asset. A failure in
// between leaves an orphaned asset, never a record pointing at missing media.
type Pipeline struct {
	repo      Repository
	media     *MediaStore
	auth      Authorizer
	refresher Refresher
	events    EventSink
	metrics   *Metrics
	logger    *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithAuthorizer sets the admin capability check. Without one every mutation is rejected.
func WithAuthorizer(auth Authorizer) PipelineOption {
	return func(p *Pipeline) {
		p.auth = auth
	}
}

// WithRefresher sets what is signalled after a successful mutation
func WithRefresher(r Refresher) PipelineOption {
	return func(p *Pipeline) {
		p.refresher = r
	}
}

// WithEventSink sets the event sink for the pipeline
func WithEventSink(sink EventSink) PipelineOption {
	return func(p *Pipeline) {
		p.events = sink
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithPipelineLogger sets the logger
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a mutation pipeline over repo and media.
func NewPipeline(repo Repository, media *MediaStore, opts ...PipelineOption) (*Pipeline, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if media == nil {
		return nil, fmt.Errorf("media store is required")
	}
	p := &Pipeline{
		repo:   repo,
		media:  media,
		auth:   DenyAllAuthorizer{},
		events: NewNoopEventSink(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Authorize runs the admin capability check used by every mutation.
func (p *Pipeline) Authorize(ctx context.Context, token string) error {
	return p.authorize(ctx, token)
}

func (p *Pipeline) authorize(ctx context.Context, token string) error {
	if err := p.auth.Authorize(ctx, token); err != nil {
		var aerr *AuthError
		if !errors.As(err, &aerr) {
			err = &AuthError{Reason: "authorization failed", Err: err}
		}
		p.logger.WarnContext(ctx, "mutation rejected", "error", err)
		return err
	}
	return nil
}

// CreateContentItem uploads the optional file and inserts the item referencing it.
func (p *Pipeline) CreateContentItem(ctx context.Context, token string, req CreateContentItemRequest) (item *ContentItem, err error) {
	defer func() { p.metrics.mutation("create_content_item", err) }()

	if err := p.authorize(ctx, token); err != nil {
		return nil, err
	}

	fields := req.Fields
	// the only media a new item may reference is the one uploaded here
	fields.MediaRef = nil

	var asset *MediaAsset
	if req.File != nil {
		asset, err = p.media.Upload(ctx, *req.File, PurposeNews)
		if err != nil {
			return nil, err
		}
		ref := asset.PublicURL
		fields.MediaRef = &ref
	}

	item, err = p.repo.InsertContentItem(ctx, fields)
	if err != nil {
		if asset != nil {
			p.compensate(ctx, asset.StorageKey, err)
		}
		return nil, err
	}

	p.logger.InfoContext(ctx, "content item created", "content_id", item.ID, "has_media", asset != nil)
	p.emit(ctx, "content_item_created", p.events.ContentItemCreated(ctx, item))
	p.triggerRefresh()
	return item, nil
}

// CreateSliderEntry uploads the file and inserts a slider entry referencing it.
// The entry's kind follows the uploaded content type.
func (p *Pipeline) CreateSliderEntry(ctx context.Context, token string, req CreateSliderEntryRequest) (entry *SliderEntry, err error) {
	defer func() { p.metrics.mutation("create_slider_entry", err) }()

	if err := p.authorize(ctx, token); err != nil {
		return nil, err
	}
	if req.File == nil {
		return nil, NewValidationError(KindSliderEntry, "file", "file is required")
	}

	asset, err := p.media.Upload(ctx, *req.File, PurposeSlider)
	if err != nil {
		return nil, err
	}

	entry, err = p.repo.InsertSliderEntry(ctx, SliderFields{MediaRef: asset.PublicURL, MediaKind: asset.MediaKind})
	if err != nil {
		p.compensate(ctx, asset.StorageKey, err)
		return nil, err
	}

	p.logger.InfoContext(ctx, "slider entry created", "slider_id", entry.ID, "media_kind", entry.MediaKind)
	p.emit(ctx, "slider_entry_created", p.events.SliderEntryCreated(ctx, entry))
	p.triggerRefresh()
	return entry, nil
}

// UpdateContentItem applies an editorial patch. Counters and media are not
// patchable here; counters change through the engagement counter only.
func (p *Pipeline) UpdateContentItem(ctx context.Context, token string, id uuid.UUID, patch ContentPatch) (item *ContentItem, err error) {
	defer func() { p.metrics.mutation("update_content_item", err) }()

	if err := p.authorize(ctx, token); err != nil {
		return nil, err
	}
	switch {
	case patch.ViewCount != nil || patch.LikeCount != nil:
		return nil, NewValidationError(KindContentItem, "counts", "counts cannot be patched")
	case patch.MediaRef != nil:
		return nil, NewValidationError(KindContentItem, "media_ref", "media cannot be patched")
	}

	item, err = p.repo.UpdateContentItem(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	p.emit(ctx, "content_item_updated", p.events.ContentItemUpdated(ctx, item))
	p.triggerRefresh()
	return item, nil
}

// DeleteContentItem removes the item and then its media. Deleting an absent
// item succeeds without side effects.
func (p *Pipeline) DeleteContentItem(ctx context.Context, token string, id uuid.UUID) (err error) {
	defer func() { p.metrics.mutation("delete_content_item", err) }()

	if err := p.authorize(ctx, token); err != nil {
		return err
	}

	item, err := p.repo.GetContentItem(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := p.repo.DeleteContentItem(ctx, id); err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "content item deleted", "content_id", id)
	p.emit(ctx, "content_item_deleted", p.events.ContentItemDeleted(ctx, id))

	if item.HasMedia() {
		p.releaseAsset(ctx, *item.MediaRef)
	}
	p.triggerRefresh()
	return nil
}

// DeleteSliderEntry removes the entry and then its media.
func (p *Pipeline) DeleteSliderEntry(ctx context.Context, token string, id uuid.UUID) (err error) {
	defer func() { p.metrics.mutation("delete_slider_entry", err) }()

	if err := p.authorize(ctx, token); err != nil {
		return err
	}

	entry, err := p.repo.GetSliderEntry(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := p.repo.DeleteSliderEntry(ctx, id); err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "slider entry deleted", "slider_id", id)
	p.emit(ctx, "slider_entry_deleted", p.events.SliderEntryDeleted(ctx, id))

	p.releaseAsset(ctx, entry.MediaRef)
	p.triggerRefresh()
	return nil
}

// compensate deletes an upload whose record insert failed. The insert error
// is what the caller sees either way.
func (p *Pipeline) compensate(ctx context.Context, key string, cause error) {
	ctx = context.WithoutCancel(ctx)
	p.metrics.compensation()
	p.logger.WarnContext(ctx, "insert failed, deleting uploaded media", "storage_key", key, "error", cause)

	if err := p.media.Delete(ctx, key); err != nil {
		p.logger.ErrorContext(ctx, "compensating delete failed", "storage_key", key, "error", err)
		p.metrics.orphaned(OrphanReasonCompensationFailed)
		p.emit(ctx, "asset_orphaned", p.events.AssetOrphaned(ctx, key, OrphanReasonCompensationFailed, err))
	}
}

// releaseAsset deletes the media behind a removed record. Failures are
// reported but never undo the record delete.
func (p *Pipeline) releaseAsset(ctx context.Context, mediaRef string) {
	ctx = context.WithoutCancel(ctx)

	key, err := p.media.KeyFromURL(mediaRef)
	if errors.Is(err, ErrForeignMediaURL) {
		p.logger.DebugContext(ctx, "media not managed here, skipping delete", "media_ref", mediaRef)
		return
	}
	if err != nil {
		p.logger.WarnContext(ctx, "cannot derive storage key", "media_ref", mediaRef, "error", err)
		return
	}

	if err := p.media.Delete(ctx, key); err != nil {
		p.logger.ErrorContext(ctx, "media delete failed, asset orphaned", "storage_key", key, "error", err)
		p.metrics.orphaned(OrphanReasonDeleteFailed)
		p.emit(ctx, "asset_orphaned", p.events.AssetOrphaned(ctx, key, OrphanReasonDeleteFailed, err))
	}
}

func (p *Pipeline) triggerRefresh() {
	if p.refresher != nil {
		p.refresher.TriggerRefresh()
	}
}

func (p *Pipeline) emit(ctx context.Context, event string, err error) {
	if err != nil {
		p.logger.WarnContext(ctx, "event sink failed", "event", event, "error", err)
	}
}
