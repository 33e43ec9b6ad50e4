// Package scan finds and removes media that no record references.
//
// The create path uploads before it inserts, and the delete path removes the
// record before the media, so a crash or a failed storage call can leave an
// orphaned object behind. The Sweeper is the background cleanup for those.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tendant/simple-news/pkg/simplenews"
)

// ErrUnresolvedReferences is returned, before anything is deleted, when a
// record's media reference cannot be mapped to a storage key.
var ErrUnresolvedReferences = errors.New("media references without a storage key")

// DefaultGracePeriod protects uploads whose record insert may still be in flight.
const DefaultGracePeriod = 15 * time.Minute

// Sweeper compares stored media against the records referencing it.
type Sweeper struct {
	repo   simplenews.Repository
	media  *simplenews.MediaStore
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithClock sets the clock used for the grace period
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// New creates a new Sweeper instance.
func New(repo simplenews.Repository, media *simplenews.MediaStore, opts ...Option) *Sweeper {
	s := &Sweeper{
		repo:   repo,
		media:  media,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SweepOptions configures the sweep operation.
type SweepOptions struct {
	// Prefixes limits the scan to keys with these prefixes (default: news_ and slider_)
	Prefixes []string

	// GracePeriod skips objects modified more recently than this (default: DefaultGracePeriod)
	GracePeriod time.Duration

	// DryRun if true, reports orphans without deleting them
	DryRun bool

	// OnOrphan is called for every orphan found, before it is deleted (optional)
	OnOrphan func(ctx context.Context, obj simplenews.ObjectMeta)
}

// SweepResult contains statistics about the sweep operation.
type SweepResult struct {
	// TotalScanned is the number of stored objects examined
	TotalScanned int64

	// TotalReferenced is the number of objects still referenced by a record
	TotalReferenced int64

	// TotalRecent is the number of unreferenced objects inside the grace period
	TotalRecent int64

	// TotalOrphaned is the number of unreferenced objects past the grace period
	TotalOrphaned int64

	// TotalDeleted is the number of orphans removed
	TotalDeleted int64

	// TotalFailed is the number of orphans whose delete failed
	TotalFailed int64

	// OrphanedKeys lists every orphan found
	OrphanedKeys []string

	// FailedKeys lists the orphans that could not be deleted
	FailedKeys []string

	// UnresolvedRefs lists the media references that named no storage key
	UnresolvedRefs []string
}

// Sweep lists stored media, subtracts what current records reference and
// deletes the rest once it is older than the grace period.
func (s *Sweeper) Sweep(ctx context.Context, opts SweepOptions) (*SweepResult, error) {
	result := &SweepResult{}

	if len(opts.Prefixes) == 0 {
		opts.Prefixes = []string{simplenews.PurposeNews + "_", simplenews.PurposeSlider + "_"}
	}
	if opts.GracePeriod == 0 {
		opts.GracePeriod = DefaultGracePeriod
	}

	referenced, unresolved, err := s.referencedKeys(ctx)
	if err != nil {
		return result, err
	}
	if len(unresolved) > 0 {
		result.UnresolvedRefs = unresolved
		s.logger.ErrorContext(ctx, "orphan sweep aborted", "unresolved_refs", len(unresolved))
		return result, fmt.Errorf("%w: %d references", ErrUnresolvedReferences, len(unresolved))
	}
	cutoff := s.now().Add(-opts.GracePeriod)

	for _, prefix := range opts.Prefixes {
		objects, err := s.media.List(ctx, prefix)
		if err != nil {
			return result, fmt.Errorf("failed to list media under %q: %w", prefix, err)
		}

		for _, obj := range objects {
			result.TotalScanned++

			if _, ok := referenced[obj.Key]; ok {
				result.TotalReferenced++
				continue
			}
			if obj.UpdatedAt.After(cutoff) {
				result.TotalRecent++
				continue
			}

			result.TotalOrphaned++
			result.OrphanedKeys = append(result.OrphanedKeys, obj.Key)
			if opts.OnOrphan != nil {
				opts.OnOrphan(ctx, obj)
			}

			if opts.DryRun {
				s.logger.InfoContext(ctx, "dry run: would delete orphaned media", "storage_key", obj.Key, "size", obj.Size)
				continue
			}

			if err := s.media.Delete(ctx, obj.Key); err != nil {
				result.TotalFailed++
				result.FailedKeys = append(result.FailedKeys, obj.Key)
				s.logger.ErrorContext(ctx, "failed to delete orphaned media", "storage_key", obj.Key, "error", err)
				continue
			}
			result.TotalDeleted++
		}
	}

	s.logger.InfoContext(ctx, "orphan sweep finished",
		"scanned", result.TotalScanned,
		"orphaned", result.TotalOrphaned,
		"deleted", result.TotalDeleted,
		"failed", result.TotalFailed,
		"dry_run", opts.DryRun)
	return result, nil
}

// referencedKeys collects the storage keys of every media reference held by
// a record, plus the references no key could be derived from.
func (s *Sweeper) referencedKeys(ctx context.Context) (map[string]struct{}, []string, error) {
	items, err := s.repo.ListContentItems(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list content items: %w", err)
	}
	slides, err := s.repo.ListSliderEntries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list slider entries: %w", err)
	}

	refs := make([]string, 0, len(items)+len(slides))
	for _, it := range items {
		if it.HasMedia() {
			refs = append(refs, *it.MediaRef)
		}
	}
	for _, sl := range slides {
		refs = append(refs, sl.MediaRef)
	}

	keys := make(map[string]struct{}, len(refs))
	var unresolved []string
	for _, ref := range refs {
		key, err := s.media.KeyFromURL(ref)
		if err != nil {
			// records written under an earlier media base still name their
			// object in the last path segment
			key = trailingKey(ref)
			if key == "" {
				unresolved = append(unresolved, ref)
				continue
			}
			if !errors.Is(err, simplenews.ErrForeignMediaURL) {
				s.logger.WarnContext(ctx, "cannot derive storage key, using last path segment", "media_ref", ref, "storage_key", key, "error", err)
			}
		}
		keys[key] = struct{}{}
	}
	return keys, unresolved, nil
}

// trailingKey returns the last path segment of a media reference, or "" when
// the reference has none.
func trailingKey(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	key := path.Base(p)
	if key == "." || key == "/" {
		return ""
	}
	return key
}
