// Package repotest holds a behavioural test suite shared by every
// simplenews.Repository backend.
package repotest

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-news/pkg/simplenews"
)

// Factory returns an empty repository for one subtest.
type Factory func(t *testing.T) simplenews.Repository

func strPtr(s string) *string { return &s }

// Run exercises the Repository contract against repositories built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("ContentItemLifecycle", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		item, err := repo.InsertContentItem(ctx, simplenews.ContentFields{
			Title:       "Budget 2024",
			Description: "Parliament passes the annual budget",
			Body:        "Full text",
			Category:    simplenews.CategoryPolitics,
			MediaRef:    strPtr("https://cdn.example.com/media/news_1.jpg"),
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, item.ID)
		assert.False(t, item.CreatedAt.IsZero())
		assert.Zero(t, item.ViewCount)
		assert.Zero(t, item.LikeCount)
		require.NotNil(t, item.MediaRef)

		got, err := repo.GetContentItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.ID, got.ID)
		assert.Equal(t, "Budget 2024", got.Title)
		assert.Equal(t, "Full text", got.Body)
		assert.Equal(t, simplenews.CategoryPolitics, got.Category)
		assert.Equal(t, *item.MediaRef, *got.MediaRef)

		title := "Budget 2025"
		likes := int64(5)
		updated, err := repo.UpdateContentItem(ctx, item.ID, simplenews.ContentPatch{Title: &title, LikeCount: &likes})
		require.NoError(t, err)
		assert.Equal(t, "Budget 2025", updated.Title)
		assert.Equal(t, int64(5), updated.LikeCount)
		assert.Equal(t, "Parliament passes the annual budget", updated.Description)

		require.NoError(t, repo.DeleteContentItem(ctx, item.ID))
		_, err = repo.GetContentItem(ctx, item.ID)
		assert.ErrorIs(t, err, simplenews.ErrNotFound)

		assert.NoError(t, repo.DeleteContentItem(ctx, item.ID), "delete is idempotent")
	})

	t.Run("ContentItemWithoutMedia", func(t *testing.T) {
		repo := newRepo(t)
		item, err := repo.InsertContentItem(context.Background(), simplenews.ContentFields{
			Title: "Market Rally", Description: "Stocks up", Category: simplenews.CategoryBusiness,
		})
		require.NoError(t, err)
		assert.Nil(t, item.MediaRef)
		assert.False(t, item.HasMedia())
	})

	t.Run("ClearMediaRef", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		item, err := repo.InsertContentItem(ctx, simplenews.ContentFields{
			Title: "t", Description: "d", Category: simplenews.CategorySports, MediaRef: strPtr("https://cdn/x.png"),
		})
		require.NoError(t, err)

		updated, err := repo.UpdateContentItem(ctx, item.ID, simplenews.ContentPatch{MediaRef: strPtr("")})
		require.NoError(t, err)
		assert.Nil(t, updated.MediaRef)
	})

	t.Run("InsertValidation", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.InsertContentItem(ctx, simplenews.ContentFields{Title: " ", Description: "d", Category: simplenews.CategorySports})
		assert.ErrorIs(t, err, simplenews.ErrValidation)

		_, err = repo.InsertContentItem(ctx, simplenews.ContentFields{Title: "t", Description: "d", Category: "Weather"})
		assert.ErrorIs(t, err, simplenews.ErrValidation)

		_, err = repo.InsertSliderEntry(ctx, simplenews.SliderFields{})
		assert.ErrorIs(t, err, simplenews.ErrValidation)

		items, err := repo.ListContentItems(ctx)
		require.NoError(t, err)
		assert.Empty(t, items, "rejected inserts leave no record")
	})

	t.Run("UpdateMissingAndInvalid", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		title := "x"
		_, err := repo.UpdateContentItem(ctx, uuid.New(), simplenews.ContentPatch{Title: &title})
		assert.ErrorIs(t, err, simplenews.ErrNotFound)

		item, err := repo.InsertContentItem(ctx, simplenews.ContentFields{Title: "t", Description: "d", Category: simplenews.CategorySports})
		require.NoError(t, err)
		blank := "  "
		_, err = repo.UpdateContentItem(ctx, item.ID, simplenews.ContentPatch{Title: &blank})
		assert.ErrorIs(t, err, simplenews.ErrValidation)

		ref := "https://cdn/y.png"
		_, err = repo.UpdateSliderEntry(ctx, uuid.New(), simplenews.SliderPatch{MediaRef: &ref})
		assert.ErrorIs(t, err, simplenews.ErrNotFound)
	})

	t.Run("ListOrderedNewestFirst", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		var ids []uuid.UUID
		for _, title := range []string{"first", "second", "third"} {
			item, err := repo.InsertContentItem(ctx, simplenews.ContentFields{Title: title, Description: "d", Category: simplenews.CategoryTechnology})
			require.NoError(t, err)
			ids = append(ids, item.ID)
		}

		items, err := repo.ListContentItems(ctx)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, ids[2], items[0].ID)
		assert.Equal(t, ids[1], items[1].ID)
		assert.Equal(t, ids[0], items[2].ID)
	})

	t.Run("SliderEntryLifecycle", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first, err := repo.InsertSliderEntry(ctx, simplenews.SliderFields{MediaRef: "https://cdn/slider_1.png"})
		require.NoError(t, err)
		assert.Equal(t, simplenews.MediaKindImage, first.MediaKind)

		second, err := repo.InsertSliderEntry(ctx, simplenews.SliderFields{MediaRef: "https://cdn/slider_2.mp4", MediaKind: simplenews.MediaKindVideo})
		require.NoError(t, err)

		entries, err := repo.ListSliderEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, second.ID, entries[0].ID)
		assert.Equal(t, simplenews.MediaKindVideo, entries[0].MediaKind)

		kind := simplenews.MediaKindVideo
		updated, err := repo.UpdateSliderEntry(ctx, first.ID, simplenews.SliderPatch{MediaKind: &kind})
		require.NoError(t, err)
		assert.Equal(t, simplenews.MediaKindVideo, updated.MediaKind)

		require.NoError(t, repo.DeleteSliderEntry(ctx, first.ID))
		_, err = repo.GetSliderEntry(ctx, first.ID)
		assert.ErrorIs(t, err, simplenews.ErrNotFound)
		assert.NoError(t, repo.DeleteSliderEntry(ctx, first.ID))
	})

	t.Run("AtomicIncrement", func(t *testing.T) {
		repo := newRepo(t)
		inc, ok := repo.(simplenews.CounterIncrementer)
		if !ok {
			t.Skip("repository has no atomic increment")
		}
		ctx := context.Background()

		item, err := repo.InsertContentItem(ctx, simplenews.ContentFields{Title: "t", Description: "d", Category: simplenews.CategorySports})
		require.NoError(t, err)

		const n = 10
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := inc.IncrementContentCounter(ctx, item.ID, simplenews.CounterLikes)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := inc.IncrementContentCounter(ctx, item.ID, simplenews.CounterViews)
		require.NoError(t, err)
		assert.Equal(t, int64(n), got.LikeCount)
		assert.Equal(t, int64(1), got.ViewCount)

		_, err = inc.IncrementContentCounter(ctx, uuid.New(), simplenews.CounterLikes)
		assert.ErrorIs(t, err, simplenews.ErrNotFound)
	})
}
