package simplenews_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tendant/simple-news/pkg/simplenews"
	memoryrepo "github.com/tendant/simple-news/pkg/simplenews/repo/memory"
	memorystorage "github.com/tendant/simple-news/pkg/simplenews/storage/memory"
)

func newTestPortal(t *testing.T, repo simplenews.Repository, opts ...simplenews.PortalOption) *simplenews.Portal {
	t.Helper()
	auth, err := simplenews.NewStaticTokenAuthorizer(simplenews.TokenDigest(adminToken))
	require.NoError(t, err)

	opts = append([]simplenews.PortalOption{simplenews.WithPortalAuthorizer(auth)}, opts...)
	p, err := simplenews.NewPortal(repo, newMediaStore(t, memorystorage.New()), opts...)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestPortal_CreateSearchAndView(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	p := newTestPortal(t, memoryrepo.New())

	_, err := p.CreateContentItem(ctx, adminToken, simplenews.CreateContentItemRequest{
		Fields: simplenews.ContentFields{Title: "Budget 2024", Description: "Parliament votes", Category: simplenews.CategoryPolitics},
		File:   &simplenews.Upload{FileName: "vote.png", ContentType: "image/png", Body: strings.NewReader("png")},
	})
	require.NoError(t, err)
	_, err = p.CreateContentItem(ctx, adminToken, simplenews.CreateContentItemRequest{
		Fields: simplenews.ContentFields{Title: "Market Rally", Description: "Stocks up", Category: simplenews.CategoryBusiness},
	})
	require.NoError(t, err)
	p.Catalog().Wait()

	assert.Equal(t, []string{"Budget 2024"}, titles(p.Search("budget", simplenews.CategoryAll)))
	assert.Equal(t, []string{"Market Rally"}, titles(p.Search("", "Business")))

	v := p.View("", simplenews.CategoryAll, simplenews.LayoutConfig{Layout: simplenews.LayoutHeroGrid})
	require.Len(t, v.Hero, 1)
	assert.Equal(t, "Market Rally", v.Hero[0].Title, "newest first")
	assert.Equal(t, 2, v.Total)

	p.Close()
}

func TestPortal_LikeIsVisibleInCache(t *testing.T) {
	ctx := context.Background()
	p := newTestPortal(t, memoryrepo.New(), simplenews.WithPortalAtomicCounters(true))

	item, err := p.CreateContentItem(ctx, adminToken, simplenews.CreateContentItemRequest{
		Fields: simplenews.ContentFields{Title: "Cup Final", Description: "Late winner", Category: simplenews.CategorySports},
	})
	require.NoError(t, err)
	p.Catalog().Wait()

	n, err := p.IncrementLike(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = p.IncrementView(ctx, item.ID)
	require.NoError(t, err)

	cached, err := p.Item(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.LikeCount)
	assert.Equal(t, int64(1), cached.ViewCount)
}

func TestPortal_ItemFallsBackToRepository(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()
	p := newTestPortal(t, repo)

	item := insertArticle(t, repo, "Fresh", simplenews.CategoryTechnology)

	got, err := p.Item(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fresh", got.Title)

	_, err = p.Item(ctx, uuid.New())
	assert.ErrorIs(t, err, simplenews.ErrNotFound)
}

func TestPortal_DeleteAndSlides(t *testing.T) {
	ctx := context.Background()
	p := newTestPortal(t, memoryrepo.New())

	entry, err := p.CreateSliderEntry(ctx, adminToken, simplenews.CreateSliderEntryRequest{
		File: &simplenews.Upload{FileName: "hero.png", ContentType: "image/png", Body: strings.NewReader("png")},
	})
	require.NoError(t, err)
	require.NoError(t, p.Refresh(ctx))
	assert.Len(t, p.Slides(), 1)

	require.NoError(t, p.DeleteSliderEntry(ctx, adminToken, entry.ID))
	p.Catalog().Wait()
	assert.Empty(t, p.Slides())

	objs, err := p.Media().List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestPortal_StartLoadsCatalog(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	repo := memoryrepo.New()
	insertArticle(t, repo, "Budget 2024", simplenews.CategoryPolitics)

	p := newTestPortal(t, repo)
	require.NoError(t, p.Start(ctx, "@every 1h"))
	assert.Len(t, p.Search("", ""), 1)
	p.Close()
}

func TestNewPortal_RequiresStores(t *testing.T) {
	_, err := simplenews.NewPortal(nil, nil)
	assert.Error(t, err)
	_, err = simplenews.NewPortal(memoryrepo.New(), nil)
	assert.Error(t, err)
}
