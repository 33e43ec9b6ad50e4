package simplenews_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-news/pkg/simplenews"
	memoryrepo "github.com/tendant/simple-news/pkg/simplenews/repo/memory"
)

// barrierRepo releases GetContentItem only once every expected reader has
// read, forcing concurrent increments to start from the same value.
type barrierRepo struct {
	simplenews.Repository
	readers sync.WaitGroup
}

func (b *barrierRepo) GetContentItem(ctx context.Context, id uuid.UUID) (*simplenews.ContentItem, error) {
	item, err := b.Repository.GetContentItem(ctx, id)
	b.readers.Done()
	b.readers.Wait()
	return item, err
}

func itemWithLikes(t *testing.T, repo simplenews.Repository, likes int64) *simplenews.ContentItem {
	t.Helper()
	item := insertArticle(t, repo, "Budget 2024", simplenews.CategoryPolitics)
	item, err := repo.UpdateContentItem(context.Background(), item.ID, simplenews.ContentPatch{LikeCount: &likes})
	require.NoError(t, err)
	return item
}

func incrementTwice(counter *simplenews.Counter, id uuid.UUID) {
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = counter.IncrementLike(context.Background(), id)
		}()
	}
	wg.Wait()
}

func TestCounter_IncrementLike(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()
	item := itemWithLikes(t, repo, 5)

	catalog := simplenews.NewCatalog(repo)
	require.NoError(t, catalog.Refresh(ctx))

	metrics := simplenews.NewMetrics(prometheus.NewRegistry())
	counter := simplenews.NewCounter(repo, simplenews.WithCounterCache(catalog), simplenews.WithCounterMetrics(metrics))

	n, err := counter.IncrementLike(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	cached, ok := catalog.Item(item.ID)
	require.True(t, ok)
	assert.Equal(t, int64(6), cached.LikeCount, "visible without a refresh")

	views, err := counter.IncrementView(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), views)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Increments.WithLabelValues("likes", "read_modify_write", "ok")))
}

func TestCounter_MissingItem(t *testing.T) {
	counter := simplenews.NewCounter(memoryrepo.New())
	_, err := counter.IncrementLike(context.Background(), uuid.New())
	assert.ErrorIs(t, err, simplenews.ErrNotFound)
}

func TestCounter_ConcurrentReadModifyWrite(t *testing.T) {
	repo := memoryrepo.New()
	item := itemWithLikes(t, repo, 5)

	incrementTwice(simplenews.NewCounter(repo), item.ID)

	got, err := repo.GetContentItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Contains(t, []int64{6, 7}, got.LikeCount)
}

func TestCounter_LostUpdate(t *testing.T) {
	base := memoryrepo.New()
	item := itemWithLikes(t, base, 5)

	repo := &barrierRepo{Repository: base}
	repo.readers.Add(2)
	incrementTwice(simplenews.NewCounter(repo), item.ID)

	got, err := base.GetContentItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.LikeCount, "both increments read 5")
}

func TestCounter_AtomicIncrements(t *testing.T) {
	repo := memoryrepo.New()
	item := itemWithLikes(t, repo, 5)

	metrics := simplenews.NewMetrics(prometheus.NewRegistry())
	incrementTwice(simplenews.NewCounter(repo, simplenews.WithAtomicIncrements(), simplenews.WithCounterMetrics(metrics)), item.ID)

	got, err := repo.GetContentItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.LikeCount)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Increments.WithLabelValues("likes", "atomic", "ok")))
}

func TestCounter_AtomicFallsBackWithoutIncrementer(t *testing.T) {
	base := memoryrepo.New()
	item := itemWithLikes(t, base, 5)

	// the wrapper hides the memory repository's IncrementContentCounter
	repo := struct{ simplenews.Repository }{base}
	counter := simplenews.NewCounter(repo, simplenews.WithAtomicIncrements())

	n, err := counter.IncrementLike(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}
