package simplenews_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tendant/simple-news/pkg/simplenews"
	memoryrepo "github.com/tendant/simple-news/pkg/simplenews/repo/memory"
)

// gatedRepo holds ListContentItems responses until their gate is closed.
// The listing itself is taken when the call arrives.
type gatedRepo struct {
	simplenews.Repository
	mu      sync.Mutex
	gates   []chan struct{}
	entered chan struct{}
}

func (g *gatedRepo) ListContentItems(ctx context.Context) ([]*simplenews.ContentItem, error) {
	items, err := g.Repository.ListContentItems(ctx)

	g.mu.Lock()
	var gate chan struct{}
	if len(g.gates) > 0 {
		gate, g.gates = g.gates[0], g.gates[1:]
	}
	g.mu.Unlock()

	if gate != nil {
		g.entered <- struct{}{}
		<-gate
	}
	return items, err
}

type brokenSlidesRepo struct {
	simplenews.Repository
}

func (brokenSlidesRepo) ListSliderEntries(ctx context.Context) ([]*simplenews.SliderEntry, error) {
	return nil, &simplenews.TransportError{Backend: "test", Op: "list", Err: errors.New("down")}
}

func insertArticle(t *testing.T, repo simplenews.Repository, title string, category simplenews.Category) *simplenews.ContentItem {
	t.Helper()
	item, err := repo.InsertContentItem(context.Background(), simplenews.ContentFields{
		Title:       title,
		Description: title + " description",
		Category:    category,
	})
	require.NoError(t, err)
	return item
}

func TestCatalog_Refresh(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()
	older := insertArticle(t, repo, "Budget 2024", simplenews.CategoryPolitics)
	newer := insertArticle(t, repo, "Market Rally", simplenews.CategoryBusiness)
	_, err := repo.InsertSliderEntry(ctx, simplenews.SliderFields{MediaRef: mediaBase + "/slider_1.png"})
	require.NoError(t, err)

	metrics := simplenews.NewMetrics(prometheus.NewRegistry())
	c := simplenews.NewCatalog(repo, simplenews.WithCatalogMetrics(metrics))
	assert.Empty(t, c.Items())

	require.NoError(t, c.Refresh(ctx))

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, newer.ID, items[0].ID)
	assert.Equal(t, older.ID, items[1].ID)
	assert.Len(t, c.Slides(), 1)
	assert.False(t, c.Snapshot().RefreshedAt.IsZero())

	got, ok := c.Item(older.ID)
	require.True(t, ok)
	assert.Equal(t, "Budget 2024", got.Title)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CachedItems.WithLabelValues(simplenews.KindContentItem)))
}

func TestCatalog_FailedRefreshKeepsCache(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()
	insertArticle(t, repo, "Budget 2024", simplenews.CategoryPolitics)

	c := simplenews.NewCatalog(repo)
	require.NoError(t, c.Refresh(ctx))

	broken := simplenews.NewCatalog(brokenSlidesRepo{Repository: repo})
	err := broken.Refresh(ctx)
	assert.ErrorIs(t, err, simplenews.ErrTransport)
	assert.Empty(t, broken.Items())

	insertArticle(t, repo, "Market Rally", simplenews.CategoryBusiness)
	assert.Len(t, c.Items(), 1, "cache changes only on refresh")
}

func TestCatalog_LastResponseWins(t *testing.T) {
	ctx := context.Background()
	base := memoryrepo.New()
	insertArticle(t, base, "Budget 2024", simplenews.CategoryPolitics)

	gate := make(chan struct{})
	repo := &gatedRepo{Repository: base, gates: []chan struct{}{gate}, entered: make(chan struct{}, 1)}
	c := simplenews.NewCatalog(repo)

	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	<-repo.entered

	insertArticle(t, base, "Market Rally", simplenews.CategoryBusiness)
	require.NoError(t, c.Refresh(ctx))
	assert.Len(t, c.Items(), 2)

	close(gate)
	require.NoError(t, <-done)
	assert.Len(t, c.Items(), 1, "the older response completed last and replaced the cache")
}

func TestCatalog_TriggerRefresh(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := memoryrepo.New()
	insertArticle(t, repo, "Budget 2024", simplenews.CategoryPolitics)
	c := simplenews.NewCatalog(repo)

	c.TriggerRefresh()
	c.TriggerRefresh()
	c.Wait()

	assert.Len(t, c.Items(), 1)
}

// countingRepo counts ListContentItems calls.
type countingRepo struct {
	simplenews.Repository
	mu    sync.Mutex
	lists int
}

func (r *countingRepo) ListContentItems(ctx context.Context) ([]*simplenews.ContentItem, error) {
	r.mu.Lock()
	r.lists++
	r.mu.Unlock()
	return r.Repository.ListContentItems(ctx)
}

func (r *countingRepo) Lists() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists
}

func TestCatalog_TriggerRefreshAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := &countingRepo{Repository: memoryrepo.New()}
	c := simplenews.NewCatalog(repo)
	c.Stop()

	c.TriggerRefresh()
	c.Wait()

	assert.Zero(t, repo.Lists())
	assert.Empty(t, c.Items())
}

func TestCatalog_TriggerRefreshRacingStop(t *testing.T) {
	repo := &countingRepo{Repository: memoryrepo.New()}
	insertArticle(t, repo, "Budget 2024", simplenews.CategoryPolitics)
	c := simplenews.NewCatalog(repo)

	var callers sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		callers.Add(1)
		go func() {
			defer callers.Done()
			<-start
			for j := 0; j < 20; j++ {
				c.TriggerRefresh()
			}
		}()
	}

	close(start)
	c.Stop()
	callers.Wait()

	// Nothing triggered after Stop may still be running.
	settled := repo.Lists()
	c.Wait()
	assert.Equal(t, settled, repo.Lists())
	goleak.VerifyNone(t)
}

func TestCatalog_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := simplenews.NewCatalog(memoryrepo.New())
	ctx := context.Background()

	assert.Error(t, c.Start(ctx, "not a schedule"))

	require.NoError(t, c.Start(ctx, "@every 1h"))
	assert.Error(t, c.Start(ctx, "@every 1h"), "already scheduled")
	c.Stop()

	require.NoError(t, c.Start(ctx, "@every 1h"), "can be restarted after stop")
	c.TriggerRefresh()
	c.Stop()
}

func TestCatalog_ApplyItem(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()
	item := insertArticle(t, repo, "Budget 2024", simplenews.CategoryPolitics)

	c := simplenews.NewCatalog(repo)
	require.NoError(t, c.Refresh(ctx))
	before := c.Snapshot()

	changed := item.Clone()
	changed.LikeCount = 9
	assert.True(t, c.ApplyItem(changed))

	got, ok := c.Item(item.ID)
	require.True(t, ok)
	assert.Equal(t, int64(9), got.LikeCount)
	assert.Zero(t, before.Items[0].LikeCount, "earlier snapshots are not modified")

	unknown := insertArticle(t, repo, "Market Rally", simplenews.CategoryBusiness)
	assert.False(t, c.ApplyItem(unknown))
	assert.Len(t, c.Items(), 1)
}

func TestCatalog_ReadersReturnCopies(t *testing.T) {
	repo := memoryrepo.New()
	insertArticle(t, repo, "Budget 2024", simplenews.CategoryPolitics)
	c := simplenews.NewCatalog(repo)
	require.NoError(t, c.Refresh(context.Background()))

	c.Items()[0].Title = "mutated"
	assert.Equal(t, "Budget 2024", c.Items()[0].Title)
}
