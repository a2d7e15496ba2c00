package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/crawlgraph/internal/adapter/memory"
	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/repository"
)

// siteCollector serves canned snapshots keyed by URL.
type siteCollector struct {
	mu    sync.Mutex
	pages map[string]entity.Snapshot
	calls []string
}

func (c *siteCollector) Collect(_ context.Context, url string) (*entity.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, url)
	s, ok := c.pages[url]
	if !ok {
		return nil, fmt.Errorf("%w: 404 for %s", repository.ErrNavigationFailed, url)
	}
	return &s, nil
}

func linkSnapshot(url, title, tag string, elements int, links ...string) entity.Snapshot {
	s := pageSnapshot(url, title, 0, links...)
	for i := 0; i < elements; i++ {
		s.Elements = append(s.Elements, entity.Element{Tag: tag, Selector: fmt.Sprintf("#%s%d", tag, i)})
	}
	return s
}

func newExplorer(t *testing.T, site map[string]entity.Snapshot, cfg ExplorerConfig) (*Explorer, *fixture, *URLManager) {
	t.Helper()
	f := newFixture(t, nil)
	urls := NewURLManager(memory.NewVisited(), memory.NewQueue(), f.metrics, zap.NewNop())
	e := NewExplorer(cfg, urls, &siteCollector{pages: site}, f.mitigator, f.metrics, zap.NewNop())
	return e, f, urls
}

func drain(t *testing.T, e *Explorer) {
	t.Helper()
	for i := 0; i < 100; i++ {
		processed, err := e.ProcessNext(context.Background())
		require.NoError(t, err)
		if !processed {
			return
		}
	}
	t.Fatal("queue never drained")
}

func testSite() map[string]entity.Snapshot {
	return map[string]entity.Snapshot{
		"https://app.test/": linkSnapshot("https://app.test/", "Home", "section", 20,
			"/settings", "/reports", "https://other.test/out"),
		"https://app.test/settings": linkSnapshot("https://app.test/settings", "Settings", "form", 15, "/deep"),
		"https://app.test/reports":  linkSnapshot("https://app.test/reports", "Reports", "table", 15),
	}
}

func TestExplorerFollowsSameHostLinks(t *testing.T) {
	e, f, urls := newExplorer(t, testSite(), ExplorerConfig{MaxDepth: 1})
	ctx := context.Background()

	id, err := urls.Submit(ctx, "https://app.test/", false)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	drain(t, e)

	nodes, edges, _ := f.store.Counts()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 2, edges)

	collector := e.collector.(*siteCollector)
	assert.NotContains(t, collector.calls, "https://other.test/out", "cross-host links are not followed")
	assert.NotContains(t, collector.calls, "https://app.test/deep", "max depth respected")

	for _, edge := range f.store.Edges() {
		assert.Equal(t, ActionNavigate, edge.Action.Type)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.CrawlsTotal.WithLabelValues("success", "")))
}

func TestURLManagerDedupe(t *testing.T) {
	_, _, urls := newExplorer(t, testSite(), ExplorerConfig{})
	ctx := context.Background()

	first, err := urls.Submit(ctx, "https://app.test/", false)
	require.NoError(t, err)

	again, err := urls.Submit(ctx, "https://APP.test/#top", false)
	assert.ErrorIs(t, err, ErrURLRecentlyCrawled)
	assert.Equal(t, first, again, "same canonical url, same id")

	_, err = urls.Submit(ctx, "https://app.test/", true)
	assert.NoError(t, err, "force bypasses the visited check")
}

func TestExplorerEmptyQueue(t *testing.T) {
	e, _, _ := newExplorer(t, testSite(), ExplorerConfig{})
	processed, err := e.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestExplorerCollectFailure(t *testing.T) {
	e, f, urls := newExplorer(t, testSite(), ExplorerConfig{})
	ctx := context.Background()
	_, err := urls.Submit(ctx, "https://app.test/missing", false)
	require.NoError(t, err)

	processed, err := e.ProcessNext(ctx)
	assert.True(t, processed)
	assert.ErrorIs(t, err, repository.ErrNavigationFailed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CrawlsTotal.WithLabelValues("failure", "navigation")))
}

func TestExplorerTriggersMitigation(t *testing.T) {
	e, f, urls := newExplorer(t, testSite(), ExplorerConfig{MaxDepth: 1, MitigationInterval: 2})
	ctx := context.Background()
	_, err := urls.Submit(ctx, "https://app.test/", false)
	require.NoError(t, err)

	drain(t, e)

	recent, err := f.mitigator.RecentCycles(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1, "one cycle after the second new node")
	assert.Equal(t, StateIdle, f.mitigator.State())
}

func TestExplorerRunStopsWithContext(t *testing.T) {
	e, f, urls := newExplorer(t, testSite(), ExplorerConfig{Workers: 3, MaxDepth: 1})
	ctx, cancel := context.WithCancel(context.Background())
	_, err := urls.Submit(ctx, "https://app.test/", false)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		nodes, _, _ := f.store.Counts()
		return nodes == 3
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, err == nil || errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not stop")
	}
}
