// Package chromedp_crawler collects page snapshots from a headless Chrome.
package chromedp_crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/repository"
	"github.com/user/crawlgraph/pkg/utils"
)

// Options configures the browser collector.
type Options struct {
	PageLoadTimeout time.Duration
	// ScreenshotDir receives a full-page PNG per collected page. Empty
	// disables screenshots.
	ScreenshotDir string
	Concurrency   int
}

// ChromedpCollector implements repository.SnapshotCollector. Each proxy gets
// its own pooled allocator; every Collect runs in a fresh tab.
type ChromedpCollector struct {
	opts    Options
	rotator *Rotator
	logger  *zap.Logger

	mu         sync.Mutex
	allocators map[string]*sync.Pool
	cancels    []context.CancelFunc
}

// NewChromedpCollector creates a collector and pre-warms one allocator per
// worker.
func NewChromedpCollector(opts Options, rotator *Rotator, logger *zap.Logger) (*ChromedpCollector, error) {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 30 * time.Second
	}
	if opts.ScreenshotDir != "" {
		if err := os.MkdirAll(opts.ScreenshotDir, 0o755); err != nil {
			return nil, fmt.Errorf("create screenshot dir: %w", err)
		}
	}
	if rotator == nil {
		rotator = NewRotator(nil, nil)
	}
	c := &ChromedpCollector{
		opts:       opts,
		rotator:    rotator,
		logger:     logger,
		allocators: make(map[string]*sync.Pool),
	}

	pool := c.pool("")
	for i := 0; i < opts.Concurrency; i++ {
		pool.Put(pool.Get())
	}
	return c, nil
}

func (c *ChromedpCollector) pool(proxy string) *sync.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.allocators[proxy]; ok {
		return p
	}
	p := &sync.Pool{
		New: func() interface{} {
			opts := append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("no-sandbox", true),
				chromedp.Flag("disable-dev-shm-usage", true),
			)
			if proxy != "" {
				opts = append(opts, chromedp.ProxyServer(proxy))
			}
			allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
			c.mu.Lock()
			c.cancels = append(c.cancels, cancel)
			c.mu.Unlock()
			return allocCtx
		},
	}
	c.allocators[proxy] = p
	return p
}

// Collect navigates to url and captures its rendered DOM.
func (c *ChromedpCollector) Collect(ctx context.Context, url string) (*entity.Snapshot, error) {
	pool := c.pool(c.rotator.Proxy())
	allocCtx := pool.Get().(context.Context)
	defer pool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(c.logger.Sugar().Debugf))
	defer cancel()
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, c.opts.PageLoadTimeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	start := time.Now()
	var location string
	err := chromedp.Run(taskCtx,
		emulation.SetUserAgentOverride(c.rotator.UserAgent()),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
	)
	loadTime := time.Since(start)
	if err != nil {
		return nil, classify(taskCtx, err, repository.ErrNavigationFailed)
	}

	var html string
	if err := chromedp.Run(taskCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, classify(taskCtx, err, repository.ErrExtractionFailed)
	}

	if location == "" {
		location = url
	}
	snap, err := ExtractSnapshot(location, html)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}
	snap.Timestamp = time.Now()
	snap.PerformanceScore = performanceScore(loadTime, c.opts.PageLoadTimeout)

	if c.opts.ScreenshotDir != "" {
		ref, err := c.screenshot(taskCtx, location)
		if err != nil {
			c.logger.Warn("screenshot failed", zap.String("url", location), zap.Error(err))
		} else {
			snap.ScreenshotRef = ref
		}
	}

	c.logger.Debug("snapshot collected",
		zap.String("url", location),
		zap.Int("elements", len(snap.Elements)),
		zap.Duration("load_time", loadTime))
	return snap, nil
}

func (c *ChromedpCollector) screenshot(ctx context.Context, pageURL string) (string, error) {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return "", err
	}
	path := filepath.Join(c.opts.ScreenshotDir, utils.HashURL(pageURL)[:16]+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Close shuts down every browser the collector started.
func (c *ChromedpCollector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
}

func classify(ctx context.Context, err, kind error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", repository.ErrCrawlTimeout, err)
	}
	return fmt.Errorf("%w: %v", kind, err)
}

// performanceScore maps load time onto [0, 1], 1 being instant.
func performanceScore(load, budget time.Duration) float64 {
	if budget <= 0 || load >= budget {
		return 0
	}
	return 1 - float64(load)/float64(budget)
}
