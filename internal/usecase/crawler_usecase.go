package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/repository"
	"github.com/user/crawlgraph/pkg/metrics"
	"github.com/user/crawlgraph/pkg/utils"
)

// ActionNavigate labels transitions discovered by following a link.
const ActionNavigate = "navigate"

const idlePoll = 500 * time.Millisecond

// ExplorerConfig tunes the crawl driver.
type ExplorerConfig struct {
	Workers  int
	MaxDepth int
	// MitigationInterval triggers a cycle every N newly created nodes.
	// Zero disables automatic cycles.
	MitigationInterval int
}

// Explorer pulls frontier items, collects snapshots and feeds them to the
// mitigator.
type Explorer struct {
	cfg       ExplorerConfig
	urls      *URLManager
	collector repository.SnapshotCollector
	mitigator *Mitigator
	metrics   *metrics.Metrics
	logger    *zap.Logger

	created atomic.Int64
}

// NewExplorer creates a new crawl driver.
func NewExplorer(
	cfg ExplorerConfig,
	urls *URLManager,
	collector repository.SnapshotCollector,
	mitigator *Mitigator,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Explorer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Explorer{
		cfg:       cfg,
		urls:      urls,
		collector: collector,
		mitigator: mitigator,
		metrics:   m,
		logger:    logger,
	}
}

// ProcessNext handles a single frontier item. It reports false when the
// queue was empty.
func (e *Explorer) ProcessNext(ctx context.Context) (bool, error) {
	item, err := e.urls.Next(ctx)
	if errors.Is(err, repository.ErrQueueEmpty) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to pop frontier item: %w", err)
	}

	if !e.mitigator.ShouldContinueCrawling() {
		e.logger.Info("coverage saturated, dropping frontier item", zap.String("url", item.URL))
		e.metrics.CrawlsTotal.WithLabelValues("skipped", "saturated").Inc()
		return true, nil
	}

	e.logger.Info("processing frontier item", zap.String("url", item.URL), zap.Int("depth", item.Depth))
	start := time.Now()
	snap, err := e.collector.Collect(ctx, item.URL)
	e.metrics.CrawlDuration.WithLabelValues(domainOf(item.URL)).Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.CrawlsTotal.WithLabelValues("failure", errorType(err)).Inc()
		return true, fmt.Errorf("collect %s: %w", item.URL, err)
	}
	e.metrics.CrawlsTotal.WithLabelValues("success", "").Inc()

	res := e.mitigator.IngestSnapshot(*snap)
	if res.Skipped {
		return true, nil
	}

	if item.FromNodeID != "" {
		action := item.Action
		if action.Type == "" {
			action.Type = ActionNavigate
		}
		_, err := e.mitigator.RecordTransition(TransitionInput{
			FromNodeID: item.FromNodeID,
			ToNodeID:   res.NodeID,
			Action:     action,
			Timestamp:  snap.Timestamp,
		})
		if err != nil {
			// The parent may have been pruned since the link was queued.
			e.logger.Debug("transition not recorded", zap.String("from", item.FromNodeID), zap.Error(err))
		}
	}

	if item.Depth < e.cfg.MaxDepth {
		e.enqueueLinks(ctx, item, res)
	}

	if res.Created && e.cfg.MitigationInterval > 0 {
		if n := e.created.Add(1); n%int64(e.cfg.MitigationInterval) == 0 {
			e.triggerMitigation(ctx)
		}
	}
	return true, nil
}

func (e *Explorer) enqueueLinks(ctx context.Context, item entity.FrontierItem, res IngestResult) {
	queued := 0
	for _, link := range res.Links {
		if !utils.SameHost(item.URL, link) {
			continue
		}
		next := entity.FrontierItem{
			URL:        utils.CanonicalURL(link),
			FromNodeID: res.NodeID,
			Action:     entity.Action{Type: ActionNavigate},
			Depth:      item.Depth + 1,
		}
		err := e.urls.Enqueue(ctx, next, false)
		switch {
		case err == nil:
			queued++
		case errors.Is(err, ErrURLRecentlyCrawled):
		default:
			e.logger.Warn("failed to enqueue link", zap.String("url", link), zap.Error(err))
		}
	}
	if queued > 0 {
		e.logger.Debug("links queued", zap.String("from", item.URL), zap.Int("count", queued))
	}
}

func (e *Explorer) triggerMitigation(ctx context.Context) {
	_, err := e.mitigator.StartMitigation(ctx)
	if errors.Is(err, ErrAlreadyMitigating) {
		return
	}
	if err != nil {
		e.logger.Error("automatic mitigation cycle failed", zap.Error(err))
	}
}

// Run starts the worker pool and blocks until ctx is done.
func (e *Explorer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < e.cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			e.worker(ctx, worker)
			return nil
		})
	}
	return g.Wait()
}

func (e *Explorer) worker(ctx context.Context, id int) {
	log := e.logger.With(zap.Int("worker", id))
	for ctx.Err() == nil {
		processed, err := e.ProcessNext(ctx)
		if err != nil {
			log.Warn("crawl step failed", zap.Error(err))
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
		case <-time.After(idlePoll):
		}
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, repository.ErrCrawlTimeout):
		return "timeout"
	case errors.Is(err, repository.ErrNavigationFailed):
		return "navigation"
	case errors.Is(err, repository.ErrExtractionFailed):
		return "extraction"
	default:
		return "unknown"
	}
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
