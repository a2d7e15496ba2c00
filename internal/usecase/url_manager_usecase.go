package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/repository"
	"github.com/user/crawlgraph/pkg/metrics"
	"github.com/user/crawlgraph/pkg/utils"
)

var ErrURLRecentlyCrawled = errors.New("URL has been crawled recently and force is false")

const deduplicationExpiry = 48 * time.Hour

// URLManager owns the crawl frontier: deduplication and queueing.
type URLManager struct {
	visitedRepo repository.VisitedRepository
	queueRepo   repository.QueueRepository
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewURLManager creates a new URLManager.
func NewURLManager(
	visitedRepo repository.VisitedRepository,
	queueRepo repository.QueueRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *URLManager {
	return &URLManager{
		visitedRepo: visitedRepo,
		queueRepo:   queueRepo,
		metrics:     m,
		logger:      logger,
	}
}

// Submit queues an entry URL. The returned id is stable per canonical URL.
func (uc *URLManager) Submit(ctx context.Context, url string, force bool) (string, error) {
	url = utils.CanonicalURL(url)
	crawlID := utils.HashURL(url)
	if err := uc.Enqueue(ctx, entity.FrontierItem{URL: url}, force); err != nil {
		if errors.Is(err, ErrURLRecentlyCrawled) {
			return crawlID, err
		}
		return "", err
	}
	return crawlID, nil
}

// Enqueue pushes an item unless its URL was visited within the dedupe
// window. force clears the visited mark first.
func (uc *URLManager) Enqueue(ctx context.Context, item entity.FrontierItem, force bool) error {
	if force {
		if err := uc.visitedRepo.RemoveVisited(ctx, item.URL); err != nil {
			// Not fatal: the item is still queued.
			uc.logger.Warn("failed to remove visited key for forced crawl", zap.String("url", item.URL), zap.Error(err))
		}
	} else {
		visited, err := uc.visitedRepo.IsVisited(ctx, item.URL)
		if err != nil {
			return fmt.Errorf("check visited %s: %w", item.URL, err)
		}
		if visited {
			return ErrURLRecentlyCrawled
		}
	}

	if err := uc.queueRepo.Push(ctx, item); err != nil {
		return fmt.Errorf("push %s: %w", item.URL, err)
	}

	if err := uc.visitedRepo.MarkVisited(ctx, item.URL, deduplicationExpiry); err != nil {
		// The URL is queued but may be queued again before it is processed.
		uc.logger.Error("failed to mark URL as visited after queueing", zap.String("url", item.URL), zap.Error(err))
	}
	uc.refreshQueueGauge(ctx)
	return nil
}

// Next pops the next frontier item. An empty queue yields
// repository.ErrQueueEmpty.
func (uc *URLManager) Next(ctx context.Context) (entity.FrontierItem, error) {
	item, err := uc.queueRepo.Pop(ctx)
	if err == nil {
		uc.refreshQueueGauge(ctx)
	}
	return item, err
}

func (uc *URLManager) refreshQueueGauge(ctx context.Context) {
	if size, err := uc.queueRepo.Size(ctx); err == nil {
		uc.metrics.URLsInQueue.Set(float64(size))
	}
}
