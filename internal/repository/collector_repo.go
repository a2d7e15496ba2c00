package repository

import (
	"context"
	"errors"

	"github.com/user/crawlgraph/internal/entity"
)

var (
	ErrCrawlTimeout     = errors.New("crawl timed out")
	ErrNavigationFailed = errors.New("navigation failed")
	ErrExtractionFailed = errors.New("element extraction failed")
)

// SnapshotCollector captures the current state of a page. Element collection,
// screenshots and gesture simulation live behind this boundary.
type SnapshotCollector interface {
	// Collect navigates to url and returns the captured snapshot.
	Collect(ctx context.Context, url string) (*entity.Snapshot, error)
}
