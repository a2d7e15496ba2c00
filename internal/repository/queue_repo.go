package repository

import (
	"context"
	"errors"

	"github.com/user/crawlgraph/internal/entity"
)

// ErrQueueEmpty is returned by Pop when nothing is waiting.
var ErrQueueEmpty = errors.New("queue is empty")

// QueueRepository defines the interface for a FIFO crawl frontier.
type QueueRepository interface {
	// Push adds an item to the end of the queue.
	Push(ctx context.Context, item entity.FrontierItem) error
	// Pop removes and returns the item at the front of the queue.
	Pop(ctx context.Context) (entity.FrontierItem, error)
	// Size returns the current number of items in the queue.
	Size(ctx context.Context) (int64, error)
}
