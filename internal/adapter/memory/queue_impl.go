package memory

import (
	"context"
	"sync"

	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/repository"
)

// Queue is a slice-backed FIFO frontier.
type Queue struct {
	mu    sync.Mutex
	items []entity.FrontierItem
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(_ context.Context, item entity.FrontierItem) error {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	return nil
}

func (q *Queue) Pop(_ context.Context) (entity.FrontierItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return entity.FrontierItem{}, repository.ErrQueueEmpty
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, nil
}

func (q *Queue) Size(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}
