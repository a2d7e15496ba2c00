package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/repository"
)

const crawlQueueKey = "crawlgraph:frontier"

// QueueRepoImpl implements repository.QueueRepository on a Redis list.
type QueueRepoImpl struct {
	client *redis.Client
	key    string
}

// NewQueueRepo creates a new instance of QueueRepoImpl.
func NewQueueRepo(client *redis.Client) *QueueRepoImpl {
	return &QueueRepoImpl{client: client, key: crawlQueueKey}
}

// Push adds an item to the left side of the list.
func (r *QueueRepoImpl) Push(ctx context.Context, item entity.FrontierItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode frontier item: %w", err)
	}
	return r.client.LPush(ctx, r.key, data).Err()
}

// Pop removes an item from the right side of the list. An empty list yields
// repository.ErrQueueEmpty.
func (r *QueueRepoImpl) Pop(ctx context.Context) (entity.FrontierItem, error) {
	var item entity.FrontierItem
	raw, err := r.client.RPop(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return item, repository.ErrQueueEmpty
	}
	if err != nil {
		return item, err
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, fmt.Errorf("decode frontier item: %w", err)
	}
	return item, nil
}

// Size returns the current number of items in the queue.
func (r *QueueRepoImpl) Size(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.key).Result()
}
