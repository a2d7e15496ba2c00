package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/crawlgraph/internal/entity"
	"github.com/user/crawlgraph/internal/repository"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestKeyValueStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	kv := NewKeyValueStore(client)

	_, err := kv.Get(ctx, "graph")
	assert.ErrorIs(t, err, repository.ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, "graph", []byte(`{"nodes":[]}`)))
	assert.True(t, mr.Exists(keyPrefix+"graph"))

	got, err := kv.Get(ctx, "graph")
	require.NoError(t, err)
	assert.Equal(t, `{"nodes":[]}`, string(got))

	require.NoError(t, kv.Delete(ctx, "graph"))
	_, err = kv.Get(ctx, "graph")
	assert.ErrorIs(t, err, repository.ErrKeyNotFound)
}

func TestKeyValueStoreConnectionError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()
	kv := NewKeyValueStore(client)

	_, err = kv.Get(context.Background(), "graph")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrKeyNotFound)
}

func TestQueueFIFO(t *testing.T) {
	ctx := context.Background()
	_, client := newClient(t)
	q := NewQueueRepo(client)

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, repository.ErrQueueEmpty)

	first := entity.FrontierItem{URL: "https://app.test/a", Depth: 0}
	second := entity.FrontierItem{
		URL:        "https://app.test/b",
		FromNodeID: "n_0123456789abcdef",
		Action:     entity.Action{Type: "click", Selector: "a.next"},
		Depth:      1,
	}
	require.NoError(t, q.Push(ctx, first))
	require.NoError(t, q.Push(ctx, second))

	size, err := q.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, size)

	got, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestQueueCorruptItem(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	q := NewQueueRepo(client)

	_, err := mr.Lpush(crawlQueueKey, "not-json")
	require.NoError(t, err)

	_, err = q.Pop(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrQueueEmpty)
}

func TestVisited(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	v := NewVisitedRepo(client)

	ok, err := v.IsVisited(ctx, "https://app.test/a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, v.MarkVisited(ctx, "https://APP.test/a/", time.Minute))
	ok, err = v.IsVisited(ctx, "https://app.test/a")
	require.NoError(t, err)
	assert.True(t, ok, "lookups use the canonical url")

	mr.FastForward(2 * time.Minute)
	ok, err = v.IsVisited(ctx, "https://app.test/a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, v.MarkVisited(ctx, "https://app.test/a", time.Minute))
	require.NoError(t, v.RemoveVisited(ctx, "https://app.test/a"))
	ok, _ = v.IsVisited(ctx, "https://app.test/a")
	assert.False(t, ok)
}
