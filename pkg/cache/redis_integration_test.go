//go:build integration

package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/letterpress/pkg/cache"
	"github.com/dmitrymomot/letterpress/pkg/redis"
)

const testRedisURL = "redis://localhost:6379/0"

func newTestRedisClient(t *testing.T) goredis.UniversalClient {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = testRedisURL
	}

	client, err := redis.Connect(context.Background(), redis.Config{URL: url, RetryAttempts: 1})
	require.NoError(t, err, "failed to connect to Redis")
	t.Cleanup(func() { _ = client.Close() })
	return client
}

type stats struct {
	Sent     int     `json:"sent"`
	OpenRate float64 `json:"open_rate"`
}

func TestRedis(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestRedisClient(t)
	c := cache.NewRedis[stats](client, cache.WithPrefix("test-stats-"+time.Now().Format("150405.000000")))

	_, err := c.Get(ctx, "edition:1")
	require.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, c.Set(ctx, "edition:1", stats{Sent: 3, OpenRate: 66.67}, time.Minute))
	got, err := c.Get(ctx, "edition:1")
	require.NoError(t, err)
	assert.Equal(t, stats{Sent: 3, OpenRate: 66.67}, got)

	require.NoError(t, c.Set(ctx, "short", stats{}, 50*time.Millisecond))
	require.Eventually(t, func() bool {
		_, err := c.Get(ctx, "short")
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, c.Delete(ctx, "edition:1"))
	_, err = c.Get(ctx, "edition:1")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestRedis_UnmarshalError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestRedisClient(t)
	prefix := "test-bad-" + time.Now().Format("150405.000000")
	require.NoError(t, client.Set(ctx, prefix+":k", "not json", time.Minute).Err())

	c := cache.NewRedis[stats](client, cache.WithPrefix(prefix))
	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrUnmarshal)
}
