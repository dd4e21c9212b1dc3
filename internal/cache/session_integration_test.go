//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/microblog-api/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with: REDIS_ADDR=localhost:6379 go test -tags integration ./internal/cache/
func TestRedisSessionCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	c := NewRedisSessionCache(client, time.Minute)
	view := models.UserView{ID: "u1", Username: "alice", Email: "a@x.com"}

	c.Set(ctx, "tok-1", view)
	c.Set(ctx, "tok-2", view)
	t.Cleanup(func() { c.Delete(ctx, "tok-1", "tok-2") })

	got, ok := c.Get(ctx, "tok-1")
	require.True(t, ok)
	assert.Equal(t, "alice", got.Username)

	ttl, err := client.TTL(ctx, SessionKey("tok-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	c.Delete(ctx, "tok-1", "tok-2")
	_, ok = c.Get(ctx, "tok-1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "tok-2")
	assert.False(t, ok)
}
