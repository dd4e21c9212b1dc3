// Package cache provides the session cache consulted by the authorization
// gate before it goes to the store for a bearer token.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// SessionCache maps an active bearer token to the public view of the user
// holding it. Entries must be evicted whenever the token is revoked or the
// user's profile changes.
type SessionCache interface {
	Get(ctx context.Context, token string) (*models.UserView, bool)
	Set(ctx context.Context, token string, view models.UserView)
	Delete(ctx context.Context, tokens ...string)
}

// NoopSessionCache is used when redis is disabled.
type NoopSessionCache struct{}

func (NoopSessionCache) Get(context.Context, string) (*models.UserView, bool) { return nil, false }
func (NoopSessionCache) Set(context.Context, string, models.UserView)         {}
func (NoopSessionCache) Delete(context.Context, ...string)                    {}

// RedisSessionCache stores sessions in redis under a hash of the token so
// raw credentials never reach the cache.
type RedisSessionCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisSessionCache creates a new RedisSessionCache
func NewRedisSessionCache(client *redis.Client, ttl time.Duration) *RedisSessionCache {
	return &RedisSessionCache{redis: client, ttl: ttl}
}

func (c *RedisSessionCache) Get(ctx context.Context, token string) (*models.UserView, bool) {
	data, err := c.redis.Get(ctx, SessionKey(token)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log().WithError(err).Warn("session read failed")
		}
		return nil, false
	}

	var view models.UserView
	if err := json.Unmarshal(data, &view); err != nil {
		log().WithError(err).Warn("session entry corrupt")
		return nil, false
	}
	return &view, true
}

func (c *RedisSessionCache) Set(ctx context.Context, token string, view models.UserView) {
	data, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, SessionKey(token), data, c.ttl).Err(); err != nil {
		log().WithError(err).Warn("session write failed")
	}
}

func (c *RedisSessionCache) Delete(ctx context.Context, tokens ...string) {
	if len(tokens) == 0 {
		return
	}
	keys := make([]string, len(tokens))
	for i, token := range tokens {
		keys[i] = SessionKey(token)
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		log().WithError(err).Warn("session delete failed")
	}
}

// SessionKey is the redis key for a token.
func SessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}

func log() *logrus.Entry {
	return logger.WithFields(logrus.Fields{"component": "session_cache"})
}
