// Package ratelimit throttles requests per client address and route with a fixed window counter
// kept in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit"

// Limiter allows at most times requests per window for every key.
type Limiter struct {
	client *redis.Client
	times  int64
	window time.Duration
}

// New creates a limiter backed by the given Redis client.
func New(client *redis.Client, times int, window time.Duration) *Limiter {
	return &Limiter{client: client, times: int64(times), window: window}
}

// Allow counts one request for key. If the limit is exceeded it returns false and the time until
// the window resets.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	key = keyPrefix + ":" + key
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("could not increment %s: %w", key, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("could not set expiry of %s: %w", key, err)
		}
	}
	if count <= l.times {
		return true, 0, nil
	}
	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("could not read expiry of %s: %w", key, err)
	}
	if ttl < 0 {
		// The key lost its expiry, e.g. because EXPIRE failed after INCR. Restart the window.
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("could not set expiry of %s: %w", key, err)
		}
		ttl = l.window
	}
	return false, ttl, nil
}

// Middleware rejects requests above the limit with 429 and a Retry-After header. The key is the
// client IP plus the matched route. If Redis is unavailable the request is let through.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + ":" + c.Request.Method + ":" + c.FullPath()
		allowed, retryAfter, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, letting request through", "error", err)
			c.Next()
			return
		}
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "too many requests"})
			return
		}
		c.Next()
	}
}
