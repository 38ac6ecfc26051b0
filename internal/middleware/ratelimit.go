package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/videowizard/render-api/pkg/response"
)

// RateLimiter throttles job creation per client IP. With a Redis client it
// uses a shared INCR/EXPIRE counter and fails open on Redis errors; without
// one it falls back to in-process token buckets.
type RateLimiter struct {
	redis *redis.Client

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{
		redis: redisClient,
		local: make(map[string]*rate.Limiter),
	}
}

// Limit creates a rate limiting middleware.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if maxRequests <= 0 {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, c.IP())

		if rl.redis == nil {
			if !rl.localLimiter(key, maxRequests, window).Allow() {
				return response.RateLimited(c)
			}
			return c.Next()
		}

		ctx := context.Background()
		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// Redis down: allow the request rather than block renders.
			return c.Next()
		}
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// RenderLimit returns a rate limiter for render creation.
func (rl *RateLimiter) RenderLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("render", maxPerHour, time.Hour)
}

func (rl *RateLimiter) localLimiter(key string, maxRequests int, window time.Duration) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	lim, ok := rl.local[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(window/time.Duration(maxRequests)), maxRequests)
		rl.local[key] = lim
	}
	return lim
}
