package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether key may make another request. When it may not,
// retryAfter says how long until it can.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimit rejects callers over their limit with 429. Callers are keyed by
// user id when authenticated, by client IP otherwise. A limiter error lets
// the request through.
func RateLimit(limiter Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := UserID(c)
			if key == "" {
				key = "ip:" + c.RealIP()
			}
			allowed, retryAfter, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				log.Printf("Rate limiter unavailable, allowing request: %v", err)
				return next(c)
			}
			if !allowed {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded")
			}
			return next(c)
		}
	}
}

// RedisLimiter is a fixed-window counter shared by every server instance.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: max(limit, 1), window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	windowEnd := windowStart.Add(l.window)
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart.Unix())

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireAt(ctx, redisKey, windowEnd)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}
	if incr.Val() > int64(l.limit) {
		return false, windowEnd.Sub(now), nil
	}
	return true, 0, nil
}

// MemoryLimiter is a per-process sliding-window limiter, used when no Redis
// is configured.
type MemoryLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryLimiter allows limit requests per key within window. A limit
// below one is raised to one.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		requests: make(map[string][]time.Time),
		limit:    max(limit, 1),
		window:   window,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) > l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	valid := prune(l.requests[key], cutoff)
	if len(valid) >= l.limit {
		l.requests[key] = valid
		if len(valid) == 0 {
			return false, l.window, nil
		}
		return false, valid[0].Sub(cutoff), nil
	}
	l.requests[key] = append(valid, now)
	return true, 0, nil
}

func (l *MemoryLimiter) sweep(cutoff time.Time) {
	for key, times := range l.requests {
		if valid := prune(times, cutoff); len(valid) > 0 {
			l.requests[key] = valid
		} else {
			delete(l.requests, key)
		}
	}
}

// prune drops timestamps at or before cutoff. times is in ascending order.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
