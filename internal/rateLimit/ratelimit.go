package rateLimit

import (
	"context"
	"sync"
	"time"

	redisadapter "github.com/robertarktes/floorplan-seating/internal/adapters/redis"
)

// Limiter reports whether one more request under key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, rate int, period time.Duration) bool
}

// RateLimiter is a fixed-window counter in Redis shared by all API replicas.
type RateLimiter struct {
	redis *redisadapter.Cache
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// Allow fails open when Redis is unreachable.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	pipe := rl.redis.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, period)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return true
	}

	return incr.Val() <= int64(rate)
}

// MemoryLimiter is the single-process fallback used when no Redis is
// configured.
type MemoryLimiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	nextSweep time.Time
	now       func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*window), now: time.Now}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, rate int, period time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !now.Before(m.nextSweep) {
		m.sweep(now)
		m.nextSweep = now.Add(period)
	}

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(period)}
		m.windows[key] = w
	}
	w.count++
	return w.count <= rate
}

// sweep drops windows that have already closed so idle keys do not pile up.
func (m *MemoryLimiter) sweep(now time.Time) {
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
		}
	}
}
