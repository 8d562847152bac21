package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/smaxiso/portfolio-rag/pkg/errors"
	"github.com/smaxiso/portfolio-rag/pkg/infra/middleware/requestutil"
	"github.com/smaxiso/portfolio-rag/pkg/response"
)

// RateLimiter defines the interface for rate limiting implementations.
// Rejected requests are not recorded, so a throttled client regains access
// as soon as its oldest accepted request leaves the window.
type RateLimiter interface {
	// Allow checks if a request with the given key is allowed.
	// Returns true if allowed, false if rate limit exceeded.
	Allow(ctx context.Context, key string) (bool, error)

	// Reset resets the rate limit counter for the given key.
	Reset(ctx context.Context, key string) error
}

// RateLimitConfig defines the configuration for rate limiting middleware.
type RateLimitConfig struct {
	// Limiter is the rate limiter implementation to use.
	Limiter RateLimiter

	// TrustedProxies is a list of trusted proxy IP addresses or CIDR ranges.
	// When empty, proxy headers (X-Forwarded-For, X-Real-IP) are not trusted.
	TrustedProxies []string

	// OnLimitReached is called when rate limit is exceeded.
	OnLimitReached func(c *gin.Context)
}

// RateLimit returns a gin middleware throttling requests per client ip.
// Limiter errors let the request through.
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := requestutil.ClientIP(c.Request, config.TrustedProxies)

		allowed, err := config.Limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Errorw("rate limiter error", "error", err.Error(), "key", key)
			c.Next()
			return
		}
		if !allowed {
			if config.OnLimitReached != nil {
				config.OnLimitReached(c)
			}
			logger.Infow("rate limit exceeded", "key", key, "path", c.Request.URL.Path)
			response.Fail(c, errors.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

// ============================================================================
// Memory Rate Limiter Implementation
// ============================================================================

// MemoryRateLimiter implements a sliding window log in process memory.
type MemoryRateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time
	store  *sync.Map

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// rateLimitEntry stores rate limit data for a single key.
type rateLimitEntry struct {
	mu        sync.Mutex
	requests  []time.Time
	lastCheck time.Time
}

// NewMemoryRateLimiter creates a new memory-based rate limiter.
// Call Stop to end the cleanup goroutine.
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	m := &MemoryRateLimiter{
		limit:       limit,
		window:      window,
		now:         time.Now,
		store:       &sync.Map{},
		stopCleanup: make(chan struct{}),
	}
	go m.cleanupExpiredEntries()
	return m
}

// Allow checks if a request with the given key is allowed.
func (m *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := m.now()

	value, _ := m.store.LoadOrStore(key, &rateLimitEntry{})
	entry := value.(*rateLimitEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.lastCheck = now
	entry.requests = pruneExpired(entry.requests, now.Add(-m.window))

	if len(entry.requests) >= m.limit {
		return false, nil
	}
	entry.requests = append(entry.requests, now)
	return true, nil
}

// Reset resets the rate limit counter for the given key.
func (m *MemoryRateLimiter) Reset(_ context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

// Stop stops the cleanup goroutine.
func (m *MemoryRateLimiter) Stop() {
	m.cleanupOnce.Do(func() {
		close(m.stopCleanup)
	})
}

func (m *MemoryRateLimiter) cleanupExpiredEntries() {
	ticker := time.NewTicker(m.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup()
		case <-m.stopCleanup:
			return
		}
	}
}

// performCleanup drops keys idle for two windows.
func (m *MemoryRateLimiter) performCleanup() {
	threshold := m.now().Add(-2 * m.window)
	m.store.Range(func(key, value any) bool {
		entry := value.(*rateLimitEntry)
		entry.mu.Lock()
		idle := entry.lastCheck.Before(threshold)
		entry.mu.Unlock()
		if idle {
			m.store.Delete(key)
		}
		return true
	})
}

// pruneExpired drops timestamps at or before cutoff. Timestamps are appended
// in order, so the survivors are a suffix.
func pruneExpired(requests []time.Time, cutoff time.Time) []time.Time {
	for i, t := range requests {
		if t.After(cutoff) {
			return requests[i:]
		}
	}
	return requests[:0]
}

// ============================================================================
// Redis Rate Limiter Implementation
// ============================================================================

// slidingWindowScript prunes, counts and records in one round trip so that
// replicas sharing the key never over-admit.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
if redis.call('ZCARD', key) >= tonumber(ARGV[3]) then
  return 0
end
redis.call('ZADD', key, ARGV[1], ARGV[4])
redis.call('PEXPIRE', key, ARGV[5])
return 1
`)

// RedisRateLimiter implements the sliding window log with a redis sorted set,
// shared between replicas.
type RedisRateLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client redis.UniversalClient, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
		now:    time.Now,
	}
}

// Allow checks if a request with the given key is allowed using Redis.
// Scores are unix microseconds, passed as strings so the script does no
// arithmetic on them.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now()
	res, err := slidingWindowScript.Run(ctx, r.client,
		[]string{r.prefix + key},
		strconv.FormatInt(now.UnixMicro(), 10),
		strconv.FormatInt(now.Add(-r.window).UnixMicro(), 10),
		r.limit,
		ulid.Make().String(),
		(2 * r.window).Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return res == 1, nil
}

// Reset resets the rate limit counter for the given key in Redis.
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
