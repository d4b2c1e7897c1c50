package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"launchpad-backend/internal/delivery/http/response"
	"launchpad-backend/pkg/logger"
	"launchpad-backend/pkg/security"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds configuration for one limiter
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	// KeyFunc extracts the bucket key; defaults to the client IP
	KeyFunc   func(*gin.Context) string
	KeyPrefix string
	// FailClosed rejects requests when redis errors instead of falling back
	FailClosed bool
}

// KEYS[1] = counter key, ARGV[1] = TTL in seconds. Returns {count, ttl}.
const rateLimitLuaScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('TTL', KEYS[1])
return {count, ttl}
`

type rateLimitEntry struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// memoryCounter is the per-process fallback used without redis
type memoryCounter struct {
	entries sync.Map
	once    sync.Once
}

func (m *memoryCounter) sweep(every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for range ticker.C {
			now := time.Now()
			m.entries.Range(func(key, value any) bool {
				entry := value.(*rateLimitEntry)
				entry.mu.Lock()
				if now.After(entry.resetAt) {
					m.entries.Delete(key)
				}
				entry.mu.Unlock()
				return true
			})
		}
	}()
}

func (m *memoryCounter) incr(key string, window time.Duration, now time.Time) (int, time.Time) {
	m.once.Do(func() { m.sweep(5 * time.Minute) })

	v, _ := m.entries.LoadOrStore(key, &rateLimitEntry{resetAt: now.Add(window)})
	entry := v.(*rateLimitEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if now.After(entry.resetAt) {
		entry.count = 0
		entry.resetAt = now.Add(window)
	}
	entry.count++
	return entry.count, entry.resetAt
}

// RateLimiter builds limiter middlewares sharing one redis client (nil means
// in-memory counting).
type RateLimiter struct {
	client *goredis.Client
	memory *memoryCounter
}

func NewRateLimiter(client *goredis.Client) *RateLimiter {
	return &RateLimiter{client: client, memory: &memoryCounter{}}
}

func clientIP(c *gin.Context) string { return c.ClientIP() }

// GlobalConfig is applied to every route
func GlobalConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{Limit: limit, Window: window, KeyPrefix: "rl:ip:", KeyFunc: clientIP}
}

// AuthConfig guards login, registration and the auto-login exchange
func AuthConfig() RateLimitConfig {
	return RateLimitConfig{Limit: 10, Window: time.Minute, KeyPrefix: "rl:auth:", FailClosed: true, KeyFunc: clientIP}
}

// PublicFormConfig guards unauthenticated forms (contact, checkout)
func PublicFormConfig() RateLimitConfig {
	return RateLimitConfig{Limit: 5, Window: time.Minute, KeyPrefix: "rl:form:", KeyFunc: clientIP}
}

// Middleware enforces cfg
func (rl *RateLimiter) Middleware(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}

	return func(c *gin.Context) {
		fullKey := cfg.KeyPrefix + cfg.KeyFunc(c)

		count, resetAt, err := rl.count(c.Request.Context(), fullKey, cfg)
		if err != nil {
			logger.Log.Warn("rate limit store unavailable", zap.Error(err), zap.String("key_prefix", cfg.KeyPrefix))
			if cfg.FailClosed {
				response.Abort(c, http.StatusServiceUnavailable, "Service temporarily unavailable. Please try again.")
				return
			}
			count, resetAt = rl.memory.incr(fullKey, cfg.Window, time.Now())
		}

		remaining := cfg.Limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", resetAt.Format(time.RFC3339))

		if count > cfg.Limit {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			security.DefaultLogger().LogRateLimitTriggered(c.Request.Context(),
				c.ClientIP(), c.Request.UserAgent(), c.GetString(RequestIDKey), c.FullPath())

			response.Abort(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) count(ctx context.Context, key string, cfg RateLimitConfig) (int, time.Time, error) {
	if rl.client == nil {
		count, resetAt := rl.memory.incr(key, cfg.Window, time.Now())
		return count, resetAt, nil
	}

	result, err := rl.client.Eval(ctx, rateLimitLuaScript, []string{key}, int(cfg.Window.Seconds())).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis rate limit eval failed: %w", err)
	}
	arr, ok := result.([]any)
	if !ok || len(arr) < 2 {
		return 0, time.Time{}, errors.New("unexpected redis result format")
	}
	count, _ := arr[0].(int64)
	ttl, _ := arr[1].(int64)
	return int(count), time.Now().Add(time.Duration(ttl) * time.Second), nil
}
