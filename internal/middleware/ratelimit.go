package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/dto"
	"github.com/BarkinBalci/story-analytics-service/internal/metrics"
)

const ActionStorySubmission = "story-submission"

// Limiter decides whether one more request under key fits in the current window.
// Implementations fail open: when the backing store errors they allow the request
// and report the error.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Window() time.Duration
}

// LimitKey builds the counter key for a caller and action
func LimitKey(ip, action string) string {
	return fmt.Sprintf("ratelimit:%s:%s", action, ip)
}

// RedisLimiter counts requests in fixed windows shared by every instance through Valkey
type RedisLimiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

// NewRedisLimiter creates a limiter allowing limit requests per window
func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return true, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// the first hit of a window starts its expiry
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return true, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= l.limit, nil
}

func (l *RedisLimiter) Window() time.Duration {
	return l.window
}

type memoryWindow struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a per-process fixed window limiter used when Valkey is not configured
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter allowing limit requests per window
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*memoryWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++

	// drop expired windows so the map does not grow without bound
	if len(l.windows) > 10000 {
		for k, other := range l.windows {
			if now.After(other.resetAt) {
				delete(l.windows, k)
			}
		}
	}

	return w.count <= l.limit, nil
}

func (l *MemoryLimiter) Window() time.Duration {
	return l.window
}

// Allowed consults limiter for the caller of c and action, logging and allowing on limiter errors
func Allowed(c *gin.Context, limiter Limiter, action string, log *zap.Logger) bool {
	if limiter == nil {
		return true
	}

	ip := ClientIP(c.Request)
	allowed, err := limiter.Allow(c.Request.Context(), LimitKey(ip, action))
	if err != nil {
		log.Warn("Rate limit check failed, allowing request",
			zap.String("action", action),
			zap.Error(err))
	}
	if !allowed {
		metrics.RateLimited.WithLabelValues(action).Inc()
		c.Header("Retry-After", strconv.Itoa(int(limiter.Window().Seconds())))
		log.Warn("Rate limit exceeded", zap.String("action", action), zap.String("ip", ip))
	}
	return allowed
}

// RateLimit rejects callers that exceeded the limit for action with 429
func RateLimit(limiter Limiter, action string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Allowed(c, limiter, action, log) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:   "rate_limited",
				Message: "Too many submissions, try again later",
			})
			return
		}
		c.Next()
	}
}
