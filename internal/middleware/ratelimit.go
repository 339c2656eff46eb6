package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avamapper/internal/observability"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

// Rate limiter defaults.
const (
	DefaultClientTTL   = 10 * time.Minute
	MinCleanupInterval = 10 * time.Second
	MaxCleanupInterval = time.Minute
)

type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter is a token bucket limiter, shared by all clients or kept per
// client IP. Its rate can be changed while it is in use.
type RateLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	perClient bool
	clients   map[string]*clientEntry
	rps       float64
	burst     int
	enabled   bool
	clientTTL time.Duration
	logger    observability.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// RateLimiterOption is a functional option for configuring the rate limiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterLogger sets the logger for the rate limiter.
func WithRateLimiterLogger(logger observability.Logger) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.logger = logger
	}
}

// WithClientTTL sets how long an idle per-client bucket is kept.
func WithClientTTL(ttl time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.clientTTL = ttl
	}
}

// NewRateLimiter creates a rate limiter. A non-positive rps disables it.
func NewRateLimiter(rps float64, burst int, perClient bool, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		clients:   make(map[string]*clientEntry),
		perClient: perClient,
		clientTTL: DefaultClientTTL,
		logger:    observability.NopLogger(),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}
	rl.SetLimit(rps, burst)
	return rl
}

// SetLimit changes the rate and burst. Existing per-client buckets are
// updated in place.
func (rl *RateLimiter) SetLimit(rps float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.enabled = rps > 0
	rl.rps = rps
	rl.burst = burst
	if rl.burst < 1 {
		rl.burst = 1
	}

	if rl.limiter == nil {
		rl.limiter = rate.NewLimiter(rate.Limit(rps), rl.burst)
	} else {
		rl.limiter.SetLimit(rate.Limit(rps))
		rl.limiter.SetBurst(rl.burst)
	}
	for _, entry := range rl.clients {
		entry.limiter.SetLimit(rate.Limit(rps))
		entry.limiter.SetBurst(rl.burst)
	}
}

// Allow reports whether a request from clientIP may proceed.
func (rl *RateLimiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	if !rl.enabled {
		rl.mu.Unlock()
		return true
	}
	limiter := rl.limiter
	if rl.perClient {
		entry, exists := rl.clients[clientIP]
		if !exists {
			entry = &clientEntry{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
			rl.clients[clientIP] = entry
		}
		entry.lastAccess = time.Now()
		limiter = entry.limiter
	}
	rl.mu.Unlock()

	return limiter.Allow()
}

// RetryAfter is the whole number of seconds until one token is available
// at the current rate.
func (rl *RateLimiter) RetryAfter() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.rps <= 0 {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/rl.rps)))
}

// StartCleanup evicts idle per-client buckets until Stop is called.
func (rl *RateLimiter) StartCleanup() {
	if !rl.perClient {
		return
	}
	interval := rl.clientTTL / 2
	if interval < MinCleanupInterval {
		interval = MinCleanupInterval
	}
	if interval > MaxCleanupInterval {
		interval = MaxCleanupInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-rl.stopCh:
				return
			case <-ticker.C:
				rl.cleanup(time.Now())
			}
		}
	}()
}

func (rl *RateLimiter) cleanup(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, entry := range rl.clients {
		if now.Sub(entry.lastAccess) > rl.clientTTL {
			delete(rl.clients, ip)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.Debug("evicted idle rate limit buckets", observability.Int("count", removed))
	}
	return removed
}

// Stop ends the cleanup loop. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// RateLimit returns a middleware that rejects requests over the limit with
// 429. m may be nil.
func RateLimit(rl *RateLimiter, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isHealthCheckPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		if !rl.Allow(clientIP) {
			rl.logger.Warn("rate limit exceeded",
				observability.String("client_ip", clientIP),
				observability.String("path", c.Request.URL.Path),
			)
			if m != nil {
				m.RecordRateLimitHit(c.FullPath())
			}
			c.Header(HeaderRetryAfter, strconv.Itoa(rl.RetryAfter()))
			AbortWithError(c, http.StatusTooManyRequests, util.ErrRateLimited)
			return
		}

		c.Next()
	}
}
