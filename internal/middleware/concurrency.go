package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"github.com/vyrodovalexey/avamapper/internal/observability"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

// ConcurrencyLimiter caps the number of requests served at once. Requests
// over the cap are rejected immediately rather than queued, so a burst of
// slow transformations cannot pile up behind the limit.
type ConcurrencyLimiter struct {
	sem   *semaphore.Weighted
	limit int64
}

// NewConcurrencyLimiter creates a limiter admitting at most limit requests.
// A limit of zero or less means unlimited.
func NewConcurrencyLimiter(limit int) *ConcurrencyLimiter {
	if limit <= 0 {
		return &ConcurrencyLimiter{}
	}
	return &ConcurrencyLimiter{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: int64(limit),
	}
}

// TryAcquire takes a slot if one is free.
func (l *ConcurrencyLimiter) TryAcquire() bool {
	if l.sem == nil {
		return true
	}
	return l.sem.TryAcquire(1)
}

// Release returns a slot taken by TryAcquire.
func (l *ConcurrencyLimiter) Release() {
	if l.sem != nil {
		l.sem.Release(1)
	}
}

// Limit returns the configured cap, zero when unlimited.
func (l *ConcurrencyLimiter) Limit() int {
	return int(l.limit)
}

// ConcurrencyLimit returns a middleware that answers 503 when the limiter
// is full. m may be nil.
func ConcurrencyLimit(l *ConcurrencyLimiter, m *observability.Metrics, logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(c *gin.Context) {
		if !l.TryAcquire() {
			logger.WithContext(c.Request.Context()).Warn("concurrency limit reached",
				observability.Int("limit", l.Limit()),
			)
			if m != nil {
				m.RecordConcurrencyRejection()
			}
			c.Header(HeaderRetryAfter, "1")
			AbortWithError(c, http.StatusServiceUnavailable, util.ErrOverCapacity)
			return
		}
		defer l.Release()

		c.Next()
	}
}
