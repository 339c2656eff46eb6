package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CachedHealthCheck remembers the result of a check for a while, so
// frequent probes do not repeat expensive work.
type CachedHealthCheck struct {
	check      HealthCheck
	cacheTTL   time.Duration
	mu         sync.Mutex
	lastCheck  time.Time
	lastResult error
	now        func() time.Time
}

// NewCachedHealthCheck wraps check with a result cache.
func NewCachedHealthCheck(check HealthCheck, cacheTTL time.Duration) *CachedHealthCheck {
	return &CachedHealthCheck{
		check:    check,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Name returns the name of the wrapped check.
func (c *CachedHealthCheck) Name() string {
	return c.check.Name()
}

// Check returns the cached result or runs the wrapped check.
func (c *CachedHealthCheck) Check(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastCheck.IsZero() && c.now().Sub(c.lastCheck) < c.cacheTTL {
		return c.lastResult
	}
	c.lastResult = c.check.Check(ctx)
	c.lastCheck = c.now()
	return c.lastResult
}

// TimeoutHealthCheck fails a check that does not return within timeout.
type TimeoutHealthCheck struct {
	check   HealthCheck
	timeout time.Duration
}

// NewTimeoutHealthCheck wraps check with a deadline.
func NewTimeoutHealthCheck(check HealthCheck, timeout time.Duration) *TimeoutHealthCheck {
	return &TimeoutHealthCheck{check: check, timeout: timeout}
}

// Name returns the name of the wrapped check.
func (t *TimeoutHealthCheck) Name() string {
	return t.check.Name()
}

// Check runs the wrapped check under the deadline.
func (t *TimeoutHealthCheck) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- t.check.Check(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("health check timed out after %v", t.timeout)
	}
}
