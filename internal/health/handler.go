package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avamapper/internal/observability"
)

// DefaultReadinessProbeTimeout bounds one run of the readiness checks.
const DefaultReadinessProbeTimeout = 5 * time.Second

// Probe results.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusDraining = "draining"
)

// HealthCheck is a named readiness check.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthCheck.
type HealthCheckFunc struct {
	name      string
	checkFunc func(ctx context.Context) error
}

// NewHealthCheckFunc creates a named check from fn.
func NewHealthCheckFunc(name string, fn func(ctx context.Context) error) *HealthCheckFunc {
	return &HealthCheckFunc{name: name, checkFunc: fn}
}

// Name returns the name of the check.
func (f *HealthCheckFunc) Name() string {
	return f.name
}

// Check runs the check.
func (f *HealthCheckFunc) Check(ctx context.Context) error {
	return f.checkFunc(ctx)
}

// LivenessStatus is the body of the liveness endpoint.
type LivenessStatus struct {
	Status    string    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessStatus is the body of the readiness endpoint.
type ReadinessStatus struct {
	Status    string                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Checks    map[string]*CheckResult `json:"checks,omitempty"`
}

// CheckResult is the result of a single check.
type CheckResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Handler serves the probe endpoints.
type Handler struct {
	mu        sync.RWMutex
	checks    []HealthCheck
	logger    observability.Logger
	version   string
	startTime time.Time
	timeout   time.Duration
	draining  atomic.Bool
	metrics   *HealthMetrics
}

// NewHandler creates a handler. logger may be nil.
func NewHandler(logger observability.Logger, version string) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handler{
		logger:    logger,
		version:   version,
		startTime: time.Now(),
		timeout:   DefaultReadinessProbeTimeout,
		metrics:   GetHealthMetrics(),
	}
}

// SetReadinessTimeout changes how long readiness checks may take.
func (h *Handler) SetReadinessTimeout(timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if timeout > 0 {
		h.timeout = timeout
	}
}

// AddCheck registers a readiness check.
func (h *Handler) AddCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// RemoveCheck removes a readiness check by name.
func (h *Handler) RemoveCheck(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, check := range h.checks {
		if check.Name() == name {
			h.checks = append(h.checks[:i], h.checks[i+1:]...)
			return
		}
	}
}

// SetDraining marks the server as shutting down. Readiness fails from then on.
func (h *Handler) SetDraining(draining bool) {
	if h.draining.Swap(draining) != draining && draining {
		h.logger.Info("readiness probe switched to draining")
	}
}

// IsDraining reports whether SetDraining(true) was called.
func (h *Handler) IsDraining() bool {
	return h.draining.Load()
}

// LivenessHandler reports that the process is up.
func (h *Handler) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.metrics.checksTotal.WithLabelValues("liveness").Inc()
		c.JSON(http.StatusOK, LivenessStatus{
			Status:    StatusOK,
			Version:   h.version,
			Uptime:    time.Since(h.startTime).Round(time.Second).String(),
			Timestamp: time.Now().UTC(),
		})
	}
}

// ReadinessHandler runs the checks and answers 503 when one fails or the
// server is draining.
func (h *Handler) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.metrics.checksTotal.WithLabelValues("readiness").Inc()

		if h.IsDraining() {
			h.metrics.setStatus("overall", false)
			c.JSON(http.StatusServiceUnavailable, ReadinessStatus{
				Status:    StatusDraining,
				Timestamp: time.Now().UTC(),
			})
			return
		}

		h.mu.RLock()
		timeout := h.timeout
		h.mu.RUnlock()
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		status := h.runChecks(ctx)
		h.metrics.setStatus("overall", status.Status == StatusOK)

		code := http.StatusOK
		if status.Status != StatusOK {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}

// runChecks runs all checks concurrently.
func (h *Handler) runChecks(ctx context.Context) *ReadinessStatus {
	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := &ReadinessStatus{
		Status:    StatusOK,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]*CheckResult, len(checks)),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, check := range checks {
		wg.Add(1)
		go func(chk HealthCheck) {
			defer wg.Done()

			start := time.Now()
			err := chk.Check(ctx)
			duration := time.Since(start)

			result := &CheckResult{Status: StatusOK, Duration: duration.String()}
			if err != nil {
				result.Status = StatusError
				result.Error = err.Error()
				h.logger.Warn("health check failed",
					observability.String("check", chk.Name()),
					observability.Error(err),
					observability.Duration("duration", duration),
				)
			}
			h.metrics.observeCheck(chk.Name(), err == nil, duration)

			mu.Lock()
			defer mu.Unlock()
			status.Checks[chk.Name()] = result
			if err != nil {
				status.Status = StatusError
			}
		}(check)
	}
	wg.Wait()

	return status
}

// RegisterRoutes registers the probe routes.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.LivenessHandler())
	r.GET("/healthz", h.LivenessHandler())
	r.GET("/ready", h.ReadinessHandler())
	r.GET("/readyz", h.ReadinessHandler())
}
