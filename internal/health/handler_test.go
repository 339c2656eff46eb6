package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newRouter(h *Handler) *gin.Engine {
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLiveness(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, "1.2.3")
	h.AddCheck(NewHealthCheckFunc("broken", func(context.Context) error { return errors.New("down") }))
	r := newRouter(h)

	for _, p := range []string{"/health", "/healthz"} {
		t.Run(p, func(t *testing.T) {
			t.Parallel()

			w := get(t, r, p)
			require.Equal(t, http.StatusOK, w.Code)

			var body LivenessStatus
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, StatusOK, body.Status)
			assert.Equal(t, "1.2.3", body.Version)
			assert.NotEmpty(t, body.Uptime)
		})
	}
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		checks   []HealthCheck
		draining bool
		wantCode int
		want     string
	}{
		{
			name:     "no checks",
			wantCode: http.StatusOK,
			want:     StatusOK,
		},
		{
			name: "all passing",
			checks: []HealthCheck{
				NewHealthCheckFunc("engine", func(context.Context) error { return nil }),
				NewHealthCheckFunc("config", func(context.Context) error { return nil }),
			},
			wantCode: http.StatusOK,
			want:     StatusOK,
		},
		{
			name: "one failing",
			checks: []HealthCheck{
				NewHealthCheckFunc("engine", func(context.Context) error { return nil }),
				NewHealthCheckFunc("config", func(context.Context) error { return errors.New("not loaded") }),
			},
			wantCode: http.StatusServiceUnavailable,
			want:     StatusError,
		},
		{
			name: "draining",
			checks: []HealthCheck{
				NewHealthCheckFunc("engine", func(context.Context) error { return nil }),
			},
			draining: true,
			wantCode: http.StatusServiceUnavailable,
			want:     StatusDraining,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHandler(nil, "")
			for _, c := range tt.checks {
				h.AddCheck(c)
			}
			h.SetDraining(tt.draining)

			w := get(t, newRouter(h), "/ready")
			require.Equal(t, tt.wantCode, w.Code)

			var body ReadinessStatus
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Status)
			if tt.want == StatusError {
				assert.Equal(t, StatusError, body.Checks["config"].Status)
				assert.Equal(t, "not loaded", body.Checks["config"].Error)
				assert.Equal(t, StatusOK, body.Checks["engine"].Status)
			}
		})
	}
}

func TestRemoveCheck(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, "")
	h.AddCheck(NewHealthCheckFunc("flaky", func(context.Context) error { return errors.New("x") }))
	r := newRouter(h)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, r, "/readyz").Code)

	h.RemoveCheck("flaky")
	assert.Equal(t, http.StatusOK, get(t, r, "/readyz").Code)
}

func TestReadinessTimeout(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, "")
	h.SetReadinessTimeout(20 * time.Millisecond)
	h.AddCheck(NewHealthCheckFunc("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	w := get(t, newRouter(h), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "deadline exceeded")
}

func TestCachedHealthCheck(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cached := NewCachedHealthCheck(NewHealthCheckFunc("probe", func(context.Context) error {
		calls.Add(1)
		return nil
	}), time.Minute)
	cached.now = func() time.Time { return now }

	require.NoError(t, cached.Check(context.Background()))
	require.NoError(t, cached.Check(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(2 * time.Minute)
	require.NoError(t, cached.Check(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "probe", cached.Name())
}

func TestTimeoutHealthCheck(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	defer close(block)

	check := NewTimeoutHealthCheck(NewHealthCheckFunc("stuck", func(context.Context) error {
		<-block
		return nil
	}), 10*time.Millisecond)

	err := check.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, "stuck", check.Name())
}

func TestHealthMetrics(t *testing.T) {
	t.Parallel()

	m := GetHealthMetrics()
	m.Init()
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	before := testutil.ToFloat64(m.checksTotal.WithLabelValues("liveness"))
	get(t, newRouter(NewHandler(nil, "")), "/health")
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.checksTotal.WithLabelValues("liveness")), before+1)

	n, err := testutil.GatherAndCount(reg, "avamapper_health_checks_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)

	h := NewHandler(nil, "")
	h.AddCheck(NewHealthCheckFunc("metrics-probe", func(context.Context) error { return nil }))
	get(t, newRouter(h), "/ready")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkStatus.WithLabelValues("metrics-probe")))
	n, err = testutil.GatherAndCount(reg, "avamapper_health_check_duration_seconds")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}
