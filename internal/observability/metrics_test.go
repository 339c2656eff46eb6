package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	m := NewMetrics("")

	m.RecordRequest(http.MethodPost, "/api/v2/transform", http.StatusOK, 15*time.Millisecond, 512, 128)
	m.RecordRequest(http.MethodPost, "/api/v2/transform", http.StatusOK, 5*time.Millisecond, 256, 64)
	m.RecordRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond, -1, 10)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodPost, "/api/v2/transform", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestSize))
}

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := NewMetrics("avamapper")

	m.IncrementActiveRequests()
	m.IncrementActiveRequests()
	m.DecrementActiveRequests()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeRequests))

	m.RecordRateLimitHit("/api/v2/transform")
	m.RecordRateLimitHit("")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimitHits.WithLabelValues("/api/v2/transform")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimitHits.WithLabelValues(unmatchedRoute)))

	m.RecordConcurrencyRejection()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.concurrencyRejection))

	m.RecordConfigReload(true)
	m.RecordConfigReload(false)
	m.RecordConfigReload(false)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.configReloads.WithLabelValues("error")))

	m.SetBuildInfo("1.0.0", "abc", "now")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.buildInfo.WithLabelValues("1.0.0", "abc", "now")))
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics("avamapper")
	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "avamapper_test_extra_total", Help: "test"})
	m.MustRegisterCollector(extra)
	extra.Inc()
	m.RecordConcurrencyRejection()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, "avamapper_concurrency_rejections_total 1"))
	assert.True(t, strings.Contains(text, "avamapper_test_extra_total 1"))
	assert.True(t, strings.Contains(text, "go_goroutines"))
	assert.NotNil(t, m.Registry())
}

func TestMetrics_RequestDurationHistogram(t *testing.T) {
	t.Parallel()

	m := NewMetrics("histogram_test")
	m.RecordRequest(http.MethodPost, "/api/v2/transform", http.StatusOK, 3*time.Millisecond, 10, 10)
	m.RecordRequest(http.MethodPost, "/api/v2/transform", http.StatusOK, 2*time.Second, 10, 10)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var family *io_prometheus_client.MetricFamily
	for _, f := range families {
		if f.GetName() == "histogram_test_http_request_duration_seconds" {
			family = f
		}
	}
	require.NotNil(t, family)
	assert.Equal(t, io_prometheus_client.MetricType_HISTOGRAM, family.GetType())
	require.Len(t, family.GetMetric(), 1)

	h := family.GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(2), h.GetSampleCount())
	assert.InDelta(t, 2.003, h.GetSampleSum(), 1e-9)

	labels := map[string]string{}
	for _, lp := range family.GetMetric()[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	assert.Equal(t, map[string]string{"method": "POST", "route": "/api/v2/transform", "status": "200"}, labels)
}
