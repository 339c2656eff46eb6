package health

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HealthMetrics holds Prometheus metrics for the probes.
type HealthMetrics struct {
	checksTotal   *prometheus.CounterVec
	checkStatus   *prometheus.GaugeVec
	checkDuration *prometheus.HistogramVec
}

var (
	healthMetricsInstance *HealthMetrics
	healthMetricsOnce     sync.Once
)

// GetHealthMetrics returns the singleton health metrics instance.
func GetHealthMetrics() *HealthMetrics {
	healthMetricsOnce.Do(func() {
		healthMetricsInstance = &HealthMetrics{
			checksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avamapper",
					Subsystem: "health",
					Name:      "checks_total",
					Help:      "Total number of probe requests served",
				},
				[]string{"type"},
			),
			checkStatus: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "avamapper",
					Subsystem: "health",
					Name:      "check_status",
					Help:      "Last result of a readiness check (1=healthy, 0=unhealthy)",
				},
				[]string{"check"},
			),
			checkDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "avamapper",
					Subsystem: "health",
					Name:      "check_duration_seconds",
					Help:      "Time taken by a readiness check, including the engine probe",
					Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
				},
				[]string{"check"},
			),
		}
	})
	return healthMetricsInstance
}

// MustRegister registers the collectors with registry. promauto puts them
// on the default registry; the service serves /metrics from its own.
func (m *HealthMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.checksTotal,
		m.checkStatus,
		m.checkDuration,
	)
}

// Init creates the common label combinations so they are exported before
// the first probe.
func (m *HealthMetrics) Init() {
	for _, checkType := range []string{"liveness", "readiness"} {
		m.checksTotal.WithLabelValues(checkType)
	}
	m.checkStatus.WithLabelValues("overall")
}

func (m *HealthMetrics) observeCheck(check string, healthy bool, d time.Duration) {
	m.checkDuration.WithLabelValues(check).Observe(d.Seconds())
	m.setStatus(check, healthy)
}

func (m *HealthMetrics) setStatus(check string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	m.checkStatus.WithLabelValues(check).Set(v)
}
