package engine

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/avamapper/internal/config"
)

// Metrics contains Prometheus metrics for transformations.
type Metrics struct {
	transformsTotal   *prometheus.CounterVec
	transformDuration *prometheus.HistogramVec
	ruleOutcomesTotal *prometheus.CounterVec
}

var (
	engineMetricsInstance *Metrics
	engineMetricsOnce     sync.Once
)

// GetMetrics returns the singleton engine metrics instance.
func GetMetrics() *Metrics {
	engineMetricsOnce.Do(func() {
		engineMetricsInstance = &Metrics{
			transformsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avamapper",
					Name:      "transforms_total",
					Help:      "Total number of transformations",
				},
				[]string{"source", "target", "result"},
			),
			transformDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "avamapper",
					Name:      "transform_duration_seconds",
					Help:      "Duration of transformations in seconds",
					Buckets: []float64{
						.0001, .0005, .001, .005, .01,
						.025, .05, .1, .25, .5, 1, 2.5,
					},
				},
				[]string{"source", "target"},
			),
			ruleOutcomesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avamapper",
					Name:      "rule_outcomes_total",
					Help:      "Total number of executed rules by transform type and outcome",
				},
				[]string{"transform_type", "outcome"},
			),
		}
	})
	return engineMetricsInstance
}

// MustRegister registers the engine collectors with a custom registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.transformsTotal,
		m.transformDuration,
		m.ruleOutcomesTotal,
	)
}

// Init pre-initializes label combinations so series are visible at startup.
func (m *Metrics) Init() {
	types := []config.TransformType{
		config.TransformDirect, config.TransformScripted, config.TransformFunction,
		config.TransformDictionary, config.TransformFixed, config.TransformIgnore,
	}
	for _, tt := range types {
		for _, s := range []Status{StatusWritten, StatusSkipped, StatusIgnored, StatusFailed} {
			m.ruleOutcomesTotal.WithLabelValues(string(tt), string(s))
		}
	}
}

func (m *Metrics) recordTransform(source, target, result string, duration time.Duration) {
	if source == "" {
		source = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	m.transformsTotal.WithLabelValues(source, target, result).Inc()
	m.transformDuration.WithLabelValues(source, target).Observe(duration.Seconds())
}

func (m *Metrics) recordOutcome(tt config.TransformType, status Status) {
	m.ruleOutcomesTotal.WithLabelValues(string(tt), string(status)).Inc()
}
