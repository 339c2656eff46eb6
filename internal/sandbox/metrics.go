package sandbox

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/avamapper/internal/config"
)

// Evaluation results used as metric labels.
const (
	resultSuccess = "success"
	resultError   = "error"
	resultTimeout = "timeout"
)

// ScriptMetrics contains Prometheus metrics for script compilation and
// evaluation.
type ScriptMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	compilationsTotal  *prometheus.CounterVec
	cacheLookupsTotal  *prometheus.CounterVec
	cacheSize          prometheus.Gauge
}

var (
	scriptMetricsInstance *ScriptMetrics
	scriptMetricsOnce     sync.Once
)

// GetScriptMetrics returns the singleton script metrics instance.
func GetScriptMetrics() *ScriptMetrics {
	scriptMetricsOnce.Do(func() {
		scriptMetricsInstance = &ScriptMetrics{
			evaluationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avamapper",
					Name:      "script_evaluations_total",
					Help:      "Total number of script evaluations",
				},
				[]string{"language", "result"},
			),
			evaluationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "avamapper",
					Name:      "script_duration_seconds",
					Help:      "Duration of script evaluations in seconds",
					Buckets: []float64{
						.00001, .00005, .0001, .0005,
						.001, .005, .01, .05, .1, .25, .5, 1,
					},
				},
				[]string{"language"},
			),
			compilationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avamapper",
					Name:      "script_compilations_total",
					Help:      "Total number of script compilations",
				},
				[]string{"language", "result"},
			),
			cacheLookupsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avamapper",
					Name:      "script_cache_lookups_total",
					Help:      "Total number of compiled program cache lookups",
				},
				[]string{"result"},
			),
			cacheSize: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "avamapper",
					Name:      "script_cache_entries",
					Help:      "Number of compiled programs held in the cache",
				},
			),
		}
	})
	return scriptMetricsInstance
}

// MustRegister registers the script collectors with a custom registry.
func (m *ScriptMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.evaluationsTotal,
		m.evaluationDuration,
		m.compilationsTotal,
		m.cacheLookupsTotal,
		m.cacheSize,
	)
}

// Init pre-initializes label combinations so series are visible at startup.
func (m *ScriptMetrics) Init() {
	for _, lang := range []string{config.LanguageCEL, config.LanguageExpr} {
		for _, result := range []string{resultSuccess, resultError, resultTimeout} {
			m.evaluationsTotal.WithLabelValues(lang, result)
		}
		m.compilationsTotal.WithLabelValues(lang, resultSuccess)
		m.compilationsTotal.WithLabelValues(lang, resultError)
		m.evaluationDuration.WithLabelValues(lang)
	}
	m.cacheLookupsTotal.WithLabelValues("hit")
	m.cacheLookupsTotal.WithLabelValues("miss")
}

func (m *ScriptMetrics) recordEvaluation(language, result string, duration time.Duration) {
	m.evaluationsTotal.WithLabelValues(language, result).Inc()
	m.evaluationDuration.WithLabelValues(language).Observe(duration.Seconds())
}

func (m *ScriptMetrics) recordCompilation(language string, err error) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	m.compilationsTotal.WithLabelValues(language, result).Inc()
}

func (m *ScriptMetrics) recordCacheLookup(hit bool) {
	if hit {
		m.cacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookupsTotal.WithLabelValues("miss").Inc()
}
