package encoding

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/avamapper/internal/util"
)

// CodecMetrics contains Prometheus metrics for codec operations.
type CodecMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
}

var (
	codecMetricsInstance *CodecMetrics
	codecMetricsOnce     sync.Once
)

// GetCodecMetrics returns the singleton codec metrics instance.
func GetCodecMetrics() *CodecMetrics {
	codecMetricsOnce.Do(func() {
		codecMetricsInstance = &CodecMetrics{
			operationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avamapper",
					Subsystem: "codec",
					Name:      "operations_total",
					Help:      "Total number of codec operations",
				},
				[]string{"protocol", "operation", "result"},
			),
			operationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "avamapper",
					Subsystem: "codec",
					Name:      "operation_duration_seconds",
					Help:      "Duration of codec operations in seconds",
					Buckets: []float64{
						.00005, .0001, .0005, .001,
						.005, .01, .05, .1,
					},
				},
				[]string{"protocol", "operation"},
			),
			errorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avamapper",
					Subsystem: "codec",
					Name:      "errors_total",
					Help:      "Total number of codec errors by kind",
				},
				[]string{"protocol", "operation", "kind"},
			),
		}
	})
	return codecMetricsInstance
}

// MustRegister registers the codec collectors with a custom registry.
// promauto already registered them with the default registry; the service
// serves /metrics from its own registry.
func (m *CodecMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.operationsTotal,
		m.operationDuration,
		m.errorsTotal,
	)
}

// Init pre-initializes label combinations so series are visible at startup.
func (m *CodecMetrics) Init() {
	for _, protocol := range []string{protocolJSON, protocolXML} {
		for _, op := range []string{"decode", "encode"} {
			for _, result := range []string{"success", "error"} {
				m.operationsTotal.WithLabelValues(protocol, op, result)
			}
			m.operationDuration.WithLabelValues(protocol, op)
		}
	}
}

// Record records one codec operation.
func (m *CodecMetrics) Record(protocol, operation string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
		m.errorsTotal.WithLabelValues(protocol, operation, util.ErrorKind(err)).Inc()
	}
	m.operationsTotal.WithLabelValues(protocol, operation, result).Inc()
	m.operationDuration.WithLabelValues(protocol, operation).Observe(duration.Seconds())
}
