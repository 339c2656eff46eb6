// Package observability provides logging, metrics, and tracing
// for the avamapper service.
//
// # Logging
//
// The Logger interface wraps zap. The level can be changed at runtime,
// which the service uses when its configuration file is reloaded:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("transform completed",
//	    observability.String("source", "JSON"),
//	    observability.Int("rules", 12),
//	)
//
// # Metrics
//
// Metrics owns a private Prometheus registry with the HTTP metrics and the
// Go and process collectors. Component metrics (codec, sandbox, engine)
// register themselves into the same registry so /metrics serves one view.
//
// # Tracing
//
// Tracer configures an OpenTelemetry SDK provider that exports over OTLP
// gRPC. When tracing is disabled the global no-op provider is used and
// spans cost nothing.
package observability
