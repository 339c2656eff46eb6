// Package main is the entry point of the avamapper transformation server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/engine"
	"github.com/vyrodovalexey/avamapper/internal/observability"
	"github.com/vyrodovalexey/avamapper/internal/sandbox"
	"github.com/vyrodovalexey/avamapper/internal/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags(flag.CommandLine, os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	app, err := initApplication(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", observability.Error(err))
	}

	run(app, flags.configPath, logger)
}

// parseFlags parses command line flags. Environment variables provide the
// defaults.
func parseFlags(fs *flag.FlagSet, args []string) cliFlags {
	var f cliFlags
	fs.StringVar(&f.configPath, "config", getEnvOrDefault("AVAMAPPER_CONFIG_PATH", ""),
		"Path to the service configuration file (YAML)")
	fs.StringVar(&f.logLevel, "log-level", getEnvOrDefault("AVAMAPPER_LOG_LEVEL", ""),
		"Log level override (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", getEnvOrDefault("AVAMAPPER_LOG_FORMAT", ""),
		"Log format override (json, console)")
	fs.BoolVar(&f.showVersion, "version", false, "Show version information")
	_ = fs.Parse(args)
	return f
}

func printVersion() {
	fmt.Printf("avamapper version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// loadConfig reads the service configuration, or uses the defaults when no
// path is given. Flag overrides are applied last.
func loadConfig(flags cliFlags) (*config.ServiceConfig, error) {
	cfg := config.DefaultServiceConfig()
	if flags.configPath != "" {
		loaded, err := config.LoadServiceConfig(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyFlagOverrides(cfg, flags)
	return cfg, cfg.Validate()
}

func applyFlagOverrides(cfg *config.ServiceConfig, flags cliFlags) {
	if flags.logLevel != "" {
		cfg.Observability.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Observability.Logging.Format = flags.logFormat
	}
}

func initLogger(cfg *config.ServiceConfig) (observability.Logger, error) {
	l := cfg.Observability.Logging
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  l.Level,
		Format: l.Format,
		Output: l.Output,
	})
	if err != nil {
		return nil, err
	}
	observability.SetGlobalLogger(logger)
	return logger, nil
}

// application holds all application components.
type application struct {
	config  *config.ServiceConfig
	engine  *engine.Engine
	server  *server.Server
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

func initApplication(cfg *config.ServiceConfig, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("avamapper")
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer, err := initTracer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	sb, err := sandbox.New(sandbox.LimitsFromConfig(cfg.Sandbox),
		sandbox.WithLogger(logger),
		sandbox.WithCacheSize(cfg.Sandbox.CacheSize),
	)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(
		engine.WithLogger(logger),
		engine.WithTracer(tracer),
		engine.WithSandbox(sb),
	)
	if err != nil {
		return nil, err
	}

	srv := server.New(cfg, eng,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithTracer(tracer),
		server.WithVersion(version),
	)

	logger.Info("configuration loaded",
		observability.String("version", version),
		observability.String("address", cfg.Server.Address()),
		observability.Int("max_concurrent", cfg.Limits.MaxConcurrent),
		observability.Duration("script_timeout", cfg.Sandbox.Timeout.Duration()),
		observability.Bool("tracing", cfg.Observability.Tracing.Enabled),
	)

	return &application{
		config:  cfg,
		engine:  eng,
		server:  srv,
		metrics: metrics,
		tracer:  tracer,
	}, nil
}

func initTracer(cfg *config.ServiceConfig) (*observability.Tracer, error) {
	t := cfg.Observability.Tracing
	return observability.NewTracer(context.Background(), observability.TracerConfig{
		ServiceName:    t.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   t.OTLPEndpoint,
		SamplingRate:   t.SamplingRate,
		Enabled:        t.Enabled,
	})
}

// run serves until a signal arrives or the server fails, then shuts down.
func run(app *application, configPath string, logger observability.Logger) {
	watcher := startConfigWatcher(app, configPath, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- app.server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped unexpectedly", observability.Error(err))
		}
	}

	shutdown(app, watcher, logger)
}

func shutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout.Duration())
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}
	if err := app.server.Stop(ctx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}
	if err := app.tracer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("avamapper stopped")
}
