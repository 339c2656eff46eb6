package main

import (
	"context"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/observability"
	"github.com/vyrodovalexey/avamapper/internal/sandbox"
)

// startConfigWatcher watches configPath and applies changes that do not
// need a restart. It returns nil when there is nothing to watch.
func startConfigWatcher(app *application, configPath string, logger observability.Logger) *config.Watcher {
	if configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(configPath,
		func(newCfg *config.ServiceConfig) {
			applyReload(app, newCfg, logger)
		},
		config.WithLogger(logger),
		config.WithErrorCallback(func(err error) {
			app.metrics.RecordConfigReload(false)
			logger.Error("failed to reload configuration", observability.Error(err))
		}),
	)
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
		_ = watcher.Stop()
		return nil
	}
	return watcher
}

// applyReload hot-applies the log level, sandbox limits and rate limit.
// Listener and timeout changes are logged and take effect on restart.
func applyReload(app *application, newCfg *config.ServiceConfig, logger observability.Logger) {
	old := app.config

	if ls, ok := logger.(observability.LevelSetter); ok {
		level := newCfg.Observability.Logging.Level
		if level != ls.Level() {
			if err := ls.SetLevel(level); err != nil {
				logger.Warn("ignoring invalid log level", observability.String("level", level), observability.Error(err))
			} else {
				logger.Info("log level changed", observability.String("level", level))
			}
		}
	}

	app.engine.Sandbox().SetLimits(sandbox.LimitsFromConfig(newCfg.Sandbox))
	app.server.ApplyConfig(newCfg)

	if old.Server != newCfg.Server || old.Limits.MaxConcurrent != newCfg.Limits.MaxConcurrent {
		logger.Warn("server settings changed; restart to apply",
			observability.String("address", newCfg.Server.Address()),
			observability.Int("max_concurrent", newCfg.Limits.MaxConcurrent),
		)
	}

	app.metrics.RecordConfigReload(true)
	logger.Info("configuration reloaded")
}
