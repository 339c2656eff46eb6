package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/observability"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "avamapper.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestParseFlags(t *testing.T) {
	t.Setenv("AVAMAPPER_CONFIG_PATH", "/etc/avamapper/config.yaml")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := parseFlags(fs, []string{"-log-level", "debug"})
	assert.Equal(t, "/etc/avamapper/config.yaml", f.configPath)
	assert.Equal(t, "debug", f.logLevel)
	assert.False(t, f.showVersion)

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	f = parseFlags(fs, []string{"-config", "other.yaml", "-version"})
	assert.Equal(t, "other.yaml", f.configPath)
	assert.True(t, f.showVersion)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		flags   cliFlags
		check   func(t *testing.T, cfg *config.ServiceConfig)
		wantErr error
	}{
		{
			name: "defaults without a file",
			check: func(t *testing.T, cfg *config.ServiceConfig) {
				assert.Equal(t, config.DefaultPort, cfg.Server.Port)
				assert.Equal(t, "info", cfg.Observability.Logging.Level)
			},
		},
		{
			name: "file with flag override",
			content: `
server:
  port: 9191
sandbox:
  timeout: 100ms
observability:
  logging:
    level: warn
`,
			flags: cliFlags{logFormat: "console"},
			check: func(t *testing.T, cfg *config.ServiceConfig) {
				assert.Equal(t, 9191, cfg.Server.Port)
				assert.Equal(t, 100*time.Millisecond, cfg.Sandbox.Timeout.Duration())
				assert.Equal(t, "warn", cfg.Observability.Logging.Level)
				assert.Equal(t, "console", cfg.Observability.Logging.Format)
			},
		},
		{
			name:    "invalid override",
			flags:   cliFlags{logLevel: "loud"},
			wantErr: util.ErrConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flags := tt.flags
			if tt.content != "" {
				flags.configPath = writeConfig(t, tt.content)
			}
			cfg, err := loadConfig(flags)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := loadConfig(cliFlags{configPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestApplyReload(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := observability.NewLoggerFromZap(zap.New(core))

	cfg := config.DefaultServiceConfig()
	app, err := initApplication(cfg, logger)
	require.NoError(t, err)

	newCfg := config.DefaultServiceConfig()
	newCfg.Observability.Logging.Level = "warn"
	newCfg.Sandbox.Timeout = config.Duration(2 * time.Second)
	newCfg.Sandbox.CostLimit = 42
	newCfg.Server.Port = 9999
	newCfg.Limits.RateLimit = &config.RateLimitConfig{Enabled: true, RequestsPerSecond: 5, Burst: 5}

	applyReload(app, newCfg, logger)

	ls, ok := logger.(observability.LevelSetter)
	require.True(t, ok)
	assert.Equal(t, "warn", ls.Level())

	limits := app.engine.Sandbox().Limits()
	assert.Equal(t, 2*time.Second, limits.Timeout)
	assert.Equal(t, uint64(42), limits.CostLimit)

	assert.Equal(t, 1, logs.FilterMessage("server settings changed; restart to apply").Len())
	assert.Equal(t, 1, logs.FilterMessage("configuration reloaded").Len())
}

func TestStartConfigWatcher(t *testing.T) {
	t.Parallel()

	logger := observability.NopLogger()
	app, err := initApplication(config.DefaultServiceConfig(), logger)
	require.NoError(t, err)

	assert.Nil(t, startConfigWatcher(app, "", logger))

	p := writeConfig(t, "sandbox:\n  timeout: 300ms\n")
	w := startConfigWatcher(app, p, logger)
	require.NotNil(t, w)
	defer func() { _ = w.Stop() }()
	assert.Equal(t, 300*time.Millisecond, w.LastConfig().Sandbox.Timeout.Duration())

	require.NoError(t, os.WriteFile(p, []byte("sandbox:\n  timeout: 700ms\n"), 0o600))
	assert.Eventually(t, func() bool {
		return app.engine.Sandbox().Limits().Timeout == 700*time.Millisecond
	}, 3*time.Second, 20*time.Millisecond)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("AVAMAPPER_TEST_VALUE", "set")
	assert.Equal(t, "set", getEnvOrDefault("AVAMAPPER_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", getEnvOrDefault("AVAMAPPER_TEST_UNSET", "fallback"))
}
