package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vyrodovalexey/avamapper/internal/util"
)

// Default values for ServiceConfig.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8080
	DefaultRequestTimeout  = 10 * time.Second
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxBodyBytes    = 10 << 20
	DefaultMaxConcurrent   = 64
	DefaultScriptTimeout   = 250 * time.Millisecond
	DefaultScriptCostLimit = 1_000_000
	DefaultScriptMaxNodes  = 10_000
	DefaultScriptCacheSize = 512
	DefaultMetricsPath     = "/metrics"
	DefaultServiceName     = "avamapper"
)

// ServiceConfig is the server's startup configuration.
type ServiceConfig struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Limits        LimitsConfig        `yaml:"limits" json:"limits"`
	Sandbox       SandboxConfig       `yaml:"sandbox" json:"sandbox"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Security      SecurityConfig      `yaml:"security,omitempty" json:"security,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string   `yaml:"host,omitempty" json:"host,omitempty"`
	Port            int      `yaml:"port,omitempty" json:"port,omitempty"`
	RequestTimeout  Duration `yaml:"requestTimeout,omitempty" json:"requestTimeout,omitempty"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
	MaxBodyBytes    int64    `yaml:"maxBodyBytes,omitempty" json:"maxBodyBytes,omitempty"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig controls the hardening headers added to every response.
type SecurityConfig struct {
	// DisableHeaders turns the default headers off. CustomHeaders are
	// still sent.
	DisableHeaders bool              `yaml:"disableHeaders,omitempty" json:"disableHeaders,omitempty"`
	CustomHeaders  map[string]string `yaml:"customHeaders,omitempty" json:"customHeaders,omitempty"`
}

// LimitsConfig bounds the work the server accepts.
type LimitsConfig struct {
	// MaxConcurrent caps in-flight transformations. Zero disables the cap.
	MaxConcurrent int              `yaml:"maxConcurrent,omitempty" json:"maxConcurrent,omitempty"`
	RateLimit     *RateLimitConfig `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
}

// RateLimitConfig is a token bucket shared by all clients, or kept per
// client IP when PerClient is set.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty" json:"requestsPerSecond,omitempty"`
	Burst             int     `yaml:"burst,omitempty" json:"burst,omitempty"`
	PerClient         bool    `yaml:"perClient,omitempty" json:"perClient,omitempty"`
}

// SandboxConfig limits script evaluation.
type SandboxConfig struct {
	Timeout   Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	CostLimit uint64   `yaml:"costLimit,omitempty" json:"costLimit,omitempty"`
	MaxNodes  uint     `yaml:"maxNodes,omitempty" json:"maxNodes,omitempty"`
	CacheSize int      `yaml:"cacheSize,omitempty" json:"cacheSize,omitempty"`
}

// ObservabilityConfig represents observability configuration.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// TracingConfig represents tracing configuration.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// DefaultServiceConfig returns a ServiceConfig populated with defaults.
func DefaultServiceConfig() *ServiceConfig {
	cfg := &ServiceConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *ServiceConfig) ApplyDefaults() {
	s := &c.Server
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if c.Limits.MaxConcurrent == 0 {
		c.Limits.MaxConcurrent = DefaultMaxConcurrent
	}
	if rl := c.Limits.RateLimit; rl != nil && rl.Enabled && rl.Burst == 0 {
		rl.Burst = int(rl.RequestsPerSecond)
		if rl.Burst < 1 {
			rl.Burst = 1
		}
	}

	sb := &c.Sandbox
	if sb.Timeout == 0 {
		sb.Timeout = Duration(DefaultScriptTimeout)
	}
	if sb.CostLimit == 0 {
		sb.CostLimit = DefaultScriptCostLimit
	}
	if sb.MaxNodes == 0 {
		sb.MaxNodes = DefaultScriptMaxNodes
	}
	if sb.CacheSize == 0 {
		sb.CacheSize = DefaultScriptCacheSize
	}

	o := &c.Observability
	if o.Metrics.Path == "" {
		o.Metrics.Path = DefaultMetricsPath
	}
	if o.Tracing.ServiceName == "" {
		o.Tracing.ServiceName = DefaultServiceName
	}
	if o.Tracing.Enabled && o.Tracing.SamplingRate == 0 {
		o.Tracing.SamplingRate = 1.0
	}
	if o.Logging.Level == "" {
		o.Logging.Level = "info"
	}
	if o.Logging.Format == "" {
		o.Logging.Format = "json"
	}
	if o.Logging.Output == "" {
		o.Logging.Output = "stdout"
	}
}

// Validate checks the configuration for invalid values.
func (c *ServiceConfig) Validate() error {
	var errs []error
	add := func(field, msg string) {
		errs = append(errs, util.NewConfigError(field, msg))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", fmt.Sprintf("must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.RequestTimeout < 0 {
		add("server.requestTimeout", "must not be negative")
	}
	if c.Server.MaxBodyBytes < 0 {
		add("server.maxBodyBytes", "must not be negative")
	}
	if c.Limits.MaxConcurrent < 0 {
		add("limits.maxConcurrent", "must not be negative")
	}
	if rl := c.Limits.RateLimit; rl != nil && rl.Enabled {
		if rl.RequestsPerSecond <= 0 {
			add("limits.rateLimit.requestsPerSecond", "must be positive when rate limiting is enabled")
		}
		if rl.Burst < 0 {
			add("limits.rateLimit.burst", "must not be negative")
		}
	}
	if c.Sandbox.Timeout <= 0 {
		add("sandbox.timeout", "must be positive")
	}
	if c.Sandbox.CacheSize < 0 {
		add("sandbox.cacheSize", "must not be negative")
	}

	t := c.Observability.Tracing
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		add("observability.tracing.samplingRate", "must be between 0 and 1")
	}
	switch strings.ToLower(c.Observability.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		add("observability.logging.level", fmt.Sprintf("unknown level %q", c.Observability.Logging.Level))
	}
	switch strings.ToLower(c.Observability.Logging.Format) {
	case "", "json", "console":
	default:
		add("observability.logging.format", fmt.Sprintf("unknown format %q", c.Observability.Logging.Format))
	}

	return errors.Join(errs...)
}
