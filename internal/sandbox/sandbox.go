package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/observability"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

// Script variable names.
const (
	VarInput  = "input"
	VarInputs = "inputs"
)

// Limits bounds a single script evaluation.
type Limits struct {
	// Timeout is the wall-clock budget of one evaluation.
	Timeout time.Duration
	// CostLimit caps the CEL evaluation cost.
	CostLimit uint64
	// MaxNodes caps the size of a compiled expr program.
	MaxNodes uint
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		Timeout:   config.DefaultScriptTimeout,
		CostLimit: config.DefaultScriptCostLimit,
		MaxNodes:  config.DefaultScriptMaxNodes,
	}
}

// LimitsFromConfig converts the sandbox section of the service config.
func LimitsFromConfig(cfg config.SandboxConfig) Limits {
	return Limits{
		Timeout:   cfg.Timeout.Duration(),
		CostLimit: cfg.CostLimit,
		MaxNodes:  cfg.MaxNodes,
	}.withDefaults()
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.Timeout <= 0 {
		l.Timeout = d.Timeout
	}
	if l.CostLimit == 0 {
		l.CostLimit = d.CostLimit
	}
	if l.MaxNodes == 0 {
		l.MaxNodes = d.MaxNodes
	}
	return l
}

// Program is a compiled script.
type Program interface {
	// Language returns the script dialect.
	Language() string

	// Run evaluates the program. A nil input is seen by the script as null.
	Run(ctx context.Context, inputs []*document.Node) (*document.Node, error)
}

// Sandbox compiles and runs user scripts. It is safe for concurrent use.
type Sandbox struct {
	limits  atomic.Pointer[Limits]
	cache   *programCache
	celEnv  *cel.Env
	logger  observability.Logger
	metrics *ScriptMetrics
}

// Option is a functional option for the sandbox.
type Option func(*Sandbox)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Sandbox) {
		s.logger = logger
	}
}

// WithCacheSize sets the number of compiled programs kept.
func WithCacheSize(size int) Option {
	return func(s *Sandbox) {
		s.cache = newProgramCache(size)
	}
}

// New creates a sandbox with the given limits. Zero limit fields take
// their defaults.
func New(limits Limits, opts ...Option) (*Sandbox, error) {
	s := &Sandbox{
		cache:   newProgramCache(DefaultCacheSize),
		logger:  observability.NopLogger(),
		metrics: GetScriptMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	env, err := newCELEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	s.celEnv = env

	l := limits.withDefaults()
	s.limits.Store(&l)

	return s, nil
}

// Limits returns the limits currently applied.
func (s *Sandbox) Limits() Limits {
	return *s.limits.Load()
}

// SetLimits replaces the limits. Programs already running keep the limits
// they started with. Compile-time limits are baked into cached programs,
// so changing them empties the cache.
func (s *Sandbox) SetLimits(limits Limits) {
	l := limits.withDefaults()
	old := s.limits.Swap(&l)
	if old.CostLimit != l.CostLimit || old.MaxNodes != l.MaxNodes {
		s.cache.purge()
		s.metrics.cacheSize.Set(0)
	}
	s.logger.Info("sandbox limits updated",
		observability.Duration("timeout", l.Timeout),
		observability.Any("cost_limit", l.CostLimit),
		observability.Any("max_nodes", l.MaxNodes),
	)
}

// CacheStats returns program cache counters.
func (s *Sandbox) CacheStats() CacheStats {
	return s.cache.stats()
}

// Compile parses and checks script in the given language. An empty
// language means CEL. Errors are *util.ScriptError.
func (s *Sandbox) Compile(language, script string) (Program, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = config.LanguageCEL
	}
	if strings.TrimSpace(script) == "" {
		return nil, util.NewScriptError(language, "script is empty", nil)
	}

	key := cacheKey(language, script)
	if prg, ok := s.cache.get(key); ok {
		s.metrics.recordCacheLookup(true)
		return prg, nil
	}
	s.metrics.recordCacheLookup(false)

	limits := s.Limits()
	var (
		prg Program
		err error
	)
	switch language {
	case config.LanguageCEL:
		prg, err = s.compileCEL(script, limits)
	case config.LanguageExpr:
		prg, err = s.compileExpr(script, limits)
	default:
		return nil, util.NewScriptError(language, "unsupported script language", nil)
	}
	s.metrics.recordCompilation(language, err)
	if err != nil {
		s.logger.Debug("script compilation failed",
			observability.String("language", language),
			observability.Error(err),
		)
		return nil, util.NewScriptError(language, "compilation failed", err)
	}

	s.metrics.cacheSize.Set(float64(s.cache.put(key, prg)))
	return prg, nil
}

// evaluate runs fn under the current timeout and maps its failure onto a
// ScriptError.
func (s *Sandbox) evaluate(
	ctx context.Context,
	language string,
	fn func(ctx context.Context) (*document.Node, error),
) (*document.Node, error) {
	if err := ctx.Err(); err != nil {
		s.metrics.recordEvaluation(language, resultError, 0)
		return nil, util.NewScriptError(language, "evaluation cancelled", err)
	}

	timeout := s.Limits().Timeout
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := fn(runCtx)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		s.metrics.recordEvaluation(language, resultSuccess, elapsed)
		return out, nil
	case ctx.Err() != nil:
		s.metrics.recordEvaluation(language, resultError, elapsed)
		return nil, util.NewScriptError(language, "evaluation cancelled", ctx.Err())
	case runCtx.Err() != nil:
		s.metrics.recordEvaluation(language, resultTimeout, elapsed)
		timeoutErr := util.NewTimeoutError("script evaluation", timeout)
		timeoutErr.Cause = runCtx.Err()
		return nil, util.NewScriptError(language, "evaluation aborted", timeoutErr)
	}

	s.metrics.recordEvaluation(language, resultError, elapsed)
	var scriptErr *util.ScriptError
	if errors.As(err, &scriptErr) {
		return nil, err
	}
	return nil, util.NewScriptError(language, "evaluation failed", err)
}

// project converts inputs to the plain values scripts operate on. The
// returned values share nothing with the source nodes. order ranks the
// object keys of inputs so that results built from them keep their
// document order.
func project(inputs []*document.Node) (first any, all []any, order document.KeyOrder) {
	all = make([]any, len(inputs))
	for i, n := range inputs {
		all[i] = n.Interface()
	}
	if len(all) > 0 {
		first = all[0]
	}
	return first, all, document.NewKeyOrder(inputs...)
}
