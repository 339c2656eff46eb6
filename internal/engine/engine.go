package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/encoding"
	"github.com/vyrodovalexey/avamapper/internal/observability"
	"github.com/vyrodovalexey/avamapper/internal/sandbox"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

// Engine runs transformations. It holds no per-request state and is safe
// for concurrent use.
type Engine struct {
	codecs  encoding.Registry
	sandbox *sandbox.Sandbox
	logger  observability.Logger
	tracer  *observability.Tracer
	metrics *Metrics
	now     func() time.Time
}

// Option is a functional option for the engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracer sets the tracer. Without one spans are not recorded.
func WithTracer(tracer *observability.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithSandbox sets the script sandbox.
func WithSandbox(sb *sandbox.Sandbox) Option {
	return func(e *Engine) {
		e.sandbox = sb
	}
}

// WithCodecs sets the codec registry.
func WithCodecs(codecs encoding.Registry) Option {
	return func(e *Engine) {
		e.codecs = codecs
	}
}

// WithClock sets the time source used by currentDate.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine. A sandbox with default limits and the JSON and
// XML codecs are used unless options say otherwise.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:  observability.NopLogger(),
		metrics: GetMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.codecs == nil {
		e.codecs = encoding.NewRegistry(e.logger)
	}
	if e.sandbox == nil {
		sb, err := sandbox.New(sandbox.DefaultLimits(), sandbox.WithLogger(e.logger))
		if err != nil {
			return nil, err
		}
		e.sandbox = sb
	}

	return e, nil
}

// Sandbox returns the script sandbox used by the engine.
func (e *Engine) Sandbox() *sandbox.Sandbox {
	return e.sandbox
}

// Transform applies cfg to sourceData. The result always reports success
// or failure; it is never nil.
func (e *Engine) Transform(ctx context.Context, sourceData []byte, cfg *config.MappingConfig) *Result {
	start := time.Now()
	ctx, span := e.tracer.StartSpan(ctx, "transform", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	res := e.transform(ctx, sourceData, cfg)
	duration := time.Since(start)

	outcome := "success"
	switch {
	case res.Success:
	case errors.Is(res.Err, util.ErrNoValueWritten):
		outcome = "empty"
	default:
		outcome = util.ErrorKind(res.Err)
	}
	e.metrics.recordTransform(string(res.SourceProtocol), string(res.TargetProtocol), outcome, duration)

	span.SetAttributes(
		attribute.String("transform.source_protocol", string(res.SourceProtocol)),
		attribute.String("transform.target_protocol", string(res.TargetProtocol)),
		attribute.Int("transform.rules", len(res.Outcomes)),
		attribute.Int("transform.warnings", len(res.Warnings)),
		attribute.Bool("transform.success", res.Success),
	)
	if !res.Success {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, outcome)
	}

	fields := []observability.Field{
		observability.String("source_protocol", string(res.SourceProtocol)),
		observability.String("target_protocol", string(res.TargetProtocol)),
		observability.Int("written", res.Written()),
		observability.Int("warnings", len(res.Warnings)),
		observability.Duration("duration", duration),
	}
	if cfg != nil {
		if cfg.Name != "" {
			fields = append(fields, observability.String("mapping", cfg.Name))
		}
		if cfg.ConfigType != "" {
			fields = append(fields, observability.String("config_type", string(cfg.ConfigType)))
		}
	}
	logger := e.logger.WithContext(ctx)
	if res.Success {
		logger.Debug("transformation completed", fields...)
	} else {
		logger.Info("transformation failed", append(fields, observability.Error(res.Err))...)
	}

	return res
}

func (e *Engine) transform(ctx context.Context, sourceData []byte, cfg *config.MappingConfig) *Result {
	res := &Result{}

	if err := cfg.Validate(); err != nil {
		return res.fail(err)
	}
	rules, err := e.prepare(cfg)
	if err != nil {
		return res.fail(err)
	}

	sourceCodec, targetCodec, err := e.resolveCodecs(res, sourceData, cfg)
	if err != nil {
		return res.fail(err)
	}

	src, err := e.decode(ctx, sourceCodec, sourceData, cfg)
	if err != nil {
		return res.fail(err)
	}

	x := newExecution(e, src.Root)
	for _, pr := range rules {
		if err := ctx.Err(); err != nil {
			return res.fail(fmt.Errorf("%w: rule execution stopped before rule %d: %w", util.ErrTimeout, pr.index, err))
		}
		res.Outcomes = append(res.Outcomes, x.run(ctx, pr)...)
	}

	if res.Written() == 0 || isEmpty(x.target) {
		return res.fail(errors.Join(append([]error{util.ErrNoValueWritten}, res.RuleErrors()...)...))
	}

	target := &document.Document{Root: x.target, Meta: document.Metadata{Protocol: res.TargetProtocol}}
	out, err := e.encode(ctx, targetCodec, target, src, cfg)
	if err != nil {
		return res.fail(err)
	}

	res.Success = true
	res.TransformedData = string(out)
	res.collectWarnings()
	return res
}

func (e *Engine) resolveCodecs(
	res *Result,
	sourceData []byte,
	cfg *config.MappingConfig,
) (source, target encoding.Codec, err error) {
	res.SourceProtocol = encoding.Detect(sourceData)
	if cfg.SourceProtocol != "" {
		if res.SourceProtocol, err = document.ParseProtocol(cfg.SourceProtocol); err != nil {
			return nil, nil, util.NewConfigErrorWithCause("sourceProtocol", err.Error(), err)
		}
	}
	res.TargetProtocol = res.SourceProtocol
	if cfg.TargetProtocol != "" {
		if res.TargetProtocol, err = document.ParseProtocol(cfg.TargetProtocol); err != nil {
			return nil, nil, util.NewConfigErrorWithCause("targetProtocol", err.Error(), err)
		}
	}

	if source, err = e.codecs.Get(res.SourceProtocol); err != nil {
		return nil, nil, util.NewConfigErrorWithCause("sourceProtocol", err.Error(), err)
	}
	if target, err = e.codecs.Get(res.TargetProtocol); err != nil {
		return nil, nil, util.NewConfigErrorWithCause("targetProtocol", err.Error(), err)
	}
	return source, target, nil
}

func (e *Engine) decode(
	ctx context.Context,
	codec encoding.Codec,
	data []byte,
	cfg *config.MappingConfig,
) (*document.Document, error) {
	_, span := e.tracer.StartSpan(ctx, "transform.decode")
	defer span.End()
	span.SetAttributes(
		attribute.String("codec.protocol", string(codec.Protocol())),
		attribute.Int("codec.input_size", len(data)),
	)

	doc, err := codec.Decode(data, encoding.DecodeOptions{CoerceScalars: cfg.CoerceXMLScalars})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, err
	}
	return doc, nil
}

func (e *Engine) encode(
	ctx context.Context,
	codec encoding.Codec,
	target, source *document.Document,
	cfg *config.MappingConfig,
) ([]byte, error) {
	_, span := e.tracer.StartSpan(ctx, "transform.encode")
	defer span.End()

	opts := encoding.Options{
		Pretty:      cfg.PrettyPrint,
		RootName:    cfg.XMLRootElementName,
		Declaration: cfg.IncludeXMLDeclaration,
	}
	if opts.RootName == "" && codec.Protocol() == document.ProtocolXML && !hasOwnRoot(target.Root) {
		opts.RootName = source.Meta.XMLRootName
	}
	span.SetAttributes(
		attribute.String("codec.protocol", string(codec.Protocol())),
		attribute.String("codec.root_name", opts.RootName),
	)

	out, err := codec.Encode(target, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("codec.output_size", len(out)))
	return out, nil
}

// Parse decodes sourceData and renders it as indented JSON. An empty
// protocol is detected from the data.
func (e *Engine) Parse(ctx context.Context, sourceData []byte, protocol string) ([]byte, error) {
	p := encoding.Detect(sourceData)
	if protocol != "" {
		var err error
		if p, err = document.ParseProtocol(protocol); err != nil {
			return nil, util.NewConfigErrorWithCause("sourceType", err.Error(), err)
		}
	}

	codec, err := e.codecs.Get(p)
	if err != nil {
		return nil, util.NewConfigErrorWithCause("sourceType", err.Error(), err)
	}
	doc, err := e.decode(ctx, codec, sourceData, &config.MappingConfig{})
	if err != nil {
		return nil, err
	}

	jsonCodec, err := e.codecs.Get(document.ProtocolJSON)
	if err != nil {
		return nil, err
	}
	return jsonCodec.Encode(&document.Document{Root: doc.Root}, encoding.Options{Pretty: true})
}

// hasOwnRoot reports whether n is a single-key object usable as an XML
// document element.
func hasOwnRoot(n *document.Node) bool {
	if n.Kind() != document.KindObject || n.Len() != 1 {
		return false
	}
	key := n.Keys()[0]
	if strings.HasPrefix(key, "@") || key == "#text" {
		return false
	}
	child, _ := n.Get(key)
	return child.Kind() != document.KindArray
}

func isEmpty(n *document.Node) bool {
	switch n.Kind() {
	case document.KindNull:
		return true
	case document.KindObject, document.KindArray:
		return n.Len() == 0
	default:
		return false
	}
}

func ruleLogFields(pr *preparedRule, o Outcome) []observability.Field {
	fields := []observability.Field{
		observability.Int("rule_index", pr.index),
		observability.String("mapping_type", string(pr.mappingType)),
		observability.String("transform_type", string(pr.transformType)),
		observability.String("target_path", o.TargetPath),
		observability.String("error_kind", util.ErrorKind(o.Err)),
		observability.Error(o.Err),
	}
	if o.SubIndex >= 0 {
		fields = append(fields, observability.Int("sub_mapping_index", o.SubIndex))
	}
	if pr.rule.Description != "" {
		fields = append(fields, observability.String("description", fmt.Sprintf("%.80s", pr.rule.Description)))
	}
	return fields
}
