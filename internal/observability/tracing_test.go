package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(context.Background(), TracerConfig{})
	require.NoError(t, err)
	assert.False(t, tracer.Enabled())

	_, span := tracer.StartSpan(context.Background(), "transform")
	span.End()
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNilTracer(t *testing.T) {
	t.Parallel()

	var tracer *Tracer
	ctx, span := tracer.StartSpan(context.Background(), "transform")
	require.NotNil(t, ctx)
	span.End()
	assert.False(t, tracer.Enabled())
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestTracer_RecordsSpans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewTracerWithProvider(provider, "avamapper-test")
	assert.True(t, tracer.Enabled())

	ctx, parent := tracer.StartSpan(context.Background(), "transform")
	ctx = ContextWithSpanIDs(ctx, parent)
	_, child := tracer.StartSpan(ctx, "transform.decode")
	child.End()
	parent.End()

	assert.Equal(t, parent.SpanContext().TraceID().String(), TraceIDFromContext(ctx))
	assert.Equal(t, parent.SpanContext().SpanID().String(), SpanIDFromContext(ctx))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "transform.decode", spans[0].Name())
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent().SpanID())

	require.NoError(t, tracer.Shutdown(context.Background()))
}

func TestCreateSampler(t *testing.T) {
	t.Parallel()

	assert.Equal(t, sdktrace.AlwaysSample().Description(), createSampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), createSampler(0).Description())
	assert.Contains(t, createSampler(0.5).Description(), "TraceIDRatioBased")
}
