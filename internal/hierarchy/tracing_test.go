package hierarchy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	ctx := context.Background()
	engine, mat, store := newTestEngine(t, scenarioNodes())
	require.NoError(t, mat.Refresh(ctx))
	_, err := engine.ScopedHierarchy(ctx, "Storage")
	require.NoError(t, err)

	require.NoError(t, store.SetParent(ctx, 1, ptr(4)))
	require.Error(t, mat.Refresh(ctx))

	spans := rec.Ended()
	require.Len(t, spans, 3)

	require.Equal(t, "Materializer.Refresh", spans[0].Name())
	require.Contains(t, spans[0].Attributes(), attribute.Int("teams", 4))

	require.Equal(t, "Engine.ScopedHierarchy", spans[1].Name())
	require.Contains(t, spans[1].Attributes(), attribute.String("team.name", "Storage"))

	require.Equal(t, codes.Error, spans[2].Status().Code)
}
