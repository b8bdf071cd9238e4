package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpansReachExporter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, InitWithExporter("taskstatus", "test", exporter))
	t.Cleanup(func() { require.NoError(t, Shutdown(context.Background())) })
	// later calls are no-ops
	require.NoError(t, InitWithExporter("other", "test", tracetest.NewInMemoryExporter()))

	ctx, parent := StartSpan(context.Background(), "parent")
	_, child := StartSpan(ctx, "child")
	child.WithAttributes(map[string]string{"task.id": "t-1"})
	child.AddEvent("visited", map[string]string{"kind": "deadline"})
	EndSpan(child, errors.New("boom"))
	EndSpan(parent, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "child", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	require.Len(t, spans[0].Events, 2) // RecordError adds its own event
	assert.Equal(t, "parent", spans[1].Name)
	assert.Equal(t, codes.Ok, spans[1].Status.Code)
}

func TestNilSpanIsSafe(t *testing.T) {
	var s *Span
	assert.Nil(t, s.WithAttributes(map[string]string{"a": "b"}))
	s.SetStatus(nil)
	s.AddEvent("x", nil)
	EndSpan(nil, nil)
}

func TestInitWritesFileUntilShutdown(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")

	require.NoError(t, Init("taskstatus", "test", first))
	// already installed: no provider swap, and no second file
	require.NoError(t, Init("taskstatus", "test", second))
	assert.NoFileExists(t, second)

	_, span := StartSpan(context.Background(), "written")
	EndSpan(span, nil)

	require.NoError(t, Shutdown(context.Background()))
	require.NoError(t, Shutdown(context.Background()))

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"written"`)

	// after shutdown spans go nowhere, and Init may install again
	_, span = StartSpan(context.Background(), "dropped")
	EndSpan(span, nil)
	data, err = os.ReadFile(first)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")

	require.NoError(t, Init("taskstatus", "test", second))
	assert.FileExists(t, second)
	require.NoError(t, Shutdown(context.Background()))
}

func TestInitBadPath(t *testing.T) {
	err := Init("taskstatus", "test", filepath.Join(t.TempDir(), "missing", "out.json"))
	assert.Error(t, err)
	// nothing was installed, so a later init still works
	require.NoError(t, InitWithExporter("taskstatus", "test", tracetest.NewInMemoryExporter()))
	require.NoError(t, Shutdown(context.Background()))
}
