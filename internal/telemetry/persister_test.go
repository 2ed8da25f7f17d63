package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/spectree/spectree/internal/reorder"
	"github.com/spectree/spectree/internal/types"
)

type stubPersister struct{ err error }

func (s stubPersister) UpdatePosition(context.Context, reorder.PositionUpdate) error { return s.err }

func TestWrapPersisterDisabled(t *testing.T) {
	t.Setenv("SPECTREE_OTEL_ENABLED", "")
	inner := stubPersister{}
	assert.Equal(t, reorder.Persister(inner), WrapPersister(inner))
}

func TestInstrumentedPersister(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	p := newInstrumentedPersister(stubPersister{err: errors.New("API Error")}, mp.Meter("test"), tp.Tracer("test"))
	err := p.UpdatePosition(context.Background(), reorder.PositionUpdate{ItemType: types.TypeFeature, DocumentID: "doc-1", Position: 2})
	require.EqualError(t, err, "API Error")

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "persist.UpdatePosition", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["spectree.persist.operations"])
	assert.True(t, names["spectree.persist.errors"])
	assert.True(t, names["spectree.persist.duration"])
}
