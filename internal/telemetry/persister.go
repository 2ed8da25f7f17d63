package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/spectree/spectree/internal/reorder"
)

const persistScopeName = "github.com/spectree/spectree/persist"

// InstrumentedPersister wraps a reorder.Persister with OTel tracing and
// metrics. Every position write gets a span and is counted in
// spectree.persist.* metrics.
type InstrumentedPersister struct {
	inner  reorder.Persister
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapPersister returns p decorated with OTel instrumentation.
// When telemetry is disabled, p is returned as-is.
func WrapPersister(p reorder.Persister) reorder.Persister {
	if !Enabled() || p == nil {
		return p
	}
	return newInstrumentedPersister(p, Meter(persistScopeName), Tracer(persistScopeName))
}

func newInstrumentedPersister(p reorder.Persister, m metric.Meter, tr trace.Tracer) *InstrumentedPersister {
	ops, _ := m.Int64Counter("spectree.persist.operations",
		metric.WithDescription("Total position writes sent to the CMS"),
	)
	dur, _ := m.Float64Histogram("spectree.persist.duration",
		metric.WithDescription("Position write duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("spectree.persist.errors",
		metric.WithDescription("Total failed position writes"),
	)
	return &InstrumentedPersister{inner: p, tracer: tr, ops: ops, dur: dur, errs: errs}
}

// UpdatePosition implements reorder.Persister.
func (p *InstrumentedPersister) UpdatePosition(ctx context.Context, u reorder.PositionUpdate) error {
	attrs := []attribute.KeyValue{
		attribute.String("spectree.item.type", string(u.ItemType)),
		attribute.Bool("spectree.reparent", u.Reparent),
	}
	ctx, span := p.tracer.Start(ctx, "persist.UpdatePosition",
		trace.WithAttributes(append(attrs,
			attribute.String("spectree.item.document_id", u.DocumentID),
			attribute.Int("spectree.position", u.Position),
		)...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()
	p.ops.Add(ctx, 1, metric.WithAttributes(attrs...))

	start := time.Now()
	err := p.inner.UpdatePosition(ctx, u)
	p.dur.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	return err
}
