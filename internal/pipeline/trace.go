package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taxiprep/internal/schema"
	"taxiprep/internal/transformer"
)

// tracedStage runs a stage inside its own span.
type tracedStage struct {
	transformer.Stage
	tracer trace.Tracer
}

func (s tracedStage) Apply(ctx context.Context, b *schema.Batch, rep *transformer.Report) error {
	ctx, span := s.tracer.Start(ctx, "stage."+s.Name(), trace.WithAttributes(attribute.Int("rows.in", b.Len())))
	defer span.End()

	err := s.Stage.Apply(ctx, b, rep)
	span.SetAttributes(attribute.Int("rows.out", b.Len()))
	for _, reason := range rep.Reasons() {
		span.SetAttributes(attribute.Int("dropped."+reason, rep.Dropped[reason]))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func traced(c transformer.Chain, tracer trace.Tracer) transformer.Chain {
	out := make(transformer.Chain, len(c))
	for i, s := range c {
		out[i] = tracedStage{Stage: s, tracer: tracer}
	}
	return out
}
