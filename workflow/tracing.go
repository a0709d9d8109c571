package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/matcon/erp_backend/workflow")

func startSpan(ctx context.Context, name string, itemId int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	if itemId > 0 {
		span.SetAttributes(attribute.Int("inventory.item_id", itemId))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
