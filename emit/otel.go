package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each Event into an immediately-ended OpenTelemetry
// span, so a collection run shows up as a trace: one span per fetch,
// filter, dedupe, store, and enrich step.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter builds an OTelEmitter from a tracer obtained via
// otel.Tracer("feedspine").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) Emit(event Event) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, string(event.Stage)+":"+event.Msg)
	defer span.End()
	o.annotate(span, event)
}

func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, string(event.Stage)+":"+event.Msg)
		o.annotate(span, event)
		span.End()
	}
	return nil
}

func (o *OTelEmitter) annotate(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("feedspine.feed_name", event.FeedName),
		attribute.String("feedspine.run_id", event.RunID),
		attribute.String("feedspine.stage", string(event.Stage)),
	)
	for k, v := range event.Meta {
		span.SetAttributes(attribute.String("feedspine.meta."+k, fmt.Sprintf("%v", v)))
	}
	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

// Flush is a no-op: span export is owned by the TracerProvider's batch
// span processor. Call its ForceFlush directly before shutdown.
func (o *OTelEmitter) Flush(context.Context) error { return nil }
