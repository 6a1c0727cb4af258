package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"messaging/pkg/models"
)

const (
	AttrEventID        = attribute.Key("messaging.event.id")
	AttrEventName      = attribute.Key("messaging.event.name")
	AttrEventType      = attribute.Key("messaging.event.type")
	AttrEventSource    = attribute.Key("messaging.event.source")
	AttrRequestEventID = attribute.Key("messaging.request_event.id")
	AttrRequestID      = attribute.Key("messaging.request.id")
	AttrSurfaces       = attribute.Key("messaging.surfaces")
)

// EventAttributes describes an event for a span. Empty fields are omitted.
func EventAttributes(event *models.Event) []attribute.KeyValue {
	if event == nil {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, 5)
	for _, kv := range []struct {
		key   attribute.Key
		value string
	}{
		{AttrEventID, event.ID},
		{AttrEventName, event.Name},
		{AttrEventType, event.Type},
		{AttrEventSource, event.Source},
		{AttrRequestEventID, event.RequestEventID},
	} {
		if kv.value != "" {
			attrs = append(attrs, kv.key.String(kv.value))
		}
	}
	return attrs
}

// AnnotateEvent adds the event attributes to the span in ctx.
func AnnotateEvent(ctx context.Context, event *models.Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(EventAttributes(event)...)
}

// AnnotateSurfaces records the surfaces an operation works on.
func AnnotateSurfaces(ctx context.Context, surfaces []models.Surface) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || len(surfaces) == 0 {
		return
	}
	span.SetAttributes(AttrSurfaces.StringSlice(models.SurfaceURIs(surfaces)))
}
