package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey        = "trace_id"
	RequestEventIDKey = "request_event_id"
	EventIDKey        = "event_id"
	ServiceNameKey    = "service_name"
	RequestIDKey      = "request_id"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKey(TraceIDKey), traceID)
}

// WithRequestEventID tags the context with the id of the personalization
// request a response belongs to.
func WithRequestEventID(ctx context.Context, requestEventID string) context.Context {
	return context.WithValue(ctx, contextKey(RequestEventIDKey), requestEventID)
}

func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, contextKey(EventIDKey), eventID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, contextKey(ServiceNameKey), serviceName)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey(RequestIDKey), requestID)
}

func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func GetRequestEventID(ctx context.Context) string {
	return stringValue(ctx, RequestEventIDKey)
}

func GetEventID(ctx context.Context) string {
	return stringValue(ctx, EventIDKey)
}

func GetServiceName(ctx context.Context) string {
	return stringValue(ctx, ServiceNameKey)
}

func stringValue(ctx context.Context, key string) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(contextKey(key)).(string); ok {
		return v
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 10)

	for _, key := range []string{TraceIDKey, RequestIDKey, RequestEventIDKey, EventIDKey, ServiceNameKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}

	return fields
}
