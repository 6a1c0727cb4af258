package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetLogFields(ctx))

	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithRequestEventID(ctx, "req-1")
	ctx = WithServiceName(ctx, "messaging-service")

	assert.Equal(t, []interface{}{
		"trace_id", "trace-1",
		"request_event_id", "req-1",
		"service_name", "messaging-service",
	}, GetLogFields(ctx))
	assert.Equal(t, "req-1", GetRequestEventID(ctx))
	assert.Equal(t, "", GetEventID(ctx))
}
