package tracing

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"messaging/pkg/logging"
)

func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// GinRequestAttributes tags the request span with the request id and any
// surfaces named in the query. It must run after GinMiddleware and the
// request id middleware.
func GinRequestAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := logging.GetRequestID(c.Request.Context()); id != "" {
				span.SetAttributes(AttrRequestID.String(id))
			}
			if surfaces := c.QueryArray("surface"); len(surfaces) > 0 {
				span.SetAttributes(AttrSurfaces.StringSlice(surfaces))
			}
		}
		c.Next()
	}
}
