package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/kitchen/inventory/internal/infrastructure/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader echoes the trace ID so a client report can be matched to a trace
const TraceIDHeader = "X-Trace-ID"

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName    string
	Enabled        bool
	TracerProvider trace.TracerProvider // nil uses the global provider
}

// Tracing starts a server span per request with otelgin. Span names follow
// the route pattern, e.g. "POST /api/v1/sections/:id/consume".
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	var opts []otelgin.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}
	return otelgin.Middleware(cfg.ServiceName, opts...)
}

// TraceAttributes tags the request span with the request ID and the
// authenticated performer. Place it after Tracing and JWT authentication.
func TraceAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span := trace.SpanFromContext(ctx)
		if span.IsRecording() {
			if requestID := GetRequestID(c); requestID != "" {
				span.SetAttributes(attribute.String("request_id", requestID))
			}
			if performer := GetPerformer(c); performer != "" {
				span.SetAttributes(attribute.String("performer", performer))
			}
		}
		if traceID := telemetry.GetTraceID(ctx); traceID != "" {
			c.Writer.Header().Set(TraceIDHeader, traceID)
		}
		c.Next()
	}
}
