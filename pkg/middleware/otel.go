package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pushmodel-dev/pushmodel/pkg/rpc"
)

// Default tracer name for pushmodel servers.
const defaultTracerName = "pushmodel"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "pushmodel").
	TracerName string

	// TracerProvider overrides the global provider.
	TracerProvider trace.TracerProvider

	// Filter determines which calls to trace.
	// If nil, all calls are traced.
	Filter func(c *rpc.Call) bool

	// AttributeExtractor adds custom attributes for each traced call.
	AttributeExtractor func(c *rpc.Call) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithCallFilter sets a filter function for calls.
func WithCallFilter(filter func(c *rpc.Call) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(c *rpc.Call) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// OpenTelemetry creates middleware that traces every method call.
//
// Each call gets a server span named "rpc <method>" carrying the method,
// param count and whether the call is a notification. The span context is
// installed on the call, so handlers reach it through Call.Context(). Spans
// of calls returning an *rpc.Pending end when the result settles.
//
// Configure the global provider in main() before starting the server:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) rpc.Middleware {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}

	var tracer trace.Tracer
	if config.TracerProvider != nil {
		tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}

	return func(next rpc.Handler) rpc.Handler {
		return func(c *rpc.Call) (result any, err error) {
			if config.Filter != nil && !config.Filter(c) {
				return next(c)
			}

			attrs := []attribute.KeyValue{
				attribute.String("rpc.system", "jsonrpc"),
				attribute.String("rpc.method", c.Method),
				attribute.Int("rpc.param_count", c.Params.Len()),
				attribute.Bool("rpc.notification", c.IsNotification()),
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(c)...)
			}

			ctx, span := tracer.Start(c.Context(), fmt.Sprintf("rpc %s", c.Method),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)

			defer func() {
				if r := recover(); r != nil {
					span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", r))
					span.SetAttributes(attribute.String("rpc.status", "panic"))
					span.End()
					panic(r)
				}
			}()

			result, err = next(c.WithContext(ctx))

			if p, ok := result.(*rpc.Pending); ok && p != nil && err == nil {
				span.AddEvent("pending")
				go func() {
					defer span.End()
					select {
					case <-p.Done():
						_, perr := p.Result()
						endSpan(span, perr)
					case <-ctx.Done():
						span.SetStatus(codes.Error, "abandoned")
					}
				}()
				return result, nil
			}

			endSpan(span, err)
			span.End()
			return result, err
		}
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("rpc.status", Status(err)))
		return
	}
	span.SetStatus(codes.Ok, "")
}

// SpanFromCall returns the span of a traced call, or a no-op span.
//
// Example:
//
//	reg.Register("search", func(c *rpc.Call) (any, error) {
//	    middleware.SpanFromCall(c).SetAttributes(attribute.Int("hits", n))
//	    ...
//	})
func SpanFromCall(c *rpc.Call) trace.Span {
	return trace.SpanFromContext(c.Context())
}

// TraceContext returns the call's context for propagation to outbound
// requests.
func TraceContext(c *rpc.Call) context.Context {
	return c.Context()
}
