package middleware

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
	"github.com/pushmodel-dev/pushmodel/pkg/rpc"
)

func newRecorder() (*tracetest.SpanRecorder, trace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	return sr, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
}

func attr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOpenTelemetry_SpanPerCall(t *testing.T) {
	sr, tp := newRecorder()
	mw := OpenTelemetry(WithTracerProvider(tp),
		WithAttributeExtractor(func(*rpc.Call) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}))

	var inner trace.SpanContext
	h := mw(func(c *rpc.Call) (any, error) {
		inner = SpanFromCall(c).SpanContext()
		return nil, nil
	})
	h(call("addItem"))

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "rpc addItem" {
		t.Errorf("Name() = %q", span.Name())
	}
	if span.SpanKind() != trace.SpanKindServer {
		t.Errorf("SpanKind() = %v", span.SpanKind())
	}
	if span.Status().Code != codes.Ok {
		t.Errorf("Status() = %v, want Ok", span.Status())
	}
	if v, ok := attr(span, "rpc.method"); !ok || v.AsString() != "addItem" {
		t.Errorf("rpc.method = %v", v)
	}
	if v, ok := attr(span, "test.attr"); !ok || v.AsString() != "ok" {
		t.Errorf("test.attr = %v", v)
	}
	if inner.SpanID() != span.SpanContext().SpanID() {
		t.Error("handler did not see the call span")
	}
}

func TestOpenTelemetry_ErrorStatus(t *testing.T) {
	sr, tp := newRecorder()
	h := OpenTelemetry(WithTracerProvider(tp))(func(*rpc.Call) (any, error) {
		return nil, protocol.ErrInvalidParams("bad")
	})
	h(call("setText"))

	span := sr.Ended()[0]
	if span.Status().Code != codes.Error {
		t.Errorf("Status() = %v, want Error", span.Status())
	}
	if v, _ := attr(span, "rpc.status"); v.AsString() != "invalid_params" {
		t.Errorf("rpc.status = %v", v)
	}
	if len(span.Events()) == 0 {
		t.Error("error not recorded as an event")
	}
}

func TestOpenTelemetry_PendingEndsOnSettle(t *testing.T) {
	sr, tp := newRecorder()
	p := rpc.NewPending()
	h := OpenTelemetry(WithTracerProvider(tp))(func(*rpc.Call) (any, error) { return p, nil })
	h(call("wait"))

	if n := len(sr.Ended()); n != 0 {
		t.Fatalf("span ended before settle (%d spans)", n)
	}
	p.Resolve(42)

	deadline := time.Now().Add(time.Second)
	for len(sr.Ended()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := len(sr.Ended()); n != 1 {
		t.Fatalf("got %d spans after settle, want 1", n)
	}
}

func TestOpenTelemetry_PanicEndsSpan(t *testing.T) {
	sr, tp := newRecorder()
	h := OpenTelemetry(WithTracerProvider(tp))(func(*rpc.Call) (any, error) {
		panic("boom")
	})

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Errorf("recovered %v, want the handler's panic", r)
			}
		}()
		h(call("explode"))
	}()

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d ended spans, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("Status() = %v, want Error", spans[0].Status())
	}
	if v, ok := attr(spans[0], "rpc.status"); !ok || v.AsString() != "panic" {
		t.Errorf("rpc.status = %v", v)
	}
}

func TestOpenTelemetry_FilterSkipsTracing(t *testing.T) {
	sr, tp := newRecorder()
	h := OpenTelemetry(WithTracerProvider(tp),
		WithCallFilter(func(c *rpc.Call) bool { return c.Method != "ping" }),
	)(func(c *rpc.Call) (any, error) {
		if SpanFromCall(c).SpanContext().IsValid() {
			t.Error("span present for filtered call")
		}
		return nil, nil
	})
	h(call("ping"))

	if n := len(sr.Ended()); n != 0 {
		t.Errorf("got %d spans, want 0", n)
	}
	if TraceContext(call("ping")) != context.Background() {
		t.Error("TraceContext() of an untraced call is not its own context")
	}
}
