// Package middleware provides call instrumentation for pushmodel servers.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus metrics middleware
//   - A Prometheus collector for server transport counters
//
// Middleware wraps every resolved method, SUB and UNSUB included, on both
// the WebSocket and the one-shot HTTP transport:
//
//	cfg := server.DefaultServerConfig().WithMiddleware(
//	    middleware.OpenTelemetry(middleware.WithTracerName("todo")),
//	    middleware.Prometheus(),
//	)
//	srv := server.New(m, cfg)
//	prometheus.MustRegister(middleware.NewServerCollector(srv))
//
// # Context Propagation
//
// The tracing middleware installs the span context on the call, so
// handlers inherit the trace through Call.Context():
//
//	func lookup(c *rpc.Call) (any, error) {
//	    req, _ := http.NewRequestWithContext(c.Context(), "GET", url, nil)
//	    ...
//	}
package middleware
