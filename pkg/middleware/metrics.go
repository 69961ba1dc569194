package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
	"github.com/pushmodel-dev/pushmodel/pkg/rpc"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "pushmodel").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for call duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "pushmodel",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

type callMetrics struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	pendingCalls prometheus.Gauge
}

// metricsKey identifies one set of collectors. Registering the same
// metric names twice on a registry panics, so middleware sharing a registry,
// namespace and subsystem share collectors; their const labels and buckets
// are those of the first.
type metricsKey struct {
	registry  prometheus.Registerer
	namespace string
	subsystem string
}

var (
	registered   = make(map[metricsKey]*callMetrics)
	registeredMu sync.Mutex
)

func metricsFor(config MetricsConfig) *callMetrics {
	key := metricsKey{config.Registry, config.Namespace, config.Subsystem}
	registeredMu.Lock()
	defer registeredMu.Unlock()
	if m, ok := registered[key]; ok {
		return m
	}

	factory := promauto.With(config.Registry)
	m := &callMetrics{
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "calls_total",
			Help:        "Total number of method calls by method and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "status"}),

		callDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "call_duration_seconds",
			Help:        "Method call duration in seconds, until the result settles",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"method"}),

		pendingCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pending_calls",
			Help:        "Number of calls waiting for a deferred result",
			ConstLabels: config.ConstLabels,
		}),
	}
	registered[key] = m
	return m
}

// Prometheus creates middleware that counts and times every method call.
//
// Metrics collected:
//   - pushmodel_calls_total: Counter of calls by method and status
//   - pushmodel_call_duration_seconds: Histogram of call duration
//   - pushmodel_pending_calls: Gauge of calls waiting on a deferred result
//
// A call returning an *rpc.Pending is recorded when it settles.
//
// Example:
//
//	cfg := server.DefaultServerConfig().WithMiddleware(
//	    middleware.Prometheus(middleware.WithNamespace("todo")),
//	)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) rpc.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	m := metricsFor(config)

	return func(next rpc.Handler) rpc.Handler {
		return func(c *rpc.Call) (result any, err error) {
			start := time.Now()
			record := func(status string) {
				m.callDuration.WithLabelValues(c.Method).Observe(time.Since(start).Seconds())
				m.callsTotal.WithLabelValues(c.Method, status).Inc()
			}

			defer func() {
				if r := recover(); r != nil {
					record("panic")
					panic(r)
				}
			}()

			result, err = next(c)

			if p, ok := result.(*rpc.Pending); ok && p != nil && err == nil {
				m.pendingCalls.Inc()
				go func(ctx context.Context) {
					defer m.pendingCalls.Dec()
					select {
					case <-p.Done():
						_, perr := p.Result()
						record(Status(perr))
					case <-ctx.Done():
						record("abandoned")
					}
				}(c.Context())
				return result, err
			}

			record(Status(err))
			return result, err
		}
	}
}

// Status maps a call error to a low-cardinality label value.
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	var perr *protocol.Error
	if !errors.As(err, &perr) {
		return "internal"
	}
	switch perr.Code {
	case protocol.CodeApplication:
		return "app_error"
	case protocol.CodeInvalidParams:
		return "invalid_params"
	case protocol.CodeInvalidRequest:
		return "invalid_request"
	case protocol.CodeMethodNotFound:
		return "not_found"
	default:
		return "internal"
	}
}
