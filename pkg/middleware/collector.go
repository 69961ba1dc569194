package middleware

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pushmodel-dev/pushmodel/pkg/server"
)

// ServerCollector exports a server's transport counters to Prometheus.
//
// Example:
//
//	prometheus.MustRegister(middleware.NewServerCollector(srv))
type ServerCollector struct {
	srv *server.Server

	activeConns   *prometheus.Desc
	connsTotal    *prometheus.Desc
	messagesTotal *prometheus.Desc
	responses     *prometheus.Desc
	notifications *prometheus.Desc
	patches       *prometheus.Desc
	bytes         *prometheus.Desc
	errors        *prometheus.Desc
	dropped       *prometheus.Desc
}

// NewServerCollector creates a collector for srv. Options other than
// namespace, subsystem and const labels are ignored.
func NewServerCollector(srv *server.Server, opts ...MetricsOption) *ServerCollector {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(config.Namespace, config.Subsystem, name),
			help, labels, config.ConstLabels)
	}

	return &ServerCollector{
		srv:           srv,
		activeConns:   desc("active_connections", "Number of open WebSocket connections"),
		connsTotal:    desc("connections_total", "Total WebSocket connections accepted"),
		messagesTotal: desc("messages_received_total", "Total inbound messages by transport", "transport"),
		responses:     desc("responses_sent_total", "Total response envelopes sent"),
		notifications: desc("notifications_sent_total", "Total PUB notifications sent"),
		patches:       desc("patches_sent_total", "Total patches sent in PUB notifications"),
		bytes:         desc("bytes_total", "Total payload bytes by direction", "direction"),
		errors:        desc("io_errors_total", "Total socket errors by operation", "op"),
		dropped:       desc("dropped_frames_total", "Total messages refused by a full outbound queue"),
	}
}

// Describe implements prometheus.Collector.
func (c *ServerCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.activeConns, c.connsTotal, c.messagesTotal, c.responses,
		c.notifications, c.patches, c.bytes, c.errors, c.dropped,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *ServerCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.srv.Metrics()
	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	ch <- prometheus.MustNewConstMetric(c.activeConns, prometheus.GaugeValue, float64(m.ActiveConnections))
	counter(c.connsTotal, m.TotalConnections)
	counter(c.messagesTotal, m.MessagesReceived, "websocket")
	counter(c.messagesTotal, m.HTTPRequests, "http")
	counter(c.responses, m.ResponsesSent)
	counter(c.notifications, m.NotificationsSent)
	counter(c.patches, m.PatchesSent)
	counter(c.bytes, m.BytesReceived, "in")
	counter(c.bytes, m.BytesSent, "out")
	counter(c.errors, m.ReadErrors, "read")
	counter(c.errors, m.WriteErrors, "write")
	counter(c.dropped, m.FramesDropped)
}
