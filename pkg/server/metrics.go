package server

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// ServerMetrics aggregates metrics across the server.
type ServerMetrics struct {
	// Connections
	ActiveConnections int64
	TotalConnections  int64
	ClosedConnections int64
	PeakConnections   int64

	// Messages
	MessagesReceived  int64
	ResponsesSent     int64
	HTTPRequests      int64
	NotificationsSent int64
	FramesDropped     int64

	// Patches
	PatchesSent int64
	PatchBytes  int64

	// Network
	BytesSent     int64
	BytesReceived int64

	// Errors
	WriteErrors int64
	ReadErrors  int64

	// Latency (microseconds)
	MessageLatencyP50 int64
	MessageLatencyP99 int64

	CollectedAt time.Time
}

// Metrics returns a snapshot of the server's counters and connection stats.
func (s *Server) Metrics() *ServerMetrics {
	metrics := s.metrics.Snapshot()
	stats := s.conns.Stats()
	metrics.ActiveConnections = int64(stats.Active)
	metrics.TotalConnections = int64(stats.TotalCreated)
	metrics.ClosedConnections = int64(stats.TotalClosed)
	metrics.PeakConnections = int64(stats.Peak)
	return metrics
}

const maxLatencySamples = 1000

// MetricsCollector counts traffic for all connections of a server.
type MetricsCollector struct {
	messagesReceived  atomic.Int64
	responsesSent     atomic.Int64
	httpRequests      atomic.Int64
	notificationsSent atomic.Int64
	framesDropped     atomic.Int64
	patchesSent       atomic.Int64
	patchBytes        atomic.Int64
	bytesSent         atomic.Int64
	bytesReceived     atomic.Int64
	writeErrors       atomic.Int64
	readErrors        atomic.Int64

	latencyMu sync.Mutex
	latencies []int64
}

// NewMetricsCollector creates a new MetricsCollector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		latencies: make([]int64, 0, maxLatencySamples),
	}
}

// RecordMessageReceived records one inbound WebSocket message of n bytes.
func (m *MetricsCollector) RecordMessageReceived(n int) {
	m.messagesReceived.Add(1)
	m.bytesReceived.Add(int64(n))
}

// RecordHTTPRequest records one one-shot HTTP request of n bytes.
func (m *MetricsCollector) RecordHTTPRequest(n int) {
	m.httpRequests.Add(1)
	m.bytesReceived.Add(int64(n))
}

// RecordResponsesSent records count responses handed to the writer.
func (m *MetricsCollector) RecordResponsesSent(count int) {
	m.responsesSent.Add(int64(count))
}

// RecordPatchesSent records one PUB notification.
func (m *MetricsCollector) RecordPatchesSent(count int, bytes int) {
	m.notificationsSent.Add(1)
	m.patchesSent.Add(int64(count))
	m.patchBytes.Add(int64(bytes))
}

// RecordFrameDropped records a message refused by a full outbound queue.
func (m *MetricsCollector) RecordFrameDropped() {
	m.framesDropped.Add(1)
}

// RecordBytesSent records bytes written to a socket.
func (m *MetricsCollector) RecordBytesSent(n int) {
	m.bytesSent.Add(int64(n))
}

// RecordWriteError records a write error.
func (m *MetricsCollector) RecordWriteError() {
	m.writeErrors.Add(1)
}

// RecordReadError records a read error.
func (m *MetricsCollector) RecordReadError() {
	m.readErrors.Add(1)
}

// RecordMessageLatency records how long one message turn took, in
// microseconds.
func (m *MetricsCollector) RecordMessageLatency(latencyUs int64) {
	m.latencyMu.Lock()
	defer m.latencyMu.Unlock()

	// Keep only recent samples
	if len(m.latencies) >= maxLatencySamples {
		m.latencies = append(m.latencies[:0], m.latencies[maxLatencySamples/2:]...)
	}
	m.latencies = append(m.latencies, latencyUs)
}

// Snapshot returns current metrics.
func (m *MetricsCollector) Snapshot() *ServerMetrics {
	metrics := &ServerMetrics{
		MessagesReceived:  m.messagesReceived.Load(),
		ResponsesSent:     m.responsesSent.Load(),
		HTTPRequests:      m.httpRequests.Load(),
		NotificationsSent: m.notificationsSent.Load(),
		FramesDropped:     m.framesDropped.Load(),
		PatchesSent:       m.patchesSent.Load(),
		PatchBytes:        m.patchBytes.Load(),
		BytesSent:         m.bytesSent.Load(),
		BytesReceived:     m.bytesReceived.Load(),
		WriteErrors:       m.writeErrors.Load(),
		ReadErrors:        m.readErrors.Load(),
		CollectedAt:       time.Now(),
	}
	metrics.MessageLatencyP50, metrics.MessageLatencyP99 = m.latencyPercentiles()
	return metrics
}

func (m *MetricsCollector) latencyPercentiles() (p50, p99 int64) {
	m.latencyMu.Lock()
	sorted := slices.Clone(m.latencies)
	m.latencyMu.Unlock()

	n := len(sorted)
	if n == 0 {
		return 0, 0
	}
	slices.Sort(sorted)
	return sorted[n/2], sorted[(n*99)/100]
}

// Reset resets all counters.
func (m *MetricsCollector) Reset() {
	for _, c := range []*atomic.Int64{
		&m.messagesReceived, &m.responsesSent, &m.httpRequests,
		&m.notificationsSent, &m.framesDropped, &m.patchesSent,
		&m.patchBytes, &m.bytesSent, &m.bytesReceived,
		&m.writeErrors, &m.readErrors,
	} {
		c.Store(0)
	}

	m.latencyMu.Lock()
	m.latencies = m.latencies[:0]
	m.latencyMu.Unlock()
}
