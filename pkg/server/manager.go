package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ConnManager tracks the live WebSocket connections of a server.
type ConnManager struct {
	conns map[string]*Conn
	mu    sync.RWMutex

	maxConns int

	// Metrics
	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64
	peakConns    int

	// Callbacks
	onConnCreate func(*Conn)
	onConnClose  func(*Conn)

	closed bool
	logger *slog.Logger
}

// NewConnManager creates a manager admitting at most maxConns connections.
// Zero means no limit.
func NewConnManager(maxConns int, logger *slog.Logger) *ConnManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnManager{
		conns:    make(map[string]*Conn),
		maxConns: maxConns,
		logger:   logger.With("component", "conn_manager"),
	}
}

// Add registers c. The connection removes itself when it closes.
func (cm *ConnManager) Add(c *Conn) error {
	c.onClose = cm.remove

	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return ErrServerClosed
	}
	if cm.maxConns > 0 && len(cm.conns) >= cm.maxConns {
		cm.mu.Unlock()
		return ErrMaxConnectionsReached
	}
	cm.conns[c.ID] = c
	cm.totalCreated.Add(1)
	if len(cm.conns) > cm.peakConns {
		cm.peakConns = len(cm.conns)
	}
	active := len(cm.conns)
	cm.mu.Unlock()

	if cm.onConnCreate != nil {
		cm.onConnCreate(c)
	}
	cm.logger.Info("connection opened",
		"conn_id", c.ID,
		"remote_addr", c.RemoteAddr,
		"active_connections", active)
	return nil
}

func (cm *ConnManager) remove(c *Conn) {
	cm.mu.Lock()
	_, ok := cm.conns[c.ID]
	delete(cm.conns, c.ID)
	cm.mu.Unlock()

	if !ok {
		return
	}
	cm.totalClosed.Add(1)
	if cm.onConnClose != nil {
		cm.onConnClose(c)
	}
}

// Full reports whether the connection limit has been reached.
func (cm *ConnManager) Full() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.maxConns > 0 && len(cm.conns) >= cm.maxConns
}

// Get returns the connection with the given ID, or nil.
func (cm *ConnManager) Get(id string) *Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conns[id]
}

// Close closes the connection with the given ID.
func (cm *ConnManager) Close(id string) error {
	c := cm.Get(id)
	if c == nil {
		return NewConnError(id, "close", ErrConnNotFound)
	}
	c.Close()
	return nil
}

// Count returns the number of live connections.
func (cm *ConnManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns)
}

// ForEach calls fn for every live connection until fn returns false.
// fn runs without the manager lock held.
func (cm *ConnManager) ForEach(fn func(*Conn) bool) {
	for _, c := range cm.snapshot() {
		if !fn(c) {
			return
		}
	}
}

func (cm *ConnManager) snapshot() []*Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	conns := make([]*Conn, 0, len(cm.conns))
	for _, c := range cm.conns {
		conns = append(conns, c)
	}
	return conns
}

// SetOnConnCreate sets a callback run after a connection is registered.
func (cm *ConnManager) SetOnConnCreate(fn func(*Conn)) { cm.onConnCreate = fn }

// SetOnConnClose sets a callback run after a connection is removed.
func (cm *ConnManager) SetOnConnClose(fn func(*Conn)) { cm.onConnClose = fn }

// Shutdown stops admitting connections and closes every live one
// concurrently. It returns ctx.Err() if ctx ends first.
func (cm *ConnManager) Shutdown(ctx context.Context) error {
	cm.mu.Lock()
	cm.closed = true
	cm.mu.Unlock()

	conns := cm.snapshot()
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			c.Close()
		}(c)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cm.logger.Info("connections closed", "count", len(conns))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns aggregated connection statistics.
func (cm *ConnManager) Stats() ManagerStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return ManagerStats{
		Active:       len(cm.conns),
		TotalCreated: cm.totalCreated.Load(),
		TotalClosed:  cm.totalClosed.Load(),
		Peak:         cm.peakConns,
	}
}

// ManagerStats contains aggregated connection statistics.
type ManagerStats struct {
	Active       int
	TotalCreated uint64
	TotalClosed  uint64
	Peak         int
}
