package rpc

import (
	"fmt"
	"sort"
	"sync"
)

// Pseudo-methods served by a connection's subscription manager.
const (
	MethodSubscribe   = "SUB"
	MethodUnsubscribe = "UNSUB"
)

// Lifecycle notifications synthesized by persistent connections.
const (
	MethodConnect    = "onConnect"
	MethodDisconnect = "onDisconnect"
)

// Registry maps method names to handlers. It is filled before mounting and
// frozen once a server starts serving it.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	frozen   bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler. It panics on an empty, reserved or duplicate
// name, a nil handler, or a frozen registry.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.frozen:
		panic(fmt.Sprintf("rpc: Register(%q) on frozen registry", name))
	case name == "":
		panic("rpc: Register with empty method name")
	case name == MethodSubscribe || name == MethodUnsubscribe:
		panic(fmt.Sprintf("rpc: method name %q is reserved", name))
	case h == nil:
		panic(fmt.Sprintf("rpc: nil handler for %q", name))
	}
	if _, dup := r.handlers[name]; dup {
		panic(fmt.Sprintf("rpc: duplicate method %q", name))
	}
	r.handlers[name] = h
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	return h, ok
}

// Names returns the registered method names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Freeze rejects further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
