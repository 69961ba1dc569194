// Package model holds the shared, observable state served by a pushmodel
// endpoint together with the methods clients may call on it.
package model

import (
	"sync"

	"github.com/pushmodel-dev/pushmodel/pkg/observe"
	"github.com/pushmodel-dev/pushmodel/pkg/rpc"
)

// SessionKey is the root property holding the session of the connection
// whose message is being processed.
const SessionKey = "session"

// Model is a root object and its method registry.
//
// All reads and writes of the tree happen inside Do, which runs one turn at
// a time. Callbacks passed to Schedule during a turn run after it ends and
// before the next turn begins.
type Model struct {
	root    *observe.Object
	methods *rpc.Registry

	mu sync.Mutex

	qmu    sync.Mutex
	inTurn bool
	queue  []func()
}

// New creates a model. A nil root starts empty; a nil registry has no
// methods.
func New(root *observe.Object, methods *rpc.Registry) *Model {
	if root == nil {
		root = observe.NewObject()
	}
	if methods == nil {
		methods = rpc.NewRegistry()
	}
	return &Model{root: root, methods: methods}
}

// Root returns the root object. It must only be used inside Do.
func (m *Model) Root() *observe.Object { return m.root }

// Methods returns the method registry.
func (m *Model) Methods() *rpc.Registry { return m.methods }

// Do runs fn as one turn and then runs the callbacks scheduled during it,
// in scheduling order. The callbacks still hold the model lock, so nothing
// they read can interleave with another turn; they must not block or call
// Do. Do must not be called from inside a turn.
func (m *Model) Do(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginTurn()
	defer func() {
		for _, cb := range m.endTurn() {
			cb()
		}
	}()

	fn()
}

// Schedule runs fn after the current turn. Outside a turn, including from a
// scheduled callback, fn runs on its own goroutine.
func (m *Model) Schedule(fn func()) {
	m.qmu.Lock()
	if m.inTurn {
		m.queue = append(m.queue, fn)
		m.qmu.Unlock()
		return
	}
	m.qmu.Unlock()
	go fn()
}

func (m *Model) beginTurn() {
	m.qmu.Lock()
	m.inTurn = true
	m.qmu.Unlock()
}

func (m *Model) endTurn() []func() {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	m.inTurn = false
	q := m.queue
	m.queue = nil
	return q
}

// Session returns the session installed for the current message.
func (m *Model) Session() any {
	return m.root.Get(SessionKey)
}

// SessionObject returns the current session if it is an *observe.Object.
func (m *Model) SessionObject() *observe.Object {
	return m.root.Object(SessionKey)
}

// SetSession installs v as the current session.
func (m *Model) SetSession(v any) {
	m.root.Set(SessionKey, v)
}

// ClearSession empties the session slot.
func (m *Model) ClearSession() {
	m.root.Set(SessionKey, nil)
}
