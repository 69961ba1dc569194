package rpc

import (
	"sync"

	"github.com/pushmodel-dev/pushmodel/pkg/observe"
)

// Pending is a result that a handler completes later. Only the first
// Resolve or Reject has an effect.
type Pending struct {
	once   sync.Once
	done   chan struct{}
	result any
	err    error
}

// NewPending returns an unsettled future.
func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Resolve settles the future with a result. Observable values are exported
// at this point, so callers must resolve from inside a model turn.
func (p *Pending) Resolve(v any) {
	p.once.Do(func() {
		p.result = observe.Export(v)
		close(p.done)
	})
}

// Reject settles the future with an error. A *protocol.Error is reported
// as is, anything else as an internal error.
func (p *Pending) Reject(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed once the future settles.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Result returns the settled value. It must only be called after Done is closed.
func (p *Pending) Result() (any, error) {
	return p.result, p.err
}
