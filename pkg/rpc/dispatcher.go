package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/pushmodel-dev/pushmodel/pkg/observe"
	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
)

// Subscriptions is the subscription manager a persistent connection attaches
// to its dispatcher to serve SUB and UNSUB.
type Subscriptions interface {
	Subscribe(pointer string) error
	Unsubscribe(pointer string) error
}

// ReplyFunc receives the responses of one inbound message. It is called at
// most once per message, possibly from another goroutine when a method
// settles asynchronously.
type ReplyFunc func(responses []*protocol.Response)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSubscriptions enables the SUB and UNSUB pseudo-methods.
func WithSubscriptions(s Subscriptions) Option {
	return func(d *Dispatcher) { d.subs = s }
}

// WithMiddleware wraps every resolved method, SUB and UNSUB included.
func WithMiddleware(mw ...Middleware) Option {
	return func(d *Dispatcher) { d.middleware = append(d.middleware, mw...) }
}

// WithLogger sets the logger used for handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// Dispatcher resolves inbound envelopes to handlers and correlates their
// outcomes into one reply per message.
//
// Dispatch runs handlers synchronously on the calling goroutine. Callers
// serialize Dispatch with all other model access; pkg/model's Do does this.
type Dispatcher struct {
	methods    *Registry
	subs       Subscriptions
	middleware []Middleware
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher over methods.
func NewDispatcher(methods *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{methods: methods}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Dispatch handles one inbound message and returns how many responses it
// will produce. reply is called once with all of them when the last one
// settles; it is never called when the count is zero. Futures still pending
// when ctx is done are abandoned and their message gets no reply.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte, reply ReplyFunc) int {
	parsed, perr := protocol.Parse(data)
	if perr != nil {
		d.logger.Debug("parse error", "bytes", len(data))
		reply([]*protocol.Response{{Error: perr}})
		return 1
	}

	acc := &accumulator{expected: parsed.Expected(), reply: reply}
	for _, req := range parsed.Requests {
		d.handle(ctx, req, acc)
	}
	return acc.expected
}

// Notify runs a server-synthesized notification such as onConnect.
func (d *Dispatcher) Notify(ctx context.Context, method string) {
	d.handle(ctx, &protocol.Request{JSONRPC: protocol.Version, Method: method}, &accumulator{})
}

func (d *Dispatcher) handle(ctx context.Context, req *protocol.Request, acc *accumulator) {
	if err := req.Validate(); err != nil {
		acc.settle(req.ID, nil, err)
		return
	}

	h, ok := d.resolve(req.Method)
	if !ok {
		acc.settle(req.ID, nil, protocol.ErrMethodNotFound())
		return
	}

	params, perr := DecodeParams(req.Params)
	if perr != nil {
		acc.settle(req.ID, nil, perr)
		return
	}

	call := NewCall(ctx, req.Method, params)
	call.ID = req.ID
	result, err := d.invoke(Chain(h, d.middleware...), call)
	d.complete(ctx, call, result, err, acc)
}

func (d *Dispatcher) resolve(method string) (Handler, bool) {
	switch method {
	case MethodSubscribe:
		if d.subs == nil {
			return nil, false
		}
		return pointerMethod(d.subs.Subscribe), true
	case MethodUnsubscribe:
		if d.subs == nil {
			return nil, false
		}
		return pointerMethod(d.subs.Unsubscribe), true
	}
	if d.methods == nil {
		return nil, false
	}
	return d.methods.Lookup(method)
}

// invoke runs h with panic recovery.
func (d *Dispatcher) invoke(h Handler, call *Call) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic",
				"panic", r,
				"method", call.Method,
				"stack", string(debug.Stack()))
			result, err = nil, protocol.ErrInternal()
		}
	}()
	return h(call)
}

// complete settles a call's outcome, waiting for futures in a goroutine.
func (d *Dispatcher) complete(ctx context.Context, call *Call, result any, err error, acc *accumulator) {
	if err != nil {
		acc.settle(call.ID, nil, d.wireError(call, err))
		return
	}
	p, ok := result.(*Pending)
	if !ok {
		acc.settle(call.ID, observe.Export(result), nil)
		return
	}
	if p == nil {
		acc.settle(call.ID, nil, nil)
		return
	}
	go func() {
		select {
		case <-p.Done():
		case <-ctx.Done():
			d.logger.Debug("pending call abandoned", "method", call.Method, "error", ctx.Err())
			return
		}
		result, err := p.Result()
		d.complete(ctx, call, result, err, acc)
	}()
}

func (d *Dispatcher) wireError(call *Call, err error) *protocol.Error {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr
	}
	d.logger.Error("handler error", "method", call.Method, "error", err)
	return protocol.ErrInternal()
}

// pointerMethod adapts a subscription operation to a handler, validating the
// pointer argument.
func pointerMethod(fn func(string) error) Handler {
	return func(c *Call) (any, error) {
		if c.Params.IsNull(0) {
			return nil, protocol.ErrInvalidParams("Missing param 'pointer'")
		}
		var pointer string
		if err := json.Unmarshal(c.Params[0], &pointer); err != nil {
			return nil, protocol.ErrInvalidParams("Pointer must be a string")
		}
		return nil, fn(pointer)
	}
}

// accumulator collects the responses of one message.
type accumulator struct {
	mu        sync.Mutex
	expected  int
	responses []*protocol.Response
	reply     ReplyFunc
}

func (a *accumulator) settle(id json.RawMessage, result any, err *protocol.Error) {
	if id == nil {
		return
	}
	a.mu.Lock()
	a.responses = append(a.responses, &protocol.Response{ID: id, Result: result, Error: err})
	var out []*protocol.Response
	if len(a.responses) == a.expected {
		out = a.responses
	}
	a.mu.Unlock()

	if out != nil {
		a.reply(out)
	}
}
