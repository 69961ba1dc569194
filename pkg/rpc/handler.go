package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
)

// Handler implements one callable method.
//
// The returned value becomes the response result. A *protocol.Error becomes
// an error response with its code, message and data. Any other error is
// logged and reported as an internal error. Returning a *Pending withholds
// the response until the future settles.
type Handler func(c *Call) (any, error)

// Middleware wraps a Handler.
type Middleware func(next Handler) Handler

// Chain applies middleware so the first one is outermost.
func Chain(h Handler, mw ...Middleware) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Call is one invocation of a method.
type Call struct {
	ctx    context.Context
	Method string
	Params Params
	// ID is the raw request id, nil for notifications.
	ID json.RawMessage
}

// NewCall creates a call. It is used by the dispatcher and by tests that
// invoke handlers directly.
func NewCall(ctx context.Context, method string, params Params) *Call {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Call{ctx: ctx, Method: method, Params: params}
}

// Context returns the context of the connection or HTTP request the call
// arrived on.
func (c *Call) Context() context.Context { return c.ctx }

// WithContext returns a copy of the call carrying ctx.
func (c *Call) WithContext(ctx context.Context) *Call {
	clone := *c
	clone.ctx = ctx
	return &clone
}

// IsNotification reports whether the caller expects no response.
func (c *Call) IsNotification() bool { return c.ID == nil }

// Bind decodes positional params into dst. Missing params leave their
// destination untouched.
func (c *Call) Bind(dst ...any) error {
	return c.Params.Bind(dst...)
}

// Params is a positional argument list.
type Params []json.RawMessage

// DecodeParams splits the raw params member. Absent or null params yield an
// empty list; anything other than an array is invalid.
func DecodeParams(raw json.RawMessage) (Params, *protocol.Error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var p Params
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, protocol.ErrInvalidParams("Params must be an array")
	}
	return p, nil
}

// Len returns the number of params.
func (p Params) Len() int { return len(p) }

// IsNull reports whether param i is missing or JSON null.
func (p Params) IsNull(i int) bool {
	return i >= len(p) || string(p[i]) == "null"
}

// Bind decodes params into dst positionally. A param that does not fit its
// destination yields an invalid params error.
func (p Params) Bind(dst ...any) error {
	for i, d := range dst {
		if i >= len(p) {
			break
		}
		if err := json.Unmarshal(p[i], d); err != nil {
			return protocol.ErrInvalidParams(fmt.Sprintf("param %d: %v", i, err))
		}
	}
	return nil
}

// Func0 adapts a function without arguments.
func Func0(fn func() (any, error)) Handler {
	return func(*Call) (any, error) { return fn() }
}

// Func1 adapts a function of one positional argument.
func Func1[A any](fn func(A) (any, error)) Handler {
	return func(c *Call) (any, error) {
		var a A
		if err := c.Bind(&a); err != nil {
			return nil, err
		}
		return fn(a)
	}
}

// Func2 adapts a function of two positional arguments.
func Func2[A, B any](fn func(A, B) (any, error)) Handler {
	return func(c *Call) (any, error) {
		var (
			a A
			b B
		)
		if err := c.Bind(&a, &b); err != nil {
			return nil, err
		}
		return fn(a, b)
	}
}

// Func3 adapts a function of three positional arguments.
func Func3[A, B, C any](fn func(A, B, C) (any, error)) Handler {
	return func(c *Call) (any, error) {
		var (
			a A
			b B
			x C
		)
		if err := c.Bind(&a, &b, &x); err != nil {
			return nil, err
		}
		return fn(a, b, x)
	}
}
