// Package rpc dispatches JSON-RPC calls to registered model methods.
//
// Methods are registered by name in a Registry before the model is mounted:
//
//	reg := rpc.NewRegistry()
//	reg.Register("addItem", rpc.Func1(func(text string) (any, error) {
//	    items.Push(map[string]any{"text": text})
//	    return nil, nil
//	}))
//
// A Dispatcher parses one inbound message, runs each envelope's handler and
// hands the responses to a ReplyFunc once every envelope that carries an id
// has settled. A handler that cannot answer immediately returns a *Pending
// and settles it later; sibling envelopes are not held up by it.
//
// Handler failures never escape the dispatcher: a *protocol.Error is sent to
// the caller as is, other errors and panics are logged and reported as an
// internal error.
package rpc
