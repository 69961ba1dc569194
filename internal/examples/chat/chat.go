// Package chat is a single chat room: a log of lines every client can
// append to.
package chat

import (
	"github.com/pushmodel-dev/pushmodel/pkg/model"
	"github.com/pushmodel-dev/pushmodel/pkg/observe"
	"github.com/pushmodel-dev/pushmodel/pkg/rpc"
)

// Greeting is the first line of a new log.
const Greeting = "Welcome!"

// New returns the model with a "chatLog" array and a sendChat method.
func New() *model.Model {
	root := observe.NewObject()
	root.Set("chatLog", observe.NewArray(Greeting))

	var m *model.Model
	reg := rpc.NewRegistry()
	reg.Register("sendChat", rpc.Func2(func(name, message string) (any, error) {
		m.Root().Array("chatLog").Push(name + ": " + message)
		return nil, nil
	}))

	m = model.New(root, reg)
	return m
}
