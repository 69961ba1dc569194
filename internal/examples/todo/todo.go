// Package todo is a to-do list shared by every connected client.
package todo

import (
	"fmt"

	"github.com/pushmodel-dev/pushmodel/pkg/model"
	"github.com/pushmodel-dev/pushmodel/pkg/observe"
	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
	"github.com/pushmodel-dev/pushmodel/pkg/rpc"
)

type list struct {
	m *model.Model
}

// New returns the model: an "items" array of {text, completed} objects and
// the methods editing it.
func New() *model.Model {
	root := observe.NewObject()
	root.Set("items", observe.NewArray())

	l := &list{}
	reg := rpc.NewRegistry()
	reg.Register("addItem", rpc.Func1(l.addItem))
	reg.Register("deleteItem", rpc.Func1(l.deleteItem))
	reg.Register("setCompleted", rpc.Func2(l.setCompleted))
	reg.Register("setAllCompleted", rpc.Func1(l.setAllCompleted))
	reg.Register("clearCompleted", rpc.Func0(l.clearCompleted))
	reg.Register("setText", rpc.Func2(l.setText))

	l.m = model.New(root, reg)
	return l.m
}

func (l *list) items() *observe.Array {
	return l.m.Root().Array("items")
}

func (l *list) item(index int) (*observe.Object, error) {
	items := l.items()
	if index < 0 || index >= items.Len() {
		return nil, protocol.ErrInvalidParams(fmt.Sprintf("Index %d out of range", index))
	}
	return items.At(index).(*observe.Object), nil
}

func (l *list) addItem(text string) (any, error) {
	l.items().Push(map[string]any{"text": text})
	return nil, nil
}

func (l *list) deleteItem(index int) (any, error) {
	if _, err := l.item(index); err != nil {
		return nil, err
	}
	l.items().Splice(index, 1)
	return nil, nil
}

func (l *list) setCompleted(index int, completed bool) (any, error) {
	it, err := l.item(index)
	if err != nil {
		return nil, err
	}
	it.Set("completed", completed)
	return nil, nil
}

func (l *list) setAllCompleted(completed bool) (any, error) {
	for _, it := range l.items().Items() {
		it.(*observe.Object).Set("completed", completed)
	}
	return nil, nil
}

func (l *list) clearCompleted() (any, error) {
	items := l.items()
	for i := 0; i < items.Len(); {
		if done, _ := items.At(i).(*observe.Object).Get("completed").(bool); done {
			items.Splice(i, 1)
		} else {
			i++
		}
	}
	return nil, nil
}

func (l *list) setText(index int, text string) (any, error) {
	it, err := l.item(index)
	if err != nil {
		return nil, err
	}
	it.Set("text", text)
	return nil, nil
}
