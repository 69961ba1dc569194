package todo

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
	"github.com/pushmodel-dev/pushmodel/pkg/pushtest"
	"github.com/pushmodel-dev/pushmodel/pkg/server"
)

func start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := server.New(New(), nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Conns().Shutdown(context.Background())
		ts.Close()
	})
	return ts
}

func TestSharedList(t *testing.T) {
	ts := start(t)
	c1 := pushtest.Connect(t, ts)
	c2 := pushtest.Connect(t, ts)

	for _, c := range []*pushtest.Client{c1, c2} {
		c.Send(pushtest.Req(1, "SUB", "/items"))
		c.Expect(pushtest.Res(1, nil))
		c.Expect(pushtest.Pub(pushtest.Replace("/items", []any{})))
	}

	c1.Send(pushtest.Req(2, "addItem", "Pick John up at airport"))
	c1.Expect(pushtest.Res(2, nil))
	added := pushtest.Pub(pushtest.Splice("/items/0", 0, map[string]any{"text": "Pick John up at airport"}))
	c1.Expect(added)
	c2.Expect(added)

	c2.Send(pushtest.Req(3, "addItem", "Groceries"))
	c2.Expect(pushtest.Res(3, nil))
	added = pushtest.Pub(pushtest.Splice("/items/1", 0, map[string]any{"text": "Groceries"}))
	c1.Expect(added)
	c2.Expect(added)

	c1.Send(pushtest.Req(4, "setCompleted", 1, true))
	c1.Expect(pushtest.Res(4, nil))
	completed := pushtest.Pub(pushtest.Add("/items/1/completed", true))
	c1.Expect(completed)
	c2.Expect(completed)

	c2.Send(pushtest.Req(5, "setText", 0, "Pick Jane up"))
	c2.Expect(pushtest.Res(5, nil))
	renamed := pushtest.Pub(pushtest.Replace("/items/0/text", "Pick Jane up"))
	c1.Expect(renamed)
	c2.Expect(renamed)

	c1.Send(pushtest.Req(6, "clearCompleted"))
	c1.Expect(pushtest.Res(6, nil))
	cleared := pushtest.Pub(pushtest.Splice("/items/1", 1))
	c1.Expect(cleared)
	c2.Expect(cleared)
}

func TestSetAllCompleted(t *testing.T) {
	c := pushtest.Connect(t, start(t))
	c.Send(pushtest.Req(1, "SUB", "/items"))
	c.Expect(pushtest.Res(1, nil))
	c.Expect(pushtest.Pub(pushtest.Replace("/items", []any{})))

	c.Send(pushtest.Note("addItem", "a"))
	c.Expect(pushtest.Pub(pushtest.Splice("/items/0", 0, map[string]any{"text": "a"})))
	c.Send(pushtest.Note("addItem", "b"))
	c.Expect(pushtest.Pub(pushtest.Splice("/items/1", 0, map[string]any{"text": "b"})))

	c.Send(pushtest.Note("setAllCompleted", true))
	c.Expect(pushtest.Pub(
		pushtest.Add("/items/0/completed", true),
		pushtest.Add("/items/1/completed", true),
	))

	c.Send(pushtest.Note("clearCompleted"))
	c.Expect(pushtest.Pub(
		pushtest.Splice("/items/0", 1),
		pushtest.Splice("/items/0", 1),
	))
}

func TestIndexOutOfRange(t *testing.T) {
	c := pushtest.Connect(t, start(t))

	tests := []struct {
		method string
		params []any
	}{
		{"deleteItem", []any{0}},
		{"setCompleted", []any{3, true}},
		{"setText", []any{-1, "x"}},
	}
	for i, tt := range tests {
		c.Send(pushtest.Req(i, tt.method, tt.params...))
		idx := tt.params[0].(int)
		c.Expect(pushtest.Err(i, protocol.CodeInvalidParams, protocol.MsgInvalidParams,
			fmt.Sprintf("Index %d out of range", idx)))
	}
}
