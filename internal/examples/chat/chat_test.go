package chat

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/pushmodel-dev/pushmodel/pkg/pushtest"
	"github.com/pushmodel-dev/pushmodel/pkg/server"
)

func TestChatRoom(t *testing.T) {
	srv := server.New(New(), nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Conns().Shutdown(context.Background())
		ts.Close()
	})

	c1 := pushtest.Connect(t, ts)
	c2 := pushtest.Connect(t, ts)
	for _, c := range []*pushtest.Client{c1, c2} {
		c.Send(pushtest.Req(1, "SUB", "/chatLog"))
		c.Expect(pushtest.Res(1, nil))
		c.Expect(pushtest.Pub(pushtest.Replace("/chatLog", []any{Greeting})))
	}

	c2.Send(pushtest.Req(2, "sendChat", "John", "Hey, what's up?"))
	c2.Expect(pushtest.Res(2, nil))
	line := pushtest.Pub(pushtest.Splice("/chatLog/1", 0, "John: Hey, what's up?"))
	c1.Expect(line)
	c2.Expect(line)
}

func TestLateJoinerSeesHistory(t *testing.T) {
	srv := server.New(New(), nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Conns().Shutdown(context.Background())
		ts.Close()
	})

	c1 := pushtest.Connect(t, ts)
	c1.Send(pushtest.Req(1, "sendChat", "Ann", "first"))
	c1.Expect(pushtest.Res(1, nil))

	c2 := pushtest.Connect(t, ts)
	c2.Send(pushtest.Req(1, "SUB", "/chatLog"))
	c2.Expect(pushtest.Res(1, nil))
	c2.Expect(pushtest.Pub(pushtest.Replace("/chatLog", []any{Greeting, "Ann: first"})))
}
