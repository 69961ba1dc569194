package messenger

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
	"github.com/pushmodel-dev/pushmodel/pkg/pushtest"
	"github.com/pushmodel-dev/pushmodel/pkg/server"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

func start(t *testing.T, clk *clock) *httptest.Server {
	t.Helper()
	srv := server.New(New(WithClock(clk.now)), nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Conns().Shutdown(context.Background())
		ts.Close()
	})
	return ts
}

func subscribe(c *pushtest.Client, id int, pointer string, snapshot any) {
	c.Send(pushtest.Req(id, "SUB", pointer))
	c.Expect(pushtest.Res(id, nil))
	c.Expect(pushtest.Pub(pushtest.Replace(pointer, snapshot)))
}

func TestConversation(t *testing.T) {
	clk := newClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	ts := start(t, clk)
	c1 := pushtest.Connect(t, ts)
	c2 := pushtest.Connect(t, ts)
	emptyKeys := map[string]any{"keys": []any{}}

	subscribe(c1, 1, "/users", emptyKeys)
	subscribe(c1, 2, "/session", map[string]any{})

	c1.Send(pushtest.Req(3, "signIn", map[string]any{"id": 1, "name": "John"}))
	c1.Expect(pushtest.Res(3, nil))
	c1.Expect(pushtest.Pub(
		pushtest.Splice("/users/keys/0", 0, "1"),
		pushtest.Add("/users/1", map[string]any{"id": 1, "name": "John", "sessions": 1}),
		pushtest.Add("/session/state", map[string]any{"showMessenger": false}),
		pushtest.Add("/session/conversations", emptyKeys),
	))

	subscribe(c2, 1, "/users", map[string]any{
		"keys": []any{"1"},
		"1":    map[string]any{"id": 1, "name": "John", "sessions": 1},
	})
	subscribe(c2, 2, "/session", map[string]any{})

	c2.Send(pushtest.Req(3, "signIn", map[string]any{"id": 2, "name": "Lucy"}))
	c2.Expect(pushtest.Res(3, nil))
	c2.Expect(pushtest.Pub(
		pushtest.Splice("/users/keys/1", 0, "2"),
		pushtest.Add("/users/2", map[string]any{"id": 2, "name": "Lucy", "sessions": 1}),
		pushtest.Add("/session/state", map[string]any{"showMessenger": false}),
		pushtest.Add("/session/conversations", emptyKeys),
	))
	c1.Expect(pushtest.Pub(
		pushtest.Splice("/users/keys/1", 0, "2"),
		pushtest.Add("/users/2", map[string]any{"id": 2, "name": "Lucy", "sessions": 1}),
	))

	c2.Send(pushtest.Req(4, "openChat", 1))
	c2.Expect(pushtest.Res(4, nil))
	c2.Expect(pushtest.Pub(
		pushtest.Splice("/session/conversations/keys/0", 0, "1"),
		pushtest.Add("/session/conversations/1", map[string]any{"log": []any{}, "open": true}),
	))
	c1.Expect(pushtest.Pub(
		pushtest.Splice("/session/conversations/keys/0", 0, "2"),
		pushtest.Add("/session/conversations/2", map[string]any{"log": []any{}}),
	))

	c2.Send(pushtest.Req(5, "sendChat", 1, "Hey, you there?"))
	c2.Expect(pushtest.Res(5, nil))
	hey := map[string]any{"sender": 2, "text": "Hey, you there?"}
	c2.Expect(pushtest.Pub(pushtest.Splice("/session/conversations/1/log/0", 0, hey)))
	c1.Expect(pushtest.Pub(
		pushtest.Splice("/session/conversations/2/log/0", 0, hey),
		pushtest.Add("/session/conversations/2/open", true),
	))

	c1.Send(pushtest.Req(4, "sendChat", 2, "Yeah, I'm here"))
	c1.Expect(pushtest.Res(4, nil))
	here := map[string]any{"sender": 1, "text": "Yeah, I'm here"}
	c1.Expect(pushtest.Pub(pushtest.Splice("/session/conversations/2/log/1", 0, here)))
	c2.Expect(pushtest.Pub(pushtest.Splice("/session/conversations/1/log/1", 0, here)))

	c1.Close()
	c2.Expect(pushtest.Pub(pushtest.Replace("/users/1/sessions", 0)))
}

func TestTimestampAfterPause(t *testing.T) {
	clk := newClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	ts := start(t, clk)
	c1 := pushtest.Connect(t, ts)
	c2 := pushtest.Connect(t, ts)

	c1.Send(pushtest.Req(1, "signIn", map[string]any{"id": 1, "name": "John"}))
	c1.Expect(pushtest.Res(1, nil))
	c2.Send(pushtest.Req(1, "signIn", map[string]any{"id": 2, "name": "Lucy"}))
	c2.Expect(pushtest.Res(1, nil))
	c1.Send(pushtest.Req(2, "openChat", 2))
	c1.Expect(pushtest.Res(2, nil))
	subscribe(c1, 3, "/session/conversations/2/log", []any{})

	late := clk.advance(TimestampGap + time.Second)
	c1.Send(pushtest.Req(4, "sendChat", 2, "late"))
	c1.Expect(pushtest.Res(4, nil))
	c1.Expect(pushtest.Pub(pushtest.Splice("/session/conversations/2/log/0", 0,
		map[string]any{"sender": 1, "text": "late", "time": late.UnixMilli()})))

	c1.Send(pushtest.Req(5, "sendChat", 2, "soon"))
	c1.Expect(pushtest.Res(5, nil))
	c1.Expect(pushtest.Pub(pushtest.Splice("/session/conversations/2/log/1", 0,
		map[string]any{"sender": 1, "text": "soon"})))
}

func TestSignInRequired(t *testing.T) {
	c := pushtest.Connect(t, start(t, newClock(time.Now())))

	for i, method := range []string{"showMessenger", "openChat", "closeChat"} {
		var arg any = 2
		if method == "showMessenger" {
			arg = true
		}
		c.Send(pushtest.Req(i, method, arg))
		c.Expect(pushtest.AppErr(i, "Not signed in"))
	}
}

func TestConversationErrors(t *testing.T) {
	c := pushtest.Connect(t, start(t, newClock(time.Now())))
	c.Send(pushtest.Req(1, "signIn", map[string]any{"id": 1, "name": "John"}))
	c.Expect(pushtest.Res(1, nil))

	c.Send(pushtest.Req(2, "openChat", 9))
	c.Expect(pushtest.AppErr(2, "Unknown user 9"))

	c.Send(pushtest.Req(3, "sendChat", 9, "hi"))
	c.Expect(pushtest.AppErr(3, "No conversation with user 9"))

	c.Send(pushtest.Req(4, "resizeChat", 9, map[string]any{"w": 1}))
	c.Expect(pushtest.Err(4, protocol.CodeApplication, protocol.MsgApplication, "No conversation with user 9"))
}

func TestSecondSessionSameUser(t *testing.T) {
	ts := start(t, newClock(time.Now()))
	c1 := pushtest.Connect(t, ts)
	c2 := pushtest.Connect(t, ts)

	subscribe(c1, 1, "/users", map[string]any{"keys": []any{}})
	c1.Send(pushtest.Req(2, "signIn", map[string]any{"id": 1, "name": "John"}))
	c1.Expect(pushtest.Res(2, nil))
	c1.Expect(pushtest.Pub(
		pushtest.Splice("/users/keys/0", 0, "1"),
		pushtest.Add("/users/1", map[string]any{"id": 1, "name": "John", "sessions": 1}),
	))

	c2.Send(pushtest.Req(1, "signIn", map[string]any{"id": 1, "name": "Johnny"}))
	c2.Expect(pushtest.Res(1, nil))
	c1.Expect(pushtest.Pub(
		pushtest.Replace("/users/1/name", "Johnny"),
		pushtest.Replace("/users/1/sessions", 2),
	))
}
