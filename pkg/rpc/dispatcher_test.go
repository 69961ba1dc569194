package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/pushmodel-dev/pushmodel/pkg/observe"
	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type replies struct {
	ch chan []*protocol.Response
}

func newReplies() *replies {
	return &replies{ch: make(chan []*protocol.Response, 4)}
}

func (r *replies) reply(resp []*protocol.Response) { r.ch <- resp }

func (r *replies) next(t *testing.T) []*protocol.Response {
	t.Helper()
	select {
	case resp := <-r.ch:
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
		return nil
	}
}

func (r *replies) none(t *testing.T) {
	t.Helper()
	select {
	case resp := <-r.ch:
		t.Fatalf("unexpected reply %v", encode(t, resp))
	case <-time.After(20 * time.Millisecond):
	}
}

func encode(t *testing.T, resp []*protocol.Response) string {
	t.Helper()
	b, err := protocol.EncodeResponses(resp)
	if err != nil {
		t.Fatalf("EncodeResponses: %v", err)
	}
	return string(b)
}

type fakeSubs struct {
	calls []string
	err   error
}

func (f *fakeSubs) Subscribe(p string) error {
	f.calls = append(f.calls, "sub "+p)
	return f.err
}

func (f *fakeSubs) Unsubscribe(p string) error {
	f.calls = append(f.calls, "unsub "+p)
	return nil
}

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.Register("echo", Func1(func(s string) (any, error) { return s, nil }))
	reg.Register("add", Func2(func(a, b int) (any, error) { return a + b, nil }))
	reg.Register("boom", Func0(func() (any, error) { panic("boom") }))
	reg.Register("fail", Func0(func() (any, error) { return nil, errors.New("db down") }))
	reg.Register("deny", Func0(func() (any, error) {
		return nil, protocol.NewError(42, "Denied", "no")
	}))
	return reg
}

func TestDispatchSingle(t *testing.T) {
	d := NewDispatcher(testRegistry(), WithLogger(quietLogger))
	r := newReplies()

	n := d.Dispatch(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"echo","params":["hi"]}`), r.reply)
	if n != 1 {
		t.Fatalf("Dispatch() = %d, want 1", n)
	}
	got := encode(t, r.next(t))
	want := `{"jsonrpc":"2.0","id":1,"result":"hi"}`
	if got != want {
		t.Errorf("reply = %s, want %s", got, want)
	}
}

func TestDispatchErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"parse", `{"jsonrpc"`, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`},
		{"version", `{"jsonrpc":"1.0","id":4,"method":"echo"}`, `{"jsonrpc":"2.0","id":4,"error":{"code":-32600,"message":"Invalid request","data":"Not JSON-RPC version 2.0"}}`},
		{"not found", `{"jsonrpc":"2.0","id":1,"method":"nope"}`, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`},
		{"sub without manager", `{"jsonrpc":"2.0","id":1,"method":"SUB","params":["/a"]}`, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`},
		{"panic", `{"jsonrpc":"2.0","id":1,"method":"boom"}`, `{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"Internal error"}}`},
		{"plain error", `{"jsonrpc":"2.0","id":1,"method":"fail"}`, `{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"Internal error"}}`},
		{"wire error", `{"jsonrpc":"2.0","id":1,"method":"deny"}`, `{"jsonrpc":"2.0","id":1,"error":{"code":42,"message":"Denied","data":"no"}}`},
		{"bad param type", `{"jsonrpc":"2.0","id":1,"method":"add","params":["x",1]}`, ``},
		{"params object", `{"jsonrpc":"2.0","id":1,"method":"echo","params":{"a":1}}`, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid params","data":"Params must be an array"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(testRegistry(), WithLogger(quietLogger))
			r := newReplies()
			d.Dispatch(context.Background(), []byte(tt.in), r.reply)
			resp := r.next(t)
			if tt.want == "" {
				if len(resp) != 1 || resp[0].Error == nil || resp[0].Error.Code != protocol.CodeInvalidParams {
					t.Errorf("reply = %s, want invalid params", encode(t, resp))
				}
				return
			}
			if got := encode(t, resp); got != tt.want {
				t.Errorf("reply = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDispatchBatchCounts(t *testing.T) {
	d := NewDispatcher(testRegistry(), WithLogger(quietLogger))
	r := newReplies()

	in := `[
		{"jsonrpc":"2.0","id":1,"method":"echo","params":["a"]},
		{"jsonrpc":"2.0","method":"echo","params":["dropped"]},
		{"jsonrpc":"2.0","id":2,"method":"boom"},
		{"jsonrpc":"2.0","id":null,"method":"add","params":[1,2]},
		{"jsonrpc":"2.0","method":"nope"}
	]`
	if n := d.Dispatch(context.Background(), []byte(in), r.reply); n != 3 {
		t.Fatalf("Dispatch() = %d, want 3", n)
	}
	resp := r.next(t)
	var ids []string
	for _, res := range resp {
		ids = append(ids, string(res.ID))
	}
	sort.Strings(ids)
	if diff := cmp.Diff([]string{"1", "2", "null"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	r.none(t)
}

func TestDispatchNoResponses(t *testing.T) {
	d := NewDispatcher(testRegistry(), WithLogger(quietLogger))
	r := newReplies()

	for _, in := range []string{
		`{"jsonrpc":"2.0","method":"echo"}`,
		`[]`,
		`[{"jsonrpc":"1.0","method":"echo"}, 7]`,
	} {
		if n := d.Dispatch(context.Background(), []byte(in), r.reply); n != 0 {
			t.Errorf("Dispatch(%s) = %d, want 0", in, n)
		}
	}
	r.none(t)
}

func TestDispatchPendingWaitsForAll(t *testing.T) {
	reg := NewRegistry()
	p := NewPending()
	reg.Register("slow", Func0(func() (any, error) { return p, nil }))
	reg.Register("fast", Func0(func() (any, error) { return "fast", nil }))
	d := NewDispatcher(reg, WithLogger(quietLogger))
	r := newReplies()

	d.Dispatch(context.Background(), []byte(`[
		{"jsonrpc":"2.0","id":1,"method":"slow"},
		{"jsonrpc":"2.0","id":2,"method":"fast"}
	]`), r.reply)
	r.none(t)

	p.Resolve(map[string]any{"done": true})
	resp := r.next(t)
	got := encode(t, resp)
	want := `[{"jsonrpc":"2.0","id":2,"result":"fast"},{"jsonrpc":"2.0","id":1,"result":{"done":true}}]`
	if got != want {
		t.Errorf("reply = %s, want %s", got, want)
	}
}

func TestDispatchPendingReject(t *testing.T) {
	reg := NewRegistry()
	p := NewPending()
	reg.Register("slow", Func0(func() (any, error) { return p, nil }))
	d := NewDispatcher(reg, WithLogger(quietLogger))
	r := newReplies()

	d.Dispatch(context.Background(), []byte(`{"jsonrpc":"2.0","id":9,"method":"slow"}`), r.reply)
	p.Reject(protocol.ErrApplication("gone"))
	p.Resolve("ignored")

	resp := r.next(t)
	if resp[0].Error == nil || resp[0].Error.Data != "gone" {
		t.Errorf("reply = %s, want application error", encode(t, resp))
	}
}

func TestDispatchNilPendingIsNullResult(t *testing.T) {
	reg := NewRegistry()
	reg.Register("maybe", Func0(func() (any, error) {
		var p *Pending
		return p, nil
	}))
	d := NewDispatcher(reg, WithLogger(quietLogger))
	r := newReplies()

	d.Dispatch(context.Background(), []byte(`{"jsonrpc":"2.0","id":3,"method":"maybe"}`), r.reply)
	if got, want := encode(t, r.next(t)), `{"jsonrpc":"2.0","id":3,"result":null}`; got != want {
		t.Errorf("reply = %s, want %s", got, want)
	}
}

func TestDispatchPendingAbandonedOnCancel(t *testing.T) {
	reg := NewRegistry()
	reg.Register("never", Func0(func() (any, error) { return NewPending(), nil }))
	d := NewDispatcher(reg, WithLogger(quietLogger))
	r := newReplies()

	ctx, cancel := context.WithCancel(context.Background())
	d.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"never"}`), r.reply)
	cancel()
	r.none(t)
}

func TestDispatchSubscriptionValidation(t *testing.T) {
	subs := &fakeSubs{}
	d := NewDispatcher(nil, WithSubscriptions(subs), WithLogger(quietLogger))

	tests := []struct {
		params string
		data   any
	}{
		{`[]`, "Missing param 'pointer'"},
		{`[null]`, "Missing param 'pointer'"},
		{`[5]`, "Pointer must be a string"},
		{`["/items"]`, nil},
	}
	for _, tt := range tests {
		r := newReplies()
		d.Dispatch(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"SUB","params":`+tt.params+`}`), r.reply)
		resp := r.next(t)[0]
		if tt.data == nil {
			if resp.Error != nil {
				t.Errorf("SUB %s error = %v", tt.params, resp.Error)
			}
			continue
		}
		if resp.Error == nil || resp.Error.Code != protocol.CodeInvalidParams || resp.Error.Data != tt.data {
			t.Errorf("SUB %s = %+v, want invalid params %v", tt.params, resp.Error, tt.data)
		}
	}
	if diff := cmp.Diff([]string{"sub /items"}, subs.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestMiddlewareWrapsPseudoMethods(t *testing.T) {
	var seen []string
	mw := func(next Handler) Handler {
		return func(c *Call) (any, error) {
			seen = append(seen, c.Method)
			return next(c)
		}
	}
	d := NewDispatcher(testRegistry(), WithSubscriptions(&fakeSubs{}), WithMiddleware(mw), WithLogger(quietLogger))
	r := newReplies()

	d.Dispatch(context.Background(), []byte(`[
		{"jsonrpc":"2.0","id":1,"method":"UNSUB","params":["/x"]},
		{"jsonrpc":"2.0","id":2,"method":"echo","params":["y"]}
	]`), r.reply)
	r.next(t)
	if diff := cmp.Diff([]string{"UNSUB", "echo"}, seen); diff != "" {
		t.Errorf("middleware saw (-want +got):\n%s", diff)
	}
}

func TestNotifyNeverReplies(t *testing.T) {
	called := false
	reg := NewRegistry()
	reg.Register(MethodConnect, Func0(func() (any, error) {
		called = true
		return "ignored", nil
	}))
	d := NewDispatcher(reg, WithLogger(quietLogger))
	d.Notify(context.Background(), MethodConnect)
	d.Notify(context.Background(), MethodDisconnect)
	if !called {
		t.Error("onConnect handler not called")
	}
}

func TestResultIsExported(t *testing.T) {
	reg := NewRegistry()
	reg.Register("list", Func0(func() (any, error) {
		return observe.From(map[string]any{"_hidden": 1, "shown": []any{1}}), nil
	}))
	d := NewDispatcher(reg, WithLogger(quietLogger))
	r := newReplies()
	d.Dispatch(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"list"}`), r.reply)

	var got map[string]any
	b, _ := json.Marshal(r.next(t)[0].Result)
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := got["shown"]; !ok {
		t.Errorf("result = %s, want shown", b)
	}
	if _, ok := got["_hidden"]; ok {
		t.Errorf("result = %s, private key leaked", b)
	}
}
