package pushtest_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pushmodel-dev/pushmodel/pkg/model"
	"github.com/pushmodel-dev/pushmodel/pkg/observe"
	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
	"github.com/pushmodel-dev/pushmodel/pkg/pushtest"
	"github.com/pushmodel-dev/pushmodel/pkg/rpc"
	"github.com/pushmodel-dev/pushmodel/pkg/server"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	root := observe.NewObject()
	root.Set("counter", map[string]any{"n": 0})

	reg := rpc.NewRegistry()
	var m *model.Model
	reg.Register("inc", rpc.Func0(func() (any, error) {
		c := m.Root().Object("counter")
		n := c.Get("n").(int) + 1
		c.Set("n", n)
		return n, nil
	}))
	m = model.New(root, reg)

	srv := server.New(m, nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Conns().Shutdown(context.Background())
		ts.Close()
	})
	return ts
}

func TestClientExpect(t *testing.T) {
	c := pushtest.Connect(t, newServer(t))

	c.Send(pushtest.Req(1, "SUB", "/counter"))
	c.Expect(pushtest.Res(1, nil))
	c.Expect(pushtest.Pub(pushtest.Replace("/counter", map[string]any{"n": 0})))

	c.Send(pushtest.Req("a", "inc"))
	c.Expect(`{"jsonrpc":"2.0","id":"a","result":1}`)
	c.Expect(pushtest.Pub(pushtest.Replace("/counter/n", 1)))

	c.Send(pushtest.Note("inc"))
	c.Expect(pushtest.Pub(pushtest.Replace("/counter/n", 2)))
	c.ExpectNothing(50 * time.Millisecond)
}

func TestClientCall(t *testing.T) {
	c := pushtest.Connect(t, newServer(t))

	var res protocol.Response
	if err := res.UnmarshalJSON(c.Call(7, "missing")); err != nil {
		t.Fatal(err)
	}
	if res.Error == nil || res.Error.Code != protocol.CodeMethodNotFound {
		t.Errorf("error = %+v, want method not found", res.Error)
	}
}

func TestErrBuilders(t *testing.T) {
	c := pushtest.Connect(t, newServer(t))

	c.Send(pushtest.Req(1, "SUB", "/nothing"))
	c.Expect(pushtest.AppErr(1, "Can't subscribe to '/nothing', value is null or not an object"))

	c.Send(pushtest.Req(2, "SUB"))
	c.Expect(pushtest.Err(2, protocol.CodeInvalidParams, protocol.MsgInvalidParams, "Missing param 'pointer'"))
}
