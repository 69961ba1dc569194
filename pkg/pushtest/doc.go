// Package pushtest provides a WebSocket test client and message builders
// for end-to-end tests of pushmodel servers.
//
// # Quick Start
//
//	func TestAddItem(t *testing.T) {
//	    srv := httptest.NewServer(server.New(todo.New(), nil))
//	    defer srv.Close()
//
//	    c := pushtest.Connect(t, srv)
//	    c.Send(pushtest.Req(1, "SUB", "/items"))
//	    c.Expect(pushtest.Res(1, nil))
//	    c.Expect(pushtest.Pub(pushtest.Replace("/items", []any{})))
//	}
//
// Messages are compared as JSON, so key order and numeric Go types do not
// matter. Every Client method fails the test on error or timeout.
package pushtest
