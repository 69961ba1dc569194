package pushtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
)

// DefaultTimeout bounds every Receive.
const DefaultTimeout = 2 * time.Second

// Client is a WebSocket client that queues inbound messages in arrival
// order. Its methods fail the test instead of returning errors.
type Client struct {
	t  testing.TB
	ws *websocket.Conn

	// Timeout bounds Receive. Default: DefaultTimeout.
	Timeout time.Duration

	msgs chan json.RawMessage
	quit chan struct{}
	done chan struct{}
	err  error

	closeOnce sync.Once
}

// Connect dials the WebSocket endpoint of a test server mounted at "/".
func Connect(t testing.TB, srv *httptest.Server) *Client {
	t.Helper()
	return Dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/", nil)
}

// Dial connects to url with the given request header. The connection is
// closed when the test ends.
func Dial(t testing.TB, url string, header http.Header) *Client {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("pushtest: dial %s: %v", url, err)
	}

	c := &Client{
		t:       t,
		ws:      ws,
		Timeout: DefaultTimeout,
		msgs:    make(chan json.RawMessage, 256),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	t.Cleanup(c.Close)
	return c
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			c.err = err
			return
		}
		select {
		case c.msgs <- msg:
		case <-c.quit:
			return
		}
	}
}

// Send encodes v as JSON and sends it. Strings and byte slices are sent
// verbatim.
func (c *Client) Send(v any) {
	c.t.Helper()
	var data []byte
	switch v := v.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			c.t.Fatalf("pushtest: encode %v: %v", v, err)
		}
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("pushtest: send: %v", err)
	}
}

// Receive returns the next message.
func (c *Client) Receive() json.RawMessage {
	c.t.Helper()
	select {
	case msg := <-c.msgs:
		return msg
	case <-c.done:
		// Drain what arrived before the connection ended.
		select {
		case msg := <-c.msgs:
			return msg
		default:
		}
		c.t.Fatalf("pushtest: connection closed: %v", c.err)
	case <-time.After(c.Timeout):
		c.t.Fatalf("pushtest: no message within %s", c.Timeout)
	}
	return nil
}

// ReceiveJSON decodes the next message into v.
func (c *Client) ReceiveJSON(v any) {
	c.t.Helper()
	msg := c.Receive()
	if err := json.Unmarshal(msg, v); err != nil {
		c.t.Fatalf("pushtest: decode %s: %v", msg, err)
	}
}

// Expect receives the next message and compares it with want as JSON.
func (c *Client) Expect(want any) {
	c.t.Helper()
	got := c.Receive()
	if diff := cmp.Diff(normalize(c.t, want), normalize(c.t, got)); diff != "" {
		c.t.Fatalf("pushtest: message mismatch (-want +got):\n%s", diff)
	}
}

// ExpectNothing fails if a message arrives within d.
func (c *Client) ExpectNothing(d time.Duration) {
	c.t.Helper()
	select {
	case msg := <-c.msgs:
		c.t.Fatalf("pushtest: unexpected message %s", msg)
	case <-time.After(d):
	}
}

// Call sends a request and returns the next message.
func (c *Client) Call(id any, method string, params ...any) json.RawMessage {
	c.t.Helper()
	c.Send(Req(id, method, params...))
	return c.Receive()
}

// Close closes the connection and waits for the reader to stop.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.ws.Close()
		<-c.done
	})
}

// normalize turns v into generic JSON values so that structurally equal
// messages compare equal regardless of key order or Go types.
func normalize(t testing.TB, v any) any {
	t.Helper()
	var data []byte
	switch v := v.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			t.Fatalf("pushtest: encode %v: %v", v, err)
		}
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("pushtest: decode %s: %v", data, err)
	}
	return out
}
