package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"

	"github.com/pushmodel-dev/pushmodel/pkg/model"
	"github.com/pushmodel-dev/pushmodel/pkg/observe"
	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
	"github.com/pushmodel-dev/pushmodel/pkg/rpc"
	"github.com/pushmodel-dev/pushmodel/pkg/subscription"
)

// Conn is one persistent WebSocket connection. It owns the connection's
// subscriptions, patch batcher, dispatcher and session value.
//
// Inbound messages are processed strictly one after another, each inside a
// model turn with the connection's session installed. Outbound messages go
// through a bounded queue drained by a single writer goroutine.
type Conn struct {
	// ID is a random UUID identifying the connection in logs and metrics.
	ID string

	// RemoteAddr is the client address as seen by the server.
	RemoteAddr string

	// CreatedAt is when the connection was accepted.
	CreatedAt time.Time

	ws      *websocket.Conn
	config  *ConnConfig
	model   *model.Model
	metrics *MetricsCollector
	logger  *slog.Logger

	subs       *subscription.Manager
	batcher    *subscription.Batcher
	dispatcher *rpc.Dispatcher

	// session is only touched inside model turns.
	session any

	out    chan []byte
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	closed    atomic.Bool
	closeOnce sync.Once
	onClose   func(*Conn)

	messages atomic.Int64
}

func newConn(ws *websocket.Conn, m *model.Model, config *ConnConfig, middleware []rpc.Middleware,
	metrics *MetricsCollector, logger *slog.Logger) *Conn {
	id := uuid.Must(uuid.NewV4()).String()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Conn{
		ID:        id,
		CreatedAt: time.Now(),
		ws:        ws,
		config:    config,
		model:     m,
		metrics:   metrics,
		logger:    logger.With("conn_id", id),
		session:   observe.NewObject(),
		out:       make(chan []byte, config.MaxOutboundQueue),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	if ws != nil {
		c.RemoteAddr = ws.RemoteAddr().String()
	}

	c.batcher = subscription.NewBatcher(m, c.publish)
	c.subs = subscription.NewManager(m.Root(), c.batcher, c.logger)
	c.dispatcher = rpc.NewDispatcher(m.Methods(),
		rpc.WithSubscriptions(c.subs),
		rpc.WithMiddleware(middleware...),
		rpc.WithLogger(c.logger))
	return c
}

// Serve runs the connection until the client disconnects or Close is
// called. It synthesizes onConnect before reading the first message.
func (c *Conn) Serve() {
	defer c.Close()

	go c.writeLoop()

	c.turn(func() {
		c.dispatcher.Notify(c.ctx, rpc.MethodConnect)
	})
	c.readLoop()
}

// readLoop reads and dispatches messages until the connection fails.
func (c *Conn) readLoop() {
	c.ws.SetReadLimit(c.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) && !c.closed.Load() {
				c.logger.Error("read error", "error", err)
				c.metrics.RecordReadError()
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		c.messages.Add(1)
		c.metrics.RecordMessageReceived(len(msg))

		start := time.Now()
		c.turn(func() {
			c.dispatcher.Dispatch(c.ctx, msg, c.reply)
		})
		c.metrics.RecordMessageLatency(time.Since(start).Microseconds())
	}
}

// turn runs fn inside a model turn with the connection's session installed,
// then captures whatever session the turn left behind.
func (c *Conn) turn(fn func()) {
	c.model.Do(func() {
		c.model.SetSession(c.session)
		fn()
		c.session = c.model.Session()
		c.model.ClearSession()
	})
}

// writeLoop drains the outbound queue in order and sends heartbeat pings.
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !c.closed.Load() {
					c.logger.Error("write error", "error", err)
					c.metrics.RecordWriteError()
				}
				go c.Close()
				return
			}
			c.metrics.RecordBytesSent(len(msg))

		case <-ticker.C:
			deadline := time.Now().Add(c.config.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("ping error", "error", err)
				go c.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}

// reply sends the responses of one message.
func (c *Conn) reply(responses []*protocol.Response) {
	data, err := protocol.EncodeResponses(responses)
	if err != nil {
		c.logger.Error("encode responses", "error", err)
		return
	}
	c.metrics.RecordResponsesSent(len(responses))
	c.send(data)
}

// publish sends one PUB notification carrying a flushed batch.
func (c *Conn) publish(patches []observe.Patch) {
	data, err := json.Marshal(protocol.NewPublish(patches))
	if err != nil {
		c.logger.Error("encode patches", "error", err, "patches", len(patches))
		return
	}
	if err := c.send(data); err == nil {
		c.metrics.RecordPatchesSent(len(patches), len(data))
	}
}

// send queues an encoded message. A full queue closes the connection.
func (c *Conn) send(data []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	select {
	case c.out <- data:
		return nil
	default:
		c.metrics.RecordFrameDropped()
		c.logger.Warn("closing slow consumer", "queued", len(c.out))
		go c.Close()
		return NewConnError(c.ID, "send", ErrSlowConsumer)
	}
}

// Close tears down the connection: the socket is closed, every
// subscription is dropped and onDisconnect runs with the connection's
// session. Close is idempotent and must not be called inside a model turn.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		c.cancel()

		if c.ws != nil {
			c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			c.ws.Close()
		}

		c.turn(func() {
			c.subs.UnsubscribeAll()
			c.dispatcher.Notify(context.WithoutCancel(c.ctx), rpc.MethodDisconnect)
		})

		if c.onClose != nil {
			c.onClose(c)
		}
		c.logger.Info("connection closed",
			"messages", c.messages.Load(),
			"duration", time.Since(c.CreatedAt))
	})
}

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool { return c.closed.Load() }

// Subscriptions returns the pointers the connection is subscribed to.
// It takes a model turn.
func (c *Conn) Subscriptions() []string {
	var pointers []string
	c.model.Do(func() { pointers = c.subs.Pointers() })
	return pointers
}
