package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	"github.com/pushmodel-dev/pushmodel/pkg/model"
)

// Server serves one model over persistent WebSocket connections and
// one-shot HTTP POST calls on the same mount path.
type Server struct {
	model *model.Model

	config  *ServerConfig
	origins *originPolicy

	conns   *ConnManager
	metrics *MetricsCollector

	upgrader websocket.Upgrader
	router   chi.Router

	mu         sync.Mutex
	httpServer *http.Server

	logger *slog.Logger
}

// New creates a server for m. A nil config uses DefaultServerConfig; unset
// fields are filled with defaults. The model's method registry is frozen.
func New(m *model.Model, config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	} else {
		config = config.Clone()
		config.applyDefaults()
	}

	base := slog.Default()
	logger := base.With("component", "server")
	if err := config.ValidateConfig(); err != nil {
		logger.Error("config validation failed", "error", err)
	}

	m.Methods().Freeze()

	s := &Server{
		model:   m,
		config:  config,
		origins: newOriginPolicy(config.AcceptOrigins),
		conns:   NewConnManager(config.MaxConnections, base),
		metrics: NewMetricsCollector(),
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
		CheckOrigin:     s.origins.checkWebSocket,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Get(s.config.MountPath, s.HandleWebSocket)
	mount := r.With(s.origins.cors().Handler)
	mount.Post(s.config.MountPath, s.ServeRPC)
	mount.Options(s.config.MountPath, preflight)

	r.NotFound(methodNotAllowed)
	r.MethodNotAllowed(methodNotAllowed)
	return r
}

// preflight answers CORS preflight requests on the mount path. The
// allow-origin headers come from the CORS middleware; POST is advertised to
// every origin.
func preflight(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Access-Control-Request-Method") == "" {
		methodNotAllowed(w, r)
		return
	}
	w.Header().Set("Access-Control-Allow-Methods", http.MethodPost)
	w.WriteHeader(http.StatusNoContent)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusMethodNotAllowed)
}

// Handler returns the HTTP handler serving both transports.
//
// Example:
//
//	mux := chi.NewRouter()
//	mux.Mount("/api", srv.Handler())
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes. Plain GET requests get 405; disallowed origins get 403.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		methodNotAllowed(w, r)
		return
	}
	if s.conns.Full() {
		http.Error(w, ErrMaxConnectionsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		s.logger.Warn("websocket upgrade failed", "error", err, "origin", r.Header.Get("Origin"))
		return
	}

	c := newConn(ws, s.model, s.config.ConnConfig, s.config.Middleware, s.metrics, s.logger)
	if err := s.conns.Add(c); err != nil {
		s.logger.Warn("connection rejected", "error", err)
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		ws.Close()
		return
	}
	c.Serve()
}

// Run listens on the configured address until SIGINT or SIGTERM, then
// shuts down gracefully.
func (s *Server) Run() error {
	if err := s.config.ValidateConfig(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}

	// Set up graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("server starting", "address", ln.Addr().String(), "path", s.config.MountPath)
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes every connection and stops the HTTP server, waiting at
// most ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	var err error
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		// Hijacked WebSocket connections are not tracked by http.Server.
		err = multierr.Append(err, srv.Shutdown(ctx))
	}
	err = multierr.Append(err, s.conns.Shutdown(ctx))

	if err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}
	s.logger.Info("server shutdown complete")
	return nil
}

// Conns returns the connection manager.
func (s *Server) Conns() *ConnManager {
	return s.conns
}

// Model returns the served model.
func (s *Server) Model() *model.Model {
	return s.model
}

// Config returns the effective configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// SetLogger replaces the logger. It must be called before serving.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger.With("component", "server")
	s.conns.logger = logger.With("component", "conn_manager")
}
