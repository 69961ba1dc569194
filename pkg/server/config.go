package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pushmodel-dev/pushmodel/pkg/rpc"
)

// ConnConfig holds configuration for individual WebSocket connections.
type ConnConfig struct {
	// Timeouts

	// ReadTimeout is the maximum time to wait for a message or pong from the
	// client. Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HeartbeatInterval is the time between heartbeat pings. It must be
	// shorter than ReadTimeout. Default: 30 seconds.
	HeartbeatInterval time.Duration

	// Limits

	// MaxMessageSize is the maximum size of an incoming message.
	// Default: 1MB.
	MaxMessageSize int64

	// MaxOutboundQueue is the number of encoded messages that may wait for
	// the writer. A connection whose queue overflows is closed.
	// Default: 1024.
	MaxOutboundQueue int
}

// DefaultConnConfig returns a ConnConfig with sensible defaults.
func DefaultConnConfig() *ConnConfig {
	return &ConnConfig{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		MaxMessageSize:    1 << 20,
		MaxOutboundQueue:  1024,
	}
}

// Clone returns a copy of the ConnConfig.
func (c *ConnConfig) Clone() *ConnConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ServerConfig holds configuration for the HTTP/WebSocket endpoint.
type ServerConfig struct {
	// Address is the address Run listens on. Default: ":8080".
	Address string

	// MountPath is the path serving both transports. Default: "/".
	MountPath string

	// AcceptOrigins lists the host names allowed to connect and to receive
	// CORS headers. Nil allows every origin.
	AcceptOrigins []string

	// WebSocket buffer sizes

	// ReadBufferSize is the WebSocket read buffer size. Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size. Default: 4096.
	WriteBufferSize int

	// ConnConfig is the configuration for individual connections.
	// Default: DefaultConnConfig().
	ConnConfig *ConnConfig

	// MaxConnections is the maximum number of concurrent WebSocket
	// connections. 0 means no limit.
	MaxConnections int

	// MaxRequestSize caps one-shot HTTP request bodies. Default: 1MB.
	MaxRequestSize int64

	// Middleware wraps every method call on both transports.
	Middleware []rpc.Middleware

	// Server lifecycle

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds reading request headers. Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// IdleTimeout is the keep-alive timeout of the HTTP server.
	// Default: 120 seconds.
	IdleTimeout time.Duration
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:           ":8080",
		MountPath:         "/",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		ConnConfig:        DefaultConnConfig(),
		MaxRequestSize:    1 << 20,
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Clone returns a deep copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.ConnConfig = c.ConnConfig.Clone()
	if c.AcceptOrigins != nil {
		clone.AcceptOrigins = append([]string(nil), c.AcceptOrigins...)
	}
	if c.Middleware != nil {
		clone.Middleware = append([]rpc.Middleware(nil), c.Middleware...)
	}
	return &clone
}

// WithAddress sets the listen address and returns the config for chaining.
func (c *ServerConfig) WithAddress(addr string) *ServerConfig {
	c.Address = addr
	return c
}

// WithMountPath sets the mount path and returns the config for chaining.
func (c *ServerConfig) WithMountPath(path string) *ServerConfig {
	c.MountPath = path
	return c
}

// WithAcceptOrigins sets the origin allow-list and returns the config for chaining.
func (c *ServerConfig) WithAcceptOrigins(hosts ...string) *ServerConfig {
	c.AcceptOrigins = hosts
	return c
}

// WithConnConfig sets the connection configuration and returns the config for chaining.
func (c *ServerConfig) WithConnConfig(cc *ConnConfig) *ServerConfig {
	c.ConnConfig = cc
	return c
}

// WithMaxConnections sets the connection limit and returns the config for chaining.
func (c *ServerConfig) WithMaxConnections(max int) *ServerConfig {
	c.MaxConnections = max
	return c
}

// WithMiddleware appends call middleware and returns the config for chaining.
func (c *ServerConfig) WithMiddleware(mw ...rpc.Middleware) *ServerConfig {
	c.Middleware = append(c.Middleware, mw...)
	return c
}

// applyDefaults fills unset fields from DefaultServerConfig.
func (c *ServerConfig) applyDefaults() {
	d := DefaultServerConfig()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.MountPath == "" {
		c.MountPath = d.MountPath
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = d.MaxRequestSize
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.ConnConfig == nil {
		c.ConnConfig = d.ConnConfig
		return
	}
	cc, dc := c.ConnConfig, d.ConnConfig
	if cc.ReadTimeout == 0 {
		cc.ReadTimeout = dc.ReadTimeout
	}
	if cc.WriteTimeout == 0 {
		cc.WriteTimeout = dc.WriteTimeout
	}
	if cc.HeartbeatInterval == 0 {
		cc.HeartbeatInterval = dc.HeartbeatInterval
	}
	if cc.MaxMessageSize == 0 {
		cc.MaxMessageSize = dc.MaxMessageSize
	}
	if cc.MaxOutboundQueue == 0 {
		cc.MaxOutboundQueue = dc.MaxOutboundQueue
	}
}

// ValidateConfig reports every invalid setting.
func (c *ServerConfig) ValidateConfig() error {
	var errs []error
	if !strings.HasPrefix(c.MountPath, "/") {
		errs = append(errs, fmt.Errorf("MountPath %q must start with /", c.MountPath))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, errors.New("MaxConnections must not be negative"))
	}
	if c.MaxRequestSize < 0 {
		errs = append(errs, errors.New("MaxRequestSize must not be negative"))
	}
	if cc := c.ConnConfig; cc != nil {
		if cc.HeartbeatInterval >= cc.ReadTimeout {
			errs = append(errs, fmt.Errorf("HeartbeatInterval (%s) must be shorter than ReadTimeout (%s)",
				cc.HeartbeatInterval, cc.ReadTimeout))
		}
		if cc.MaxOutboundQueue <= 0 {
			errs = append(errs, errors.New("MaxOutboundQueue must be positive"))
		}
		if cc.MaxMessageSize <= 0 {
			errs = append(errs, errors.New("MaxMessageSize must be positive"))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ConfigError{Errs: errs}
}
