package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pushmodel-dev/pushmodel/internal/errors"
	"github.com/pushmodel-dev/pushmodel/pkg/server"
)

// ConfigFileNames are the file names Find looks for, in order.
var ConfigFileNames = []string{"pushmodel.json", "pushmodel.yaml", "pushmodel.yml"}

const (
	// DefaultAddress is the default listen address.
	DefaultAddress = ":8080"

	// DefaultMetricsPath is where the metrics listener serves Prometheus.
	DefaultMetricsPath = "/metrics"

	// DefaultNamespace prefixes every exported metric.
	DefaultNamespace = "pushmodel"

	// DefaultExample is the model served when none is configured.
	DefaultExample = "todo"
)

// Config is the complete configuration file.
type Config struct {
	// Address is the address the server listens on.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`

	// MountPath is the path serving WebSocket and HTTP requests.
	MountPath string `json:"mountPath,omitempty" yaml:"mountPath,omitempty"`

	// AcceptOrigins lists allowed origin host names. Absent allows all.
	AcceptOrigins []string `json:"acceptOrigins,omitempty" yaml:"acceptOrigins,omitempty"`

	// MaxConnections caps concurrent WebSocket connections. 0 is unlimited.
	MaxConnections int `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"`

	// MaxRequestSize caps HTTP request bodies in bytes.
	MaxRequestSize int64 `json:"maxRequestSize,omitempty" yaml:"maxRequestSize,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`

	// Conn holds per-connection settings.
	Conn ConnConfig `json:"conn,omitempty" yaml:"conn,omitempty"`

	// Log configures the process logger.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// Metrics configures the Prometheus listener.
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// Example names the built-in model to serve.
	Example string `json:"example,omitempty" yaml:"example,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ConnConfig contains WebSocket connection settings.
type ConnConfig struct {
	ReadTimeout       Duration `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	WriteTimeout      Duration `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`
	HeartbeatInterval Duration `json:"heartbeatInterval,omitempty" yaml:"heartbeatInterval,omitempty"`
	MaxMessageSize    int64    `json:"maxMessageSize,omitempty" yaml:"maxMessageSize,omitempty"`
	MaxOutboundQueue  int      `json:"maxOutboundQueue,omitempty" yaml:"maxOutboundQueue,omitempty"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// MetricsConfig contains Prometheus listener settings.
type MetricsConfig struct {
	// Address of the metrics listener. Empty disables it.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`

	// Path serving the metrics.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Namespace prefixes metric names.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration time.Duration

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("duration must be a string or an integer: %s", data)
		}
		*d = Duration(n)
		return nil
	}
	return d.parse(s)
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalYAML accepts a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// New creates a Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads configuration from path. The format follows the file
// extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No configuration file at " + path).
				WithSuggestion("Pass an existing file with --config or omit the flag")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg, err := Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

// Parse decodes configuration in format "json", "yaml" or "yml" and fills
// in defaults.
func Parse(data []byte, format string) (*Config, error) {
	cfg := &Config{}
	var err error
	switch format {
	case "json":
		err = json.Unmarshal(data, cfg)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, errors.New("E103").WithDetail(fmt.Sprintf("Unknown format %q", format))
	}
	if err != nil {
		return nil, errors.New("E101").
			WithDetail(err.Error()).
			WithSuggestion("Check that the file is valid " + strings.ToUpper(format))
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Find returns the first configuration file present in dir, or "" when
// there is none.
func Find(dir string) string {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := server.DefaultServerConfig()
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.MountPath == "" {
		c.MountPath = d.MountPath
	}
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = d.MaxRequestSize
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(d.ShutdownTimeout)
	}

	dc := d.ConnConfig
	if c.Conn.ReadTimeout == 0 {
		c.Conn.ReadTimeout = Duration(dc.ReadTimeout)
	}
	if c.Conn.WriteTimeout == 0 {
		c.Conn.WriteTimeout = Duration(dc.WriteTimeout)
	}
	if c.Conn.HeartbeatInterval == 0 {
		c.Conn.HeartbeatInterval = Duration(dc.HeartbeatInterval)
	}
	if c.Conn.MaxMessageSize == 0 {
		c.Conn.MaxMessageSize = dc.MaxMessageSize
	}
	if c.Conn.MaxOutboundQueue == 0 {
		c.Conn.MaxOutboundQueue = dc.MaxOutboundQueue
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}

	if c.Example == "" {
		c.Example = DefaultExample
	}
}

// Validate checks the configuration, including the server settings derived
// from it.
func (c *Config) Validate() error {
	var problems []string
	if _, err := c.level(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		problems = append(problems, fmt.Sprintf("log format %q must be text or json", c.Log.Format))
	}
	if c.Metrics.Address != "" && c.Metrics.Address == c.Address {
		problems = append(problems, "metrics address must differ from the server address")
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		problems = append(problems, fmt.Sprintf("metrics path %q must start with /", c.Metrics.Path))
	}
	if err := c.ServerConfig().ValidateConfig(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.New("E102").WithDetail(strings.Join(problems, "; "))
}

// ServerConfig converts the file configuration into a server configuration.
func (c *Config) ServerConfig() *server.ServerConfig {
	cfg := server.DefaultServerConfig().
		WithAddress(c.Address).
		WithMountPath(c.MountPath).
		WithMaxConnections(c.MaxConnections).
		WithConnConfig(&server.ConnConfig{
			ReadTimeout:       time.Duration(c.Conn.ReadTimeout),
			WriteTimeout:      time.Duration(c.Conn.WriteTimeout),
			HeartbeatInterval: time.Duration(c.Conn.HeartbeatInterval),
			MaxMessageSize:    c.Conn.MaxMessageSize,
			MaxOutboundQueue:  c.Conn.MaxOutboundQueue,
		})
	if c.AcceptOrigins != nil {
		cfg.WithAcceptOrigins(c.AcceptOrigins...)
	}
	cfg.MaxRequestSize = c.MaxRequestSize
	cfg.ShutdownTimeout = time.Duration(c.ShutdownTimeout)
	return cfg
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log level %q must be debug, info, warn or error", c.Log.Level)
	}
	return l, nil
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
