package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/pushmodel-dev/pushmodel/internal/config"
	"github.com/pushmodel-dev/pushmodel/internal/errors"
	"github.com/pushmodel-dev/pushmodel/internal/examples/chat"
	"github.com/pushmodel-dev/pushmodel/internal/examples/messenger"
	"github.com/pushmodel-dev/pushmodel/internal/examples/todo"
	"github.com/pushmodel-dev/pushmodel/pkg/middleware"
	"github.com/pushmodel-dev/pushmodel/pkg/model"
	"github.com/pushmodel-dev/pushmodel/pkg/server"
)

var examples = map[string]func() *model.Model{
	"todo":      todo.New,
	"chat":      chat.New,
	"messenger": func() *model.Model { return messenger.New() },
}

func exampleNames() []string {
	names := make([]string, 0, len(examples))
	for name := range examples {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func newModel(name string) (*model.Model, error) {
	newFn, ok := examples[name]
	if !ok {
		return nil, errors.New("E120").
			WithDetail("No example named " + name).
			WithSuggestion("Use one of: " + strings.Join(exampleNames(), ", "))
	}
	return newFn(), nil
}

func serveCmd() *cobra.Command {
	var (
		configPath  string
		example     string
		address     string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an example model",
		Long: `Serve one of the built-in example models.

Configuration is read from --config, or from pushmodel.json, pushmodel.yaml
or pushmodel.yml in the working directory. Flags override the file.

Examples:
  pushmodel serve
  pushmodel serve --example messenger --addr :9000
  pushmodel serve --config pushmodel.yaml --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if example != "" {
				cfg.Example = example
			}
			if address != "" {
				cfg.Address = address
			}
			if metricsAddr != "" {
				cfg.Metrics.Address = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file")
	cmd.Flags().StringVarP(&example, "example", "e", "", "Example model: "+strings.Join(exampleNames(), ", "))
	cmd.Flags().StringVarP(&address, "addr", "a", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics listen address (disabled when empty)")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.Find(".")
	}
	if path == "" {
		return config.New(), nil
	}
	return config.LoadFile(path)
}

// app is a configured server plus the registry its metrics are
// exported from.
type app struct {
	srv      *server.Server
	registry *prometheus.Registry
	logger   *slog.Logger
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	m, err := newModel(cfg.Example)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sc := cfg.ServerConfig().WithMiddleware(
		middleware.OpenTelemetry(),
		middleware.Prometheus(
			middleware.WithNamespace(cfg.Metrics.Namespace),
			middleware.WithRegistry(reg),
		),
	)
	srv := server.New(m, sc)
	srv.SetLogger(logger)
	lifetime := promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Namespace: cfg.Metrics.Namespace,
		Name:      "connection_duration_seconds",
		Help:      "Lifetime of closed WebSocket connections",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})
	srv.Conns().SetOnConnClose(func(c *server.Conn) {
		lifetime.Observe(time.Since(c.CreatedAt).Seconds())
	})
	reg.MustRegister(middleware.NewServerCollector(srv, middleware.WithNamespace(cfg.Metrics.Namespace)))

	return &app{srv: srv, registry: reg, logger: logger}, nil
}

// metricsHandler serves Prometheus metrics at path and a health check at
// /healthz.
func (a *app) metricsHandler(path string) http.Handler {
	r := chi.NewRouter()
	r.Handle(path, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"connections": a.srv.Conns().Count(),
		})
	})
	return r
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return errors.New("E140").WithDetail("Address " + cfg.Address).Wrap(err)
	}
	var mln net.Listener
	if cfg.Metrics.Address != "" {
		if mln, err = net.Listen("tcp", cfg.Metrics.Address); err != nil {
			ln.Close()
			return errors.New("E140").WithDetail("Metrics address " + cfg.Metrics.Address).Wrap(err)
		}
	}

	success("Serving %s at %s%s", cfg.Example, ln.Addr(), cfg.MountPath)
	if mln != nil {
		info("Metrics at http://%s%s", mln.Addr(), cfg.Metrics.Path)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.serve(ctx, ln, mln, cfg.Metrics.Path)
}

// serve runs the application listener and the optional metrics listener
// until ctx is done or either fails, then shuts both down.
func (a *app) serve(ctx context.Context, ln, mln net.Listener, metricsPath string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.srv.Serve(ln)
	})

	var msrv *http.Server
	if mln != nil {
		msrv = &http.Server{
			Handler:           a.metricsHandler(metricsPath),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := msrv.Serve(mln); !stderrors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down...")
		shutdownCtx := context.WithoutCancel(gctx)
		err := a.srv.Shutdown(shutdownCtx)
		if msrv != nil {
			err = multierr.Append(err, msrv.Shutdown(shutdownCtx))
		}
		if err != nil {
			return errors.New("E141").Wrap(err)
		}
		return nil
	})

	return g.Wait()
}
