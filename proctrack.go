// Package proctrack tracks long-running jobs in a SQL table and pushes the
// full table to live websocket subscribers on a fixed cadence.
package proctrack

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/loykin/proctrack/internal/broadcast"
	cfg "github.com/loykin/proctrack/internal/config"
	"github.com/loykin/proctrack/internal/history"
	hfactory "github.com/loykin/proctrack/internal/history/factory"
	"github.com/loykin/proctrack/internal/hub"
	"github.com/loykin/proctrack/internal/metrics"
	"github.com/loykin/proctrack/internal/registry"
	iapi "github.com/loykin/proctrack/internal/server"
	"github.com/loykin/proctrack/internal/store"
	sfactory "github.com/loykin/proctrack/internal/store/factory"
	itls "github.com/loykin/proctrack/internal/tls"
)

// Re-export core types for external consumers.

type Record = store.Record

type Snapshot = store.Snapshot

type Store = store.Store

type CreateRequest = registry.CreateRequest

type Config = cfg.Config

type HistorySink = history.Sink

type HistoryConfig = cfg.HistoryConfig

var (
	ErrWriteRejected  = store.ErrWriteRejected
	ErrInvalidRequest = registry.ErrInvalidRequest
)

// TimeLayout is the wire and storage format of start and end times.
const TimeLayout = store.TimeLayout

// Now returns the current local time in TimeLayout.
func Now() string { return store.FormatTime(time.Now()) }

func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

func DefaultConfig() (*Config, error) { return cfg.Default() }

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// App is a fully wired service: store, registry, hub, broadcast loop and
// HTTP surface.
type App struct {
	cfg      *Config
	logger   *slog.Logger
	store    store.Store
	sinks    history.Multi
	registry *registry.Service
	hub      *hub.Hub
	loop     *broadcast.Loop
	router   *iapi.Router
	tls      *tls.Config
}

// Open connects the store (creating the table if needed) and the history
// sinks, and wires the remaining components. It does not start serving.
func Open(ctx context.Context, c *Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tc, err := itls.Setup(c.Server.TLS)
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}
	st, err := sfactory.Open(ctx, c.Store, logger)
	if err != nil {
		return nil, err
	}
	sinks, err := hfactory.NewSinks(c.HistoryDSNs())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("history sinks: %w", err)
	}

	var sink history.Sink
	if len(sinks) > 0 {
		sink = sinks
	}
	svc := registry.New(st, sink, logger)
	h := hub.New(hub.Options{
		SendTimeout: c.Broadcast.SendTimeout,
		QueueSize:   c.Broadcast.QueueSize,
		Logger:      logger,
	})
	return &App{
		cfg:      c,
		logger:   logger,
		store:    st,
		sinks:    sinks,
		registry: svc,
		hub:      h,
		loop:     &broadcast.Loop{Reader: st, Hub: h, Interval: c.Broadcast.Interval, Logger: logger},
		router:   iapi.NewRouter(svc, h, c.Server.BasePath, logger),
		tls:      tc,
	}, nil
}

// Registry exposes the write API for in-process callers.
func (a *App) Registry() *registry.Service { return a.registry }

// Handler returns the HTTP handler for embedding in another server.
func (a *App) Handler() http.Handler { return a.router.Handler() }

// Subscribers reports the number of live subscribers.
func (a *App) Subscribers() int { return a.hub.Count() }

// RunLoop runs only the broadcast loop, for callers that mount Handler in
// their own server. It returns when ctx is cancelled.
func (a *App) RunLoop(ctx context.Context) { a.loop.Run(ctx) }

// Run serves HTTP (HTTPS when server.tls is enabled) on ln (or cfg.Server.Listen when ln is nil) and runs the
// broadcast loop until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context, ln net.Listener) error {
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.Listen)
		if err != nil {
			return fmt.Errorf("listen %s: %w", a.cfg.Server.Listen, err)
		}
	}
	scheme := "http"
	if a.tls != nil {
		ln = tls.NewListener(ln, a.tls)
		scheme = "https"
	}
	srv := iapi.NewServer(ln.Addr().String(), a.router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.RunLoop(gctx)
		return nil
	})
	g.Go(func() error {
		a.logger.Info("serving", "scheme", scheme, "addr", ln.Addr().String(), "base_path", a.cfg.Server.BasePath)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.hub.Close()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// Close releases the store and history sinks.
func (a *App) Close() error {
	a.hub.Close()
	hfactory.CloseAll(a.sinks)
	return a.store.Close()
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// NewMetricsServer returns a server exposing /metrics from the default registry.
func NewMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
