// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/arkvault/internal/api"
	"github.com/starford/arkvault/internal/atomicfile"
	"github.com/starford/arkvault/internal/dirindex"
	"github.com/starford/arkvault/internal/identity"
	"github.com/starford/arkvault/internal/mcpserver"
	"github.com/starford/arkvault/internal/monitor"
	"github.com/starford/arkvault/internal/sse"
	"github.com/starford/arkvault/internal/storage"
	"github.com/starford/arkvault/internal/storeservice"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{out: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.root == "" {
		app.root = app.config.Root.Path
	}
	return app, nil
}

// newLogger installs the structured JSON logger. stdout carries command
// reports, so logs go to stderr.
func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// newStoreService loads the machine identity and builds the storage service
// for root.
func newStoreService(cfg *Config, root string, logger *slog.Logger) (*storeservice.Service, error) {
	appID, err := identity.Load(cfg.Identity.Dir)
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	logger.Debug("Identity loaded", slog.String("app_id", appID))
	return storeservice.NewService(cfg.Storage.Resolver(root), logger,
		storage.WithFileOptions(
			atomicfile.WithWriter(appID),
			atomicfile.WithRetain(cfg.Storage.Retain),
			atomicfile.WithLogger(logger),
		),
	), nil
}

// Run builds the index of the root and either prints the collision report
// or keeps the index fresh until interrupted, optionally serving the status
// API alongside.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPath := cfg.Index.DBFile(app.root)
	logger.Info("Configuration loaded",
		slog.String("root", app.root),
		slog.String("index_db", dbPath),
		slog.Duration("interval", app.interval),
		slog.Bool("http_enabled", cfg.App.HTTP.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	var db *dirindex.DB
	if info, statErr := os.Stat(app.root); statErr == nil && info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("create index dir: %w", err)
		}
		if db, err = dirindex.Open(dbPath); err != nil {
			return fmt.Errorf("init index: %w", err)
		}
		defer db.Close()
	}

	build := func(ctx context.Context, root string) (monitor.Index, error) {
		ixOpts := []dirindex.Option{
			dirindex.WithIgnore(cfg.Index.Ignore...),
			dirindex.WithLogger(logger),
		}
		if db != nil {
			ixOpts = append(ixOpts, dirindex.WithDB(db))
		}
		ix, err := dirindex.Build(ctx, root, ixOpts...)
		if err != nil {
			return nil, err
		}
		return ix, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	mon := monitor.New(monitor.Config{Root: app.root, Interval: app.interval, Watch: cfg.Index.Watch}, build,
		monitor.WithOutput(app.out),
		monitor.WithLogger(logger),
		monitor.WithMetrics(monitor.NewMetrics(reg)),
		monitor.WithCallback(broker.PublishIndexEvent),
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mon.Run(gCtx)
	})

	if cfg.App.HTTP.Enabled && app.interval > 0 {
		svc, err := newStoreService(cfg, app.root, logger)
		if err != nil {
			return err
		}
		httpServer := &http.Server{
			Addr:              cfg.App.HTTP.Address(),
			Handler:           newHTTPHandler(cfg, mon, svc, broker, reg),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func newHTTPHandler(cfg *Config, ix api.IndexProvider, svc *storeservice.Service, broker *sse.Broker, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ix.Index() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"building"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Mount("/api", api.NewRouter(ix, svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))
	return r
}

// FileCommand is one storage operation requested on the command line.
type FileCommand struct {
	Op       string // append, insert, read or list
	Storage  string
	Kind     string
	ID       string
	Content  string
	Format   string
	Versions bool
}

// RunFile executes a storage command and prints its result.
func RunFile(ctx context.Context, fc FileCommand, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config)
	svc, err := newStoreService(app.config, app.root, logger)
	if err != nil {
		return err
	}
	return runFile(ctx, svc, fc, app.out)
}

func runFile(ctx context.Context, svc *storeservice.Service, fc FileCommand, out io.Writer) error {
	switch fc.Op {
	case "append":
		return svc.Append(ctx, fc.Storage, fc.Kind, fc.ID, fc.Content, fc.Format)
	case "insert":
		return svc.Insert(ctx, fc.Storage, fc.Kind, fc.ID, fc.Content, fc.Format)
	case "read":
		d, err := svc.Read(ctx, fc.Storage, fc.Kind, fc.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, d.Content)
		return nil
	case "list":
		report, err := svc.List(ctx, fc.Storage, fc.Kind, fc.Versions)
		if err != nil {
			return err
		}
		if s := report.String(); s != "" {
			fmt.Fprintln(out, s)
		}
		return nil
	default:
		return fmt.Errorf("unknown file command %q", fc.Op)
	}
}

// RunMCP serves the storage tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config)
	svc, err := newStoreService(app.config, app.root, logger)
	if err != nil {
		return err
	}
	logger.Info("MCP server starting", slog.String("root", app.root))
	return mcpserver.New(svc, app.version).ServeStdio()
}
