// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	apiconnect "github.com/osa030/hideseek/internal/api/connect"
	"github.com/osa030/hideseek/internal/api/hideseekv1"
	"github.com/osa030/hideseek/internal/app/filter"
	"github.com/osa030/hideseek/internal/app/notification"
	"github.com/osa030/hideseek/internal/app/scheduler"
	"github.com/osa030/hideseek/internal/app/session"
	"github.com/osa030/hideseek/internal/infra/config"
	"github.com/osa030/hideseek/internal/infra/logger"
	"github.com/osa030/hideseek/internal/infra/memstore"
	"github.com/osa030/hideseek/internal/infra/metrics"
	"github.com/osa030/hideseek/internal/infra/sqlite"
)

var (
	app        = kingpin.New("hideseek-server", "hide-and-seek game session server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	logFormat  = app.Flag("log-format", "Log format for stdout").Default("console").Enum("console", "json")

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available submission filters and exit")
)

func init() {
	// start command (default)
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
		Format: *logFormat,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %+v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		os.Exit(1)
	}
}

// run executes the main server logic so deferred cleanups run on every exit path.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			zlog.Error().Msgf("Failed to close store: %v", err)
		}
	}()

	m := metrics.New()

	sched := scheduler.New(scheduler.Config{
		Workers:  cfg.Session.SchedulerWorkers,
		Observer: m,
	})
	m.WatchBacklog(sched.Backlog)
	gateway := notification.NewGateway(notification.Config{
		QueueSize:   cfg.Notification.QueueSize,
		RatePerSec:  cfg.Notification.RatePerSec,
		Burst:       cfg.Notification.Burst,
		SendTimeout: cfg.Notification.SendTimeout,
		Observer:    m,
	})

	sessionMgr, err := session.NewManager(cfg, store, sched, gateway, session.WithObserver(m))
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}

	for _, name := range filter.Names() {
		zlog.Info().Msgf("Submission filter %s enabled=%v", name, cfg.IsFilterEnabled(name))
	}

	if err := sessionMgr.SeedZones(ctx, cfg.SeedZones()); err != nil {
		return errors.Wrap(err, "failed to seed zones")
	}

	gateway.Start(ctx)
	defer gateway.Close()

	if err := sched.Start(ctx, sessionMgr.HandleTrigger); err != nil {
		return errors.Wrap(err, "failed to start scheduler")
	}
	defer sched.Stop()

	resumed, err := sessionMgr.Resume(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to resume sessions")
	}
	zlog.Info().Msgf("Resumed %d unfinished sessions", resumed)

	// Streams end when done is closed so the server can drain them
	done := make(chan struct{})
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(newRouter(cfg, sessionMgr, gateway, m, done), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server error")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info().Msg("Shutting down...")
		close(done)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("Failed to shutdown server: %v", err)
		}
		return nil
	})

	// Give the listener a moment before running hooks that may call the server
	time.AfterFunc(100*time.Millisecond, func() {
		if gctx.Err() == nil {
			executeHooks(cfg.Server.Hooks.OnStarted, "on_started")
		}
	})

	err = g.Wait()
	zlog.Info().Msg("Server stopped")
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")
	return err
}

// openStore opens the configured persistence backend.
func openStore(ctx context.Context, cfg *config.Config) (session.Store, func() error, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		zlog.Info().Msgf("Opening sqlite store: path=%s", cfg.Store.Path)
		s, err := sqlite.Open(ctx, cfg.Store.Path, cfg.Automation)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to open sqlite store")
		}
		return s, s.Close, nil
	default:
		zlog.Warn().Msg("Using in-memory store, sessions are lost on restart")
		return memstore.New(cfg.Automation), func() error { return nil }, nil
	}
}

// newRouter mounts the RPC services, health check and metrics endpoint.
func newRouter(cfg *config.Config, mgr *session.Manager, gateway *notification.Gateway, m *metrics.Metrics, done <-chan struct{}) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.AccessLog())
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", m.Handler())

	gamePath, gameHandler := hideseekv1.NewGameServiceHandler(
		apiconnect.NewGameService(mgr, gateway, cfg, done),
	)
	adminPath, adminHandler := hideseekv1.NewAdminServiceHandler(
		apiconnect.NewAdminService(mgr, cfg),
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token)),
	)
	r.Mount(gamePath, gameHandler)
	r.Mount(adminPath, adminHandler)
	return r
}

// printFilters prints available filters.
func printFilters() {
	registered := filter.GetRegistered()
	fmt.Println("Available Filters:")
	for _, name := range filter.Names() {
		f := registered[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-20s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
