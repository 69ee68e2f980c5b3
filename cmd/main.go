package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/liusai0820/smartscore/internal/adapters/extract"
	"github.com/liusai0820/smartscore/internal/adapters/http/api"
	"github.com/liusai0820/smartscore/internal/adapters/http/site"
	"github.com/liusai0820/smartscore/internal/adapters/http/swagger"
	"github.com/liusai0820/smartscore/internal/adapters/importer"
	"github.com/liusai0820/smartscore/internal/adapters/repository"
	service "github.com/liusai0820/smartscore/internal/app"
	"github.com/liusai0820/smartscore/internal/auth"
	"github.com/liusai0820/smartscore/internal/config"
	"github.com/liusai0820/smartscore/pkg/logger"
	"github.com/liusai0820/smartscore/pkg/metrics"
)

// HTTP server timeout constants. WriteTimeout leaves room for extraction
// calls, which wait on the upstream model.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 90 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
	tokenIssuer            = "smartscore"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger format comes from config, so it isn't available yet.
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "smartscore stopped with error", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, closeStore, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	defer svc.Stop()

	if err := seed(ctx, svc, cfg, log); err != nil {
		return err
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(svc, cfg, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("storage", cfg.Storage),
			logger.Bool("extraction", cfg.ExtractionEnabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// buildService assembles the store, token issuer and extractor and starts
// the service. The returned func closes a store opened here.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, func(), error) {
	issuer, err := auth.NewIssuer(cfg.SessionSecret, tokenIssuer, cfg.SessionTTL())
	if err != nil {
		return nil, nil, fmt.Errorf("session issuer: %w", err)
	}

	opts := []service.Option{
		service.WithIssuer(issuer),
		service.WithAdminPassword(cfg.AdminPassword),
		service.WithBcryptCost(cfg.BcryptCost),
		service.WithShardCount(cfg.ShardCount),
		service.WithLogger(log),
	}

	closeStore := func() {}
	if cfg.Storage == config.StorageSQLite {
		store, err := repository.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		opts = append(opts, service.WithStore(store))
		closeStore = func() {
			if err := store.Close(); err != nil {
				log.Error(ctx, "closing store failed", logger.Error(err))
			}
		}
	}

	if ex := newExtractor(cfg, log); ex != nil {
		opts = append(opts, service.WithExtractor(ex))
	}
	if cfg.AdminPassword == "" {
		log.Warn(ctx, "admin_password is empty; admin login is disabled")
	}

	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("start service: %w", err)
	}
	return svc, closeStore, nil
}

// newExtractor returns nil when no API key is configured.
func newExtractor(cfg *config.Config, log logger.Logger) extract.Extractor {
	if !cfg.ExtractionEnabled() {
		return nil
	}
	ex, err := extract.NewOpenAIExtractor(cfg.AIAPIKey,
		extract.WithBaseURL(cfg.AIBaseURL),
		extract.WithModel(cfg.AIModel),
		extract.WithMaxChars(cfg.AIMaxInputChars),
		extract.WithTimeout(cfg.AITimeout()),
		extract.WithRateLimit(rate.Limit(cfg.AIRatePerSec), 1),
		extract.WithLogger(log.Named("extract")),
	)
	if err != nil {
		log.Warn(context.Background(), "extraction disabled", logger.Error(err))
		return nil
	}
	return ex
}

// seed imports seed_file when set, then the built-in panel when enabled.
// Seed projects only load into an empty programme and SeedDefaults is a
// no-op once any reviewer exists, so a restart keeps the running event.
func seed(ctx context.Context, svc *service.Service, cfg *config.Config, log logger.Logger) error {
	if cfg.SeedFile != "" {
		f, err := os.Open(cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()
		batch, err := importer.Parse(f)
		if err != nil {
			return fmt.Errorf("parse seed file %s: %w", cfg.SeedFile, err)
		}
		report, err := svc.SeedBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("import seed file: %w", err)
		}
		log.Info(ctx, "seed file imported",
			logger.String("path", cfg.SeedFile),
			logger.Int("reviewers_created", report.ReviewersCreated),
			logger.Int("projects_created", report.ProjectsCreated))
	}
	if cfg.SeedDefaults {
		n, err := svc.SeedDefaults(ctx)
		if err != nil {
			return fmt.Errorf("seed default reviewers: %w", err)
		}
		if n > 0 {
			log.Info(ctx, "default reviewers seeded", logger.Int("count", n))
		}
	}
	return nil
}

func newRouter(svc *service.Service, cfg *config.Config, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	api.NewServer(svc, svc,
		api.WithSecureCookies(cfg.SecureCookies),
		api.WithLogger(log.Named("api")),
	).Register(r)
	swagger.Register(r)
	site.Register(r)
	return r
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the population gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the population gauges as a side effect.
			_ = svc.GetStats(ctx)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
