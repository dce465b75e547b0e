// cmd/miner/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-file-miner/internal/api"
	"github-file-miner/internal/cache"
	"github-file-miner/internal/config"
	"github-file-miner/internal/database"
	"github-file-miner/internal/github"
	"github-file-miner/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully", "stages", cfg.Stages)

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return start(ctx, cfg, logger)
}

// start reads the pipeline inputs, then opens the clients the selected stages
// need, runs them and serves if asked to.
func start(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// 4. Read local inputs before touching the network or the database
	p := pipeline.New(cfg, pipeline.Deps{}, logger)
	if err := p.Prepare(); err != nil {
		return fmt.Errorf("failed to prepare pipeline: %w", err)
	}

	// 5. Initialize the clients the selected stages need
	deps, closeDeps, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDeps()
	p.Attach(deps)

	// 6. Run the batch stages
	if err := p.Run(ctx); err != nil {
		return err
	}
	logger.Info("Pipeline finished")

	if !cfg.Has(config.StageServe) {
		return nil
	}

	// 7. Serve the loaded rows until shutdown
	return serve(ctx, cfg.HTTPAddr, api.NewRouter(database.New(deps.DB), logger), logger)
}

func openDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Deps, func(), error) {
	var deps pipeline.Deps
	closeDeps := func() {}
	if cfg.Has(config.StageAcquire) || cfg.Has(config.StageClassify) || cfg.Has(config.StageURLs) {
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return deps, closeDeps, fmt.Errorf("failed to open cache: %w", err)
		}
		deps.Store = store
	}
	if cfg.Has(config.StageAcquire) || cfg.Has(config.StagePlan) {
		deps.Client = github.NewClient(github.Options{
			Token:        cfg.GithubToken,
			AuthMode:     cfg.GithubAuthMode,
			APIURL:       cfg.GithubAPIURL,
			RequestDelay: cfg.RequestDelay,
			Timeout:      cfg.RequestTimeout,
		}, logger)
	}
	if cfg.Has(config.StageLoad) || cfg.Has(config.StageServe) {
		dbpool, err := pgxpool.New(ctx, cfg.DBURL)
		if err != nil {
			return deps, closeDeps, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("Database connection established")

		if err := runMigrations(cfg.MigrationsPath, cfg.DBURL); err != nil {
			dbpool.Close()
			return deps, closeDeps, fmt.Errorf("failed to run database migrations: %w", err)
		}
		logger.Info("Database migrations applied successfully")
		deps.DB = dbpool
		closeDeps = dbpool.Close
	}
	return deps, closeDeps, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*cache.Store, error) {
	var backend cache.Backend
	switch cfg.CacheBackend {
	case "s3":
		b, err := cache.NewS3Backend(cache.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		b, err := cache.NewFileBackend(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		backend = b
	}
	return cache.NewStore(ctx, backend, logger)
}

func serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received. Stopping HTTP server.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMigrations(sourceURL, dbURL string) error {
	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
