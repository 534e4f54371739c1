package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-storefront/pkg/storefront/api"
	"github.com/tendant/simple-storefront/pkg/storefront/config"
	"github.com/tendant/simple-storefront/pkg/storefront/metrics"
)

func main() {
	configFile := flag.String("config", os.Getenv("STOREFRONT_CONFIG"), "optional YAML/JSON/TOML config file")
	flag.Parse()

	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: could not load .env: %v", err)
	}

	if err := run(*configFile); err != nil {
		log.Fatalf("storefront server: %v", err)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(config.WithFile(configFile), config.WithEnv())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := cfg.Build(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("failed to release resources", "error", err)
		}
	}()

	verifier, err := cfg.BuildVerifier(ctx, rt.Service)
	if err != nil {
		return fmt.Errorf("failed to build token verifier: %w", err)
	}

	opts := []api.ServerOption{api.WithServerLogger(logger)}
	if rt.Registry != nil {
		opts = append(opts, api.WithMetricsHandler(metrics.Handler(rt.Registry)))
	}
	// CORS for development
	if cfg.Environment == "development" {
		opts = append(opts, api.WithCORS("*"))
	}

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewServer(rt.Service, verifier, opts...).Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("storefront server starting",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"database", redactedDatabase(cfg.DatabaseURL),
			"storage", cfg.StorageURL,
			"auth", cfg.Auth.Mode,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

// redactedDatabase keeps the kind of DATABASE_URL for logs and drops the rest.
func redactedDatabase(raw string) string {
	target, err := config.ParseDatabaseURL(raw)
	if err != nil {
		return "invalid"
	}
	return target.Kind
}
