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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/api"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/config"
)

func main() {
	configPath := flag.String("config", "", "optional YAML/JSON/TOML config file, environment variables override it")
	flag.Parse()

	// Load configuration: .env, then file, then environment
	serverConfig, err := config.Load(
		config.WithDotEnv(".env"),
		config.WithFile(*configPath),
		config.WithEnv(),
	)
	if err != nil {
		log.Fatalf("Failed to load server configuration: %v", err)
	}
	logger := serverConfig.NewLogger()
	slog.SetDefault(logger)

	if err := run(serverConfig, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(serverConfig *config.ServerConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := serverConfig.Build(ctx, logger, reg)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			logger.Warn("failed to close stores", "err", err)
		}
	}()

	opts := api.Options{
		Service:        app.Service,
		Blobs:          app.Blobs,
		Layout:         app.Layout,
		Signer:         app.Signer,
		JWTSecret:      serverConfig.JWTSecret,
		MaxUploadBytes: serverConfig.MaxUploadBytes,
		Metrics:        app.Metrics,
		Logger:         logger,
	}
	if serverConfig.EnableMetrics {
		opts.Gatherer = reg
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           api.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("portfolio server starting", "port", serverConfig.Port, "env", serverConfig.Environment)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exiting")
	return nil
}
