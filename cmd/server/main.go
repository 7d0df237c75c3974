// Package main is the entry point for the recall memory server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/blueberrycongee/recall/internal/config"
	"github.com/blueberrycongee/recall/internal/observability"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to configuration file (defaults plus PORT/OLLAMA_BASE_URL when empty)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "recall:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bootstrap logger until the configuration is known.
	level := new(slog.LevelVar)
	logger := observability.NewLogger(observability.LoggerConfig{Level: level, JSONFormat: true}, observability.NewRedactor())

	secrets := newSecretResolver(logger)
	defer secrets.Close()

	cfgManager, err := config.NewManager(configPath, logger, config.WithResolver(secrets.Resolve))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	defer cfgManager.Close()
	cfg := cfgManager.Get()

	logExport, err := observability.InitLogsExport(ctx, observability.LogsExportConfig{
		Enabled:     cfg.Tracing.ExportLogs,
		Protocol:    cfg.Tracing.Protocol,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init log export: %w", err)
	}

	level.Set(observability.ParseLevel(cfg.Logging.Level))
	logger = observability.NewLogger(observability.LoggerConfig{
		Level:      level,
		AddSource:  cfg.Logging.AddSource,
		JSONFormat: cfg.Logging.Format != "text",
		Export:     logExport,
	}, observability.NewRedactor())
	slog.SetDefault(logger)
	logger.Info("starting recall", "version", version, "config", cfgManager.Status().Path)

	cfgManager.OnChange(func(next *config.Config) {
		level.Set(observability.ParseLevel(next.Logging.Level))
		logger.Info("configuration applied", "log_level", next.Logging.Level)
	})
	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Protocol:    cfg.Tracing.Protocol,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	mp, err := observability.InitMetricsExport(ctx, observability.MetricsExportConfig{
		Enabled:     cfg.Tracing.ExportMetrics,
		Protocol:    cfg.Tracing.Protocol,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Insecure:    cfg.Tracing.Insecure,
		Interval:    cfg.Tracing.MetricsInterval,
	})
	if err != nil {
		return fmt.Errorf("init metrics export: %w", err)
	}

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	middleware, closeMiddleware, err := buildMiddlewareStack(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware(buildMux(cfg, app, logger)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port, "storage", cfg.Storage.Driver, "ollama", cfg.Ollama.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	closeMiddleware()
	app.Close()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown error", "error", err)
	}
	if err := mp.Shutdown(shutdownCtx); err != nil {
		logger.Error("meter shutdown error", "error", err)
	}
	logger.Info("server stopped")
	if err := logExport.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintln(os.Stderr, "recall: log export shutdown:", err)
	}
	return nil
}
