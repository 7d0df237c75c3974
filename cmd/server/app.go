package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/blueberrycongee/recall/internal/api"
	"github.com/blueberrycongee/recall/internal/backup"
	"github.com/blueberrycongee/recall/internal/cache"
	"github.com/blueberrycongee/recall/internal/config"
	"github.com/blueberrycongee/recall/internal/mcp"
	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/internal/memory/backend"
	"github.com/blueberrycongee/recall/internal/ollama"
	"github.com/blueberrycongee/recall/internal/resolver"
	"github.com/blueberrycongee/recall/internal/websearch"
)

// app holds the wired components behind the HTTP surface.
type app struct {
	api     *api.Handler
	mcp     http.Handler
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	a := &app{}

	store, err := backend.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	})
	if stats, ok := store.(backend.StatsProvider); ok {
		if stop := startDBPoolMetrics(ctx, cfg.Storage.Driver, stats, logger, 0); stop != nil {
			a.closers = append(a.closers, stop)
		}
	}

	client := ollama.New(ollama.Config{
		BaseURL: cfg.Ollama.BaseURL,
		Timeout: cfg.Ollama.Timeout,
	})

	embedCache, err := cache.New(cfg.Cache)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	if embedCache != nil {
		a.closers = append(a.closers, func() { _ = embedCache.Close() })
		logger.Info("embedding cache enabled", "backend", embedCache.Backend())
	}

	models := resolver.New(client, logger)
	svc := memory.NewService(store, cache.NewEmbedder(client, embedCache, logger), models, logger)

	var search *websearch.Searcher
	if cfg.WebSearch.Enabled {
		search = websearch.New(websearch.Config{
			BaseURL:    cfg.WebSearch.BaseURL,
			MaxResults: cfg.WebSearch.MaxResults,
			Timeout:    cfg.WebSearch.Timeout,
		}, logger)
	}

	var exporter api.Exporter
	if cfg.Backup.Enabled {
		s3, err := backup.NewS3Exporter(ctx, backup.Config{
			Bucket:          cfg.Backup.Bucket,
			Prefix:          cfg.Backup.Prefix,
			Region:          cfg.Backup.Region,
			Endpoint:        cfg.Backup.Endpoint,
			UsePathStyle:    cfg.Backup.UsePathStyle,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init backup exporter: %w", err)
		}
		exporter = s3
	}

	threshold := cfg.Memory.SearchThreshold
	opts := api.Options{
		Memory:   svc,
		Upstream: client,
		Resolver: models,
		Exporter: exporter,
		Defaults: api.Defaults{
			SearchLimit:     cfg.Memory.SearchLimit,
			SearchThreshold: &threshold,
			ListLimit:       cfg.Memory.ListLimit,
		},
		Logger:       logger,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	// A typed nil would make the handler believe search is configured.
	if search != nil {
		opts.Search = search
	}
	a.api = api.NewHandler(opts)

	if cfg.MCP.Enabled {
		mcpOpts := mcp.Options{Logger: logger}
		if search != nil {
			mcpOpts.Search = search
		}
		a.mcp = mcp.Handler(mcp.NewServer(svc, mcpOpts), cfg.MCP.Path)
	}
	return a, nil
}

// Close releases every component in reverse construction order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
