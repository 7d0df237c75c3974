// Package backend opens the memory store selected by configuration.
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/blueberrycongee/recall/internal/config"
	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/internal/memory/inmem"
	"github.com/blueberrycongee/recall/internal/memory/postgres"
	"github.com/blueberrycongee/recall/internal/memory/sqlite"
)

// DriverMemory selects the process-local store.
const DriverMemory = "memory"

// StatsProvider is implemented by stores backed by a connection pool.
type StatsProvider interface {
	DBStats() sql.DBStats
}

// Open opens the store named by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (memory.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case sqlite.DriverName:
		s, err := sqlite.Open(cfg.SQLite.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case postgres.DriverName:
		s, err := postgres.Open(ctx, postgres.Config{
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Postgres.MaxIdleConns,
			ConnLifetime: cfg.Postgres.ConnLifetime,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case DriverMemory:
		logger.Warn("using in-memory store, memories are lost on restart")
		return inmem.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.Driver)
	}
}
