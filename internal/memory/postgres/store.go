// Package postgres implements memory.Store on PostgreSQL. The schema is
// managed by golang-migrate from embedded SQL files.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/internal/metrics"
)

// DriverName is the metrics label for this backend.
const DriverName = "postgres"

//go:embed migrations/*.sql
var migrations embed.FS

// Config contains PostgreSQL connection settings.
type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// DefaultConfig returns sensible pool defaults.
func DefaultConfig() Config {
	return Config{
		DSN:          "postgres://localhost:5432/recall?sslmode=disable",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		ConnLifetime: 5 * time.Minute,
	}
}

// Store implements memory.Store using PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	metrics.UpdateDBPoolStats(DriverName, db.Stats())
	return &Store{db: db, logger: logger}, nil
}

// Migrate applies the embedded migrations to db.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, DriverName, driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, rec memory.Record) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO memories (content, category, embedding, model) VALUES ($1, $2, $3, $4) RETURNING id`,
		rec.Content, rec.Category, memory.EncodeEmbedding(rec.Embedding), rec.Model,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert memory: %w", err)
	}
	return id, nil
}

func (s *Store) All(ctx context.Context) ([]memory.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, category, embedding, model, created_at FROM memories ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var out []memory.Record
	for rows.Next() {
		var (
			rec  memory.Record
			blob []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Category, &blob, &rec.Model, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		vec, err := memory.DecodeEmbedding(blob)
		if err != nil {
			s.logger.Warn("skipping memory with unreadable embedding", "id", rec.ID, "error", err)
			continue
		}
		rec.Embedding = vec
		rec.CreatedAt = localWallClock(rec.CreatedAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, id int64, content, model string, embedding []float32) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET content = $1, embedding = $2, model = $3 WHERE id = $4`,
		content, memory.EncodeEmbedding(embedding), model, id,
	)
	if err != nil {
		return false, fmt.Errorf("update memory %d: %w", id, err)
	}
	return affected(res)
}

func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete memory %d: %w", id, err)
	}
	return affected(res)
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return fmt.Errorf("clear memories: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, limit int) ([]memory.Record, error) {
	if limit <= 0 {
		limit = memory.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, category, model, created_at FROM memories
		 ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	out := make([]memory.Record, 0, limit)
	for rows.Next() {
		var rec memory.Record
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Category, &rec.Model, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		rec.CreatedAt = localWallClock(rec.CreatedAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DBStats exposes connection pool statistics for metrics.
func (s *Store) DBStats() sql.DBStats {
	return s.db.Stats()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// localWallClock reinterprets a TIMESTAMP WITHOUT TIME ZONE, which the
// driver decodes as UTC, as local wall-clock time.
func localWallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local)
}

var _ memory.Store = (*Store)(nil)
