// Package sqlite implements memory.Store on a local SQLite file using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/internal/metrics"
)

// DriverName is the metrics label for this backend.
const DriverName = "sqlite"

// timeLayout matches datetime('now','localtime').
const timeLayout = "2006-01-02 15:04:05"

// Store implements memory.Store using SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the database at path and brings its schema up to
// date. Rows written by earlier versions are kept.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serialises writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	metrics.UpdateDBPoolStats(DriverName, db.Stats())
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS memories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			category TEXT DEFAULT 'General',
			embedding BLOB NOT NULL,
			model TEXT DEFAULT '',
			created_at TEXT DEFAULT (datetime('now', 'localtime'))
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate %q: %w", firstLine(stmt), err)
		}
	}

	if err := ensureColumn(s.db, "memories", "category", `TEXT DEFAULT 'General'`); err != nil {
		return err
	}
	return ensureColumn(s.db, "memories", "model", `TEXT DEFAULT ''`)
}

// ensureColumn adds column to table when an older schema lacks it.
func ensureColumn(db *sql.DB, table, column, definition string) error {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return fmt.Errorf("pragma table_info(%s): %w", table, err)
	}
	defer rows.Close()

	var (
		cid     int
		name    string
		colType string
		notNull int
		dflt    sql.NullString
		pk      int
	)
	for rows.Next() {
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scan table_info(%s): %w", table, err)
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate table_info(%s): %w", table, err)
	}
	// The single connection is held until rows are closed.
	rows.Close()

	stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition)
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

// Insert stores rec and returns its new id.
func (s *Store) Insert(ctx context.Context, rec memory.Record) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (content, category, embedding, model) VALUES (?, ?, ?, ?)`,
		rec.Content, rec.Category, memory.EncodeEmbedding(rec.Embedding), rec.Model,
	)
	if err != nil {
		return 0, fmt.Errorf("insert memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert memory: %w", err)
	}
	return id, nil
}

// All returns every decodable record. Rows with a corrupt embedding are
// logged and skipped.
func (s *Store) All(ctx context.Context) ([]memory.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, COALESCE(category, 'General'), embedding, COALESCE(model, ''), COALESCE(created_at, '')
		 FROM memories ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var out []memory.Record
	for rows.Next() {
		var (
			rec     memory.Record
			blob    []byte
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Category, &blob, &rec.Model, &created); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		vec, err := memory.DecodeEmbedding(blob)
		if err != nil {
			s.logger.Warn("skipping memory with unreadable embedding", "id", rec.ID, "error", err)
			continue
		}
		rec.Embedding = vec
		rec.CreatedAt = parseTime(created)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return out, nil
}

// Update overwrites the content, model and embedding of record id.
func (s *Store) Update(ctx context.Context, id int64, content, model string, embedding []float32) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET content = ?, embedding = ?, model = ? WHERE id = ?`,
		content, memory.EncodeEmbedding(embedding), model, id,
	)
	if err != nil {
		return false, fmt.Errorf("update memory %d: %w", id, err)
	}
	return affected(res)
}

// Delete removes record id and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete memory %d: %w", id, err)
	}
	return affected(res)
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return fmt.Errorf("clear memories: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first, without embeddings.
func (s *Store) List(ctx context.Context, limit int) ([]memory.Record, error) {
	if limit <= 0 {
		limit = memory.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, COALESCE(category, 'General'), COALESCE(model, ''), COALESCE(created_at, '')
		 FROM memories ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	out := make([]memory.Record, 0, limit)
	for rows.Next() {
		var (
			rec     memory.Record
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Category, &rec.Model, &created); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		rec.CreatedAt = parseTime(created)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return out, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DBStats exposes connection pool statistics for metrics.
func (s *Store) DBStats() sql.DBStats {
	return s.db.Stats()
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// parseTime reads a datetime('now','localtime') value. Older rows may carry
// an RFC 3339 value instead.
func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.ParseInLocation(timeLayout, v, time.Local); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(time.Local)
	}
	return time.Time{}
}

func firstLine(stmt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(stmt), "\n")
	return line
}

var _ memory.Store = (*Store)(nil)
