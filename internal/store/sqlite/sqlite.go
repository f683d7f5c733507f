package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/proctrack/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// The pool is pinned to one connection so every statement from every
// goroutine is serialized through a single handle.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens a SQLite database at path. Use ":memory:" for an in-memory database.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	d.SetMaxOpenConns(1)
	// busy timeout helps when another process holds the file lock
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d, logger: slog.Default()}, nil
}

// WithLogger replaces the logger used for informational messages.
func (s *DB) WithLogger(l *slog.Logger) *DB {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *DB) CreateTable(ctx context.Context) (bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name=?;`, store.TableName).Scan(&name)
	switch {
	case err == nil:
		s.logger.Info("table already exists, skipping creation", "table", store.TableName)
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS processes(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			process_id TEXT NOT NULL UNIQUE,
			file_name TEXT DEFAULT NULL,
			file_path TEXT DEFAULT NULL,
			description TEXT DEFAULT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT DEFAULT NULL,
			percentage REAL DEFAULT NULL
		);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *DB) Insert(ctx context.Context, rec store.Record) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO processes(process_id, file_name, file_path, description, start_time, end_time, percentage)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(process_id) DO NOTHING;`, rec.Args()...)
	if err != nil {
		return err
	}
	return store.CheckAffected(res.RowsAffected())
}

func (s *DB) ReadAll(ctx context.Context) ([]store.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT process_id, file_name, file_path, description, start_time, end_time, percentage
		FROM processes
		ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]store.Snapshot, 0)
	for rows.Next() {
		snap, err := store.ScanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *DB) UpdateEndTime(ctx context.Context, processID, endTime string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE processes SET end_time=? WHERE process_id=?;`, endTime, processID)
	if err != nil {
		return err
	}
	return store.CheckAffected(res.RowsAffected())
}

func (s *DB) UpdatePercentage(ctx context.Context, processID string, percentage float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE processes SET percentage=? WHERE process_id=?;`, percentage, processID)
	if err != nil {
		return err
	}
	return store.CheckAffected(res.RowsAffected())
}

func (s *DB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *DB) Close() error { return s.db.Close() }
