package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/proctrack/internal/store"
)

// DB implements store.Store for PostgreSQL through the pgx stdlib driver.
// database/sql pools connections; each statement runs atomically on its own.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d, logger: slog.Default()}, nil
}

// WithLogger replaces the logger used for informational messages.
func (p *DB) WithLogger(l *slog.Logger) *DB {
	if l != nil {
		p.logger = l
	}
	return p
}

// SetPool applies connection pool limits from cfg; zero values are ignored.
func (p *DB) SetPool(cfg store.Config) {
	if cfg.MaxOpenConns > 0 {
		p.db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		p.db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxAge > 0 {
		p.db.SetConnMaxLifetime(cfg.ConnMaxAge)
	}
}

func (p *DB) CreateTable(ctx context.Context) (bool, error) {
	var exists bool
	if err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		);`, store.TableName).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		p.logger.Info("table already exists, skipping creation", "table", store.TableName)
		return false, nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS processes(
			id BIGSERIAL PRIMARY KEY,
			process_id TEXT NOT NULL UNIQUE,
			file_name TEXT NULL,
			file_path TEXT NULL,
			description TEXT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NULL,
			percentage DOUBLE PRECISION NULL
		);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (p *DB) Insert(ctx context.Context, rec store.Record) error {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO processes(process_id, file_name, file_path, description, start_time, end_time, percentage)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT(process_id) DO NOTHING;`, rec.Args()...)
	if err != nil {
		return err
	}
	return store.CheckAffected(res.RowsAffected())
}

func (p *DB) ReadAll(ctx context.Context) ([]store.Snapshot, error) {
	rows, err := p.db.QueryContext(ctx, `
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

func (p *DB) UpdateEndTime(ctx context.Context, processID, endTime string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE processes SET end_time=$1 WHERE process_id=$2;`, endTime, processID)
	if err != nil {
		return err
	}
	return store.CheckAffected(res.RowsAffected())
}

func (p *DB) UpdatePercentage(ctx context.Context, processID string, percentage float64) error {
	res, err := p.db.ExecContext(ctx, `UPDATE processes SET percentage=$1 WHERE process_id=$2;`, percentage, processID)
	if err != nil {
		return err
	}
	return store.CheckAffected(res.RowsAffected())
}

func (p *DB) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *DB) Close() error { return p.db.Close() }
