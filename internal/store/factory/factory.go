package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/loykin/proctrack/internal/store"
	pg "github.com/loykin/proctrack/internal/store/postgres"
	sq "github.com/loykin/proctrack/internal/store/sqlite"
)

// DefaultConnectTimeout bounds Open's ping retries when cfg.ConnectTimeout is zero.
const DefaultConnectTimeout = 30 * time.Second

// NewFromDSN selects a store implementation based on DSN.
// Supported:
//   - sqlite:  "sqlite://<path>" or bare filepath (treated as sqlite)
//   - postgres: DSN starting with "postgres://" or "postgresql://"
func NewFromDSN(dsn string) (store.Store, error) {
	return newFromConfig(store.Config{DSN: dsn}, nil)
}

func newFromConfig(cfg store.Config, logger *slog.Logger) (store.Store, error) {
	d := strings.TrimSpace(cfg.DSN)
	ld := strings.ToLower(d)
	if ld == "" {
		return nil, errors.New("empty DSN")
	}
	if strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://") {
		db, err := pg.New(d)
		if err != nil {
			return nil, err
		}
		db.SetPool(cfg)
		return db.WithLogger(logger), nil
	}
	path := d
	if strings.HasPrefix(ld, "sqlite://") {
		path = d[len("sqlite://"):]
	}
	db, err := sq.New(path)
	if err != nil {
		return nil, err
	}
	return db.WithLogger(logger), nil
}

// Open builds the store for cfg, waits for it to answer a ping (retrying with
// exponential backoff up to cfg.ConnectTimeout) and creates the process table.
func Open(ctx context.Context, cfg store.Config, logger *slog.Logger) (store.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st, err := newFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	wait := cfg.ConnectTimeout
	if wait <= 0 {
		wait = DefaultConnectTimeout
	}
	notify := func(err error, d time.Duration) {
		logger.Warn("store not ready, retrying", "error", err, "backoff", d)
	}
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, st.Ping(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(wait),
		backoff.WithNotify(notify))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("store ping: %w", err)
	}
	created, err := st.CreateTable(ctx)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	if created {
		logger.Info("created process table", "table", store.TableName)
	}
	return st, nil
}
