package store

import "time"

// Config holds connection settings shared by the SQL implementations.
type Config struct {
	// DSN selects the backend: "postgres://", "postgresql://", "sqlite://<path>"
	// or a bare sqlite path.
	DSN string `toml:"dsn" mapstructure:"dsn"`

	// Connection pooling. SQLite always uses a single connection.
	MaxOpenConns int           `toml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns int           `toml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxAge   time.Duration `toml:"conn_max_age" mapstructure:"conn_max_age"`

	// ConnectTimeout bounds the startup ping retry loop.
	ConnectTimeout time.Duration `toml:"connect_timeout" mapstructure:"connect_timeout"`
}
