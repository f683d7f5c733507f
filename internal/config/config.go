package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/proctrack/internal/logger"
	"github.com/loykin/proctrack/internal/store"
	itls "github.com/loykin/proctrack/internal/tls"
)

// EnvPrefix is prepended to env overrides, e.g. PROCTRACK_STORE_DSN.
const EnvPrefix = "PROCTRACK"

// Config represents the top-level TOML structure.
type Config struct {
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
	Store     store.Config    `toml:"store" mapstructure:"store"`
	Broadcast BroadcastConfig `toml:"broadcast" mapstructure:"broadcast"`
	History   []HistoryConfig `toml:"history" mapstructure:"history"`
	Metrics   MetricsConfig   `toml:"metrics" mapstructure:"metrics"`
	Log       logger.Config   `toml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Listen   string      `toml:"listen" mapstructure:"listen"`
	BasePath string      `toml:"base_path" mapstructure:"base_path"`
	TLS      itls.Config `toml:"tls" mapstructure:"tls"`
}

type BroadcastConfig struct {
	Interval    time.Duration `toml:"interval" mapstructure:"interval"`
	SendTimeout time.Duration `toml:"send_timeout" mapstructure:"send_timeout"`
	QueueSize   int           `toml:"queue_size" mapstructure:"queue_size"`
}

// HistoryConfig names one lifecycle event sink, e.g. "clickhouse://host:9000/db?table=t".
type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

// HistoryDSNs returns the non-empty sink DSNs in file order.
func (c *Config) HistoryDSNs() []string {
	var out []string
	for _, h := range c.History {
		if d := strings.TrimSpace(h.DSN); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8000")
	v.SetDefault("server.base_path", "")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.dir", "")
	v.SetDefault("server.tls.auto_generate", false)
	v.SetDefault("store.dsn", "sqlite://proctrack.db")
	v.SetDefault("store.max_open_conns", 0)
	v.SetDefault("store.max_idle_conns", 0)
	v.SetDefault("store.conn_max_age", "0s")
	v.SetDefault("store.connect_timeout", "30s")
	v.SetDefault("broadcast.interval", "1s")
	v.SetDefault("broadcast.send_timeout", "5s")
	v.SetDefault("broadcast.queue_size", 16)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", false)
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.file.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.file.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.file.compress", false)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the built-in configuration with env overrides applied.
func Default() (*Config, error) {
	return decode(newViper())
}

// Load reads a TOML file. An empty path yields Default().
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Store.DSN) == "" {
		errs = append(errs, errors.New("store.dsn is required"))
	}
	if c.Broadcast.Interval <= 0 {
		errs = append(errs, fmt.Errorf("broadcast.interval must be positive, got %s", c.Broadcast.Interval))
	}
	if c.Broadcast.SendTimeout <= 0 {
		errs = append(errs, fmt.Errorf("broadcast.send_timeout must be positive, got %s", c.Broadcast.SendTimeout))
	}
	if c.Broadcast.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("broadcast.queue_size must be positive, got %d", c.Broadcast.QueueSize))
	}
	if t := c.Server.TLS; t.Enabled && t.Dir == "" && (t.CertFile == "" || t.KeyFile == "") {
		errs = append(errs, errors.New("server.tls needs cert_file and key_file, or dir"))
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, errors.New("metrics.listen is required when metrics are enabled"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
