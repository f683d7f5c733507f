package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes the service log output.
// Console output always goes to Stderr; File adds a rotating copy.
type Config struct {
	Level  string     `toml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string     `toml:"format" mapstructure:"format"` // text or json
	Color  bool       `toml:"color" mapstructure:"color"`   // colored levels, text format only
	File   FileConfig `toml:"file" mapstructure:"file"`

	// Stderr overrides the console writer; nil means os.Stderr.
	Stderr io.Writer `toml:"-" mapstructure:"-"`
}

// FileConfig follows lumberjack rotation semantics. Path empty disables file output.
type FileConfig struct {
	Path       string `toml:"path" mapstructure:"path"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// Writer returns the rotating file writer, or nil when Path is empty.
func (f FileConfig) Writer() (io.WriteCloser, error) {
	if f.Path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &lj.Logger{
		Filename:   f.Path,
		MaxSize:    valOr(f.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(f.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(f.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   f.Compress,
	}, nil
}

// ParseLevel maps a level name to slog.Level; unknown names become info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to the console and, when configured, to a
// rotating file. The returned closer releases the file and is never nil.
func New(c Config) (*slog.Logger, io.Closer, error) {
	console := c.Stderr
	if console == nil {
		console = os.Stderr
	}
	fileW, err := c.File.Writer()
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Level)}

	var closer io.Closer = nopCloser{}
	out := console
	if fileW != nil {
		out = io.MultiWriter(console, fileW)
		closer = fileW
	}

	var h slog.Handler
	switch {
	case strings.EqualFold(c.Format, "json"):
		h = slog.NewJSONHandler(out, opts)
	case c.Color && fileW == nil:
		h = NewColorTextHandler(out, opts, true)
	default:
		// color codes would end up in the rotated file
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
