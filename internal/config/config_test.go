package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeTOML(t *testing.T, data string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "proctrack.toml")
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	return file
}

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if c.Server.Listen != ":8000" || c.Store.DSN != "sqlite://proctrack.db" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Broadcast.Interval != time.Second || c.Broadcast.SendTimeout != 5*time.Second || c.Broadcast.QueueSize != 16 {
		t.Fatalf("unexpected broadcast defaults: %+v", c.Broadcast)
	}
	if c.Store.ConnectTimeout != 30*time.Second {
		t.Fatalf("unexpected connect timeout: %s", c.Store.ConnectTimeout)
	}
	if c.Log.Level != "info" || c.Log.File.MaxSizeMB != 10 {
		t.Fatalf("unexpected log defaults: %+v", c.Log)
	}
	if len(c.HistoryDSNs()) != 0 {
		t.Fatalf("expected no history sinks, got %v", c.HistoryDSNs())
	}
}

func TestLoad_Full(t *testing.T) {
	file := writeTOML(t, `
[server]
listen = "127.0.0.1:9000"
base_path = "/api"

[server.tls]
enabled = true
dir = "/etc/proctrack/tls"
auto_generate = true
min_version = "1.2"

[store]
dsn = "postgres://u:p@db:5432/proc"
max_open_conns = 8
connect_timeout = "5s"

[broadcast]
interval = "250ms"
send_timeout = "2s"
queue_size = 4

[[history]]
dsn = "sqlite:///var/lib/proctrack/history.db"

[[history]]
dsn = "clickhouse://ch:9000/default?table=process_history"

[[history]]
dsn = ""

[metrics]
enabled = true
listen = ":9191"

[log]
level = "debug"
format = "json"

[log.file]
path = "/var/log/proctrack.log"
max_backups = 5
`)
	c, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Listen != "127.0.0.1:9000" || c.Server.BasePath != "/api" {
		t.Fatalf("server: %+v", c.Server)
	}
	if !c.Server.TLS.Enabled || c.Server.TLS.Dir != "/etc/proctrack/tls" || !c.Server.TLS.AutoGenerate || c.Server.TLS.MinVersion != "1.2" {
		t.Fatalf("server.tls: %+v", c.Server.TLS)
	}
	if c.Store.DSN != "postgres://u:p@db:5432/proc" || c.Store.MaxOpenConns != 8 || c.Store.ConnectTimeout != 5*time.Second {
		t.Fatalf("store: %+v", c.Store)
	}
	if c.Broadcast.Interval != 250*time.Millisecond || c.Broadcast.SendTimeout != 2*time.Second || c.Broadcast.QueueSize != 4 {
		t.Fatalf("broadcast: %+v", c.Broadcast)
	}
	want := []string{"sqlite:///var/lib/proctrack/history.db", "clickhouse://ch:9000/default?table=process_history"}
	if !reflect.DeepEqual(c.HistoryDSNs(), want) {
		t.Fatalf("history: %v", c.HistoryDSNs())
	}
	if !c.Metrics.Enabled || c.Metrics.Listen != ":9191" {
		t.Fatalf("metrics: %+v", c.Metrics)
	}
	if c.Log.Level != "debug" || c.Log.Format != "json" || c.Log.File.Path != "/var/log/proctrack.log" || c.Log.File.MaxBackups != 5 {
		t.Fatalf("log: %+v", c.Log)
	}
	// unset file keys keep defaults
	if c.Log.File.MaxAgeDays != 7 {
		t.Fatalf("expected default max_age_days, got %d", c.Log.File.MaxAgeDays)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	file := writeTOML(t, `
[store]
dsn = "sqlite://from-file.db"
`)
	t.Setenv("PROCTRACK_STORE_DSN", "sqlite://from-env.db")
	t.Setenv("PROCTRACK_BROADCAST_INTERVAL", "3s")
	c, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Store.DSN != "sqlite://from-env.db" {
		t.Fatalf("env should win, got %q", c.Store.DSN)
	}
	if c.Broadcast.Interval != 3*time.Second {
		t.Fatalf("interval: %s", c.Broadcast.Interval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	file := writeTOML(t, "[server\nlisten = ")
	if _, err := Load(file); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	file := writeTOML(t, `
[store]
dsn = " "
[broadcast]
interval = "0s"
send_timeout = "-1s"
[log]
format = "xml"
[server.tls]
enabled = true
`)
	_, err := Load(file)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"store.dsn", "broadcast.interval", "broadcast.send_timeout", "log.format", "server.tls"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestLoad_BadDuration(t *testing.T) {
	file := writeTOML(t, `
[broadcast]
interval = "soon"
`)
	if _, err := Load(file); err == nil {
		t.Fatalf("expected decode error for bad duration")
	}
}
