// Package broadcast periodically pushes the full process snapshot to the hub.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/proctrack/internal/hub"
	"github.com/loykin/proctrack/internal/metrics"
	"github.com/loykin/proctrack/internal/store"
)

const DefaultInterval = time.Second

type SnapshotReader interface {
	ReadAll(ctx context.Context) ([]store.Snapshot, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte) hub.Result
}

// Loop runs FETCH, SEND, SLEEP until its context ends.
type Loop struct {
	Reader   SnapshotReader
	Hub      Broadcaster
	Interval time.Duration
	Logger   *slog.Logger
}

func (l *Loop) log() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Encode renders snapshots as the JSON array sent to subscribers.
// An empty store encodes as [] rather than null.
func Encode(snaps []store.Snapshot) ([]byte, error) {
	if snaps == nil {
		snaps = []store.Snapshot{}
	}
	return json.Marshal(snaps)
}

// RunOnce performs a single fetch and send.
func (l *Loop) RunOnce(ctx context.Context) error {
	start := time.Now()
	snaps, err := l.Reader.ReadAll(ctx)
	if err != nil {
		metrics.ObserveBroadcastCycle(false, 0, 0)
		return fmt.Errorf("read snapshot: %w", err)
	}
	payload, err := Encode(snaps)
	if err != nil {
		metrics.ObserveBroadcastCycle(false, 0, 0)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	res := l.Hub.Broadcast(ctx, payload)
	metrics.ObserveBroadcastCycle(true, time.Since(start).Seconds(), len(snaps))
	l.log().Debug("broadcast cycle", "records", len(snaps), "queued", res.Queued, "evicted", res.Evicted)
	return nil
}

// Run blocks until ctx is cancelled. A failed cycle is logged and the next
// one runs after the usual interval.
func (l *Loop) Run(ctx context.Context) {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := l.RunOnce(ctx); err != nil && ctx.Err() == nil {
			l.log().Error("broadcast cycle failed", "error", err)
		}
		timer.Reset(interval)
	}
}
