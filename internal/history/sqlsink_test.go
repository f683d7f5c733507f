package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/proctrack/internal/store"
)

func TestSQLSinkAppendsEvents(t *testing.T) {
	sink, err := NewSQLSinkFromDSN("sqlite://" + filepath.Join(t.TempDir(), "hist.db"))
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	t.Cleanup(func() { _ = sink.Close() })
	ctx := context.Background()

	pct := 25.0
	end := "2024-01-01 10:05:00"
	events := []Event{
		{Type: EventCreated, OccurredAt: time.Now(), Record: store.Record{ProcessID: "job-1", StartTime: "2024-01-01 10:00:00"}},
		{Type: EventProgress, OccurredAt: time.Now(), Record: store.Record{ProcessID: "job-1", Percentage: &pct}},
		{Type: EventCompleted, OccurredAt: time.Now(), Record: store.Record{ProcessID: "job-1", EndTime: &end}},
		{Type: EventCreated, OccurredAt: time.Now(), Record: store.Record{ProcessID: "job-2", StartTime: "2024-01-01 11:00:00"}},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("send %s: %v", e.Type, err)
		}
	}
	n, err := sink.Count(ctx, "job-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 events for job-1, got %d", n)
	}
}

func TestSQLSinkEmptyDSN(t *testing.T) {
	if _, err := NewSQLSinkFromDSN("  "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

type recordingSink struct {
	got []Event
	err error
}

func (r *recordingSink) Send(_ context.Context, e Event) error {
	r.got = append(r.got, e)
	return r.err
}

func TestMultiAttemptsEverySink(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingSink{err: boom}
	b := &recordingSink{}
	m := Multi{a, b}
	err := m.Send(context.Background(), Event{Type: EventCreated, Record: store.Record{ProcessID: "x"}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to wrap boom, got %v", err)
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("expected both sinks to receive the event: a=%d b=%d", len(a.got), len(b.got))
	}
	if err := (Multi{}).Send(context.Background(), Event{}); err != nil {
		t.Fatalf("empty multi should not fail: %v", err)
	}
}
