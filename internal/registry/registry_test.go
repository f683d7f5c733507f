package registry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loykin/proctrack/internal/history"
	"github.com/loykin/proctrack/internal/store"
	"github.com/loykin/proctrack/internal/store/sqlite"
)

type captureSink struct {
	mu     sync.Mutex
	events []history.Event
	err    error
}

func (c *captureSink) Send(_ context.Context, e history.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return c.err
}

func ptr[T any](v T) *T { return &v }

func newService(t *testing.T, sink history.Sink) (*Service, store.Store) {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "p.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	_, err = st.CreateTable(context.Background())
	require.NoError(t, err)
	return New(st, sink, nil), st
}

func TestCreateAdvanceComplete(t *testing.T) {
	sink := &captureSink{}
	svc, _ := newService(t, sink)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, CreateRequest{
		ProcessID: "job-1", StartTime: "2024-03-01 12:00:00", FileName: ptr("in.csv"), Percentage: ptr(0.0),
	}))
	require.NoError(t, svc.Advance(ctx, "job-1", 55))
	require.NoError(t, svc.Complete(ctx, "job-1", "2024-03-01 12:01:30"))

	snaps, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	got := snaps[0]
	require.Equal(t, "job-1", got.ProcessID)
	require.Equal(t, "in.csv", *got.FileName)
	require.Equal(t, 55.0, *got.Percentage)
	require.Equal(t, "2024-03-01 12:01:30", *got.EndTime)
	require.Equal(t, 90.0, got.TimeTakenSeconds)

	require.Len(t, sink.events, 3)
	require.Equal(t, history.EventCreated, sink.events[0].Type)
	require.Equal(t, history.EventProgress, sink.events[1].Type)
	require.Equal(t, history.EventCompleted, sink.events[2].Type)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	cases := []CreateRequest{
		{StartTime: "2024-03-01 12:00:00"},
		{ProcessID: "  ", StartTime: "2024-03-01 12:00:00"},
		{ProcessID: "x"},
		{ProcessID: "x", StartTime: "2024-03-01T12:00:00Z"},
		{ProcessID: "x", StartTime: "2024-03-01 12:00:00", EndTime: ptr("soon")},
		{ProcessID: "x", StartTime: "2024-03-01 12:00:00", Percentage: ptr(101.0)},
		{ProcessID: "x", StartTime: "2024-03-01 12:00:00", Percentage: ptr(-1.0)},
	}
	for i, c := range cases {
		err := svc.Create(ctx, c)
		require.ErrorIs(t, err, ErrInvalidRequest, "case %d", i)
	}
	snaps, err := svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, snaps)
}

func TestUnknownIDIsRejected(t *testing.T) {
	sink := &captureSink{}
	svc, _ := newService(t, sink)
	ctx := context.Background()

	require.ErrorIs(t, svc.Advance(ctx, "missing", 10), store.ErrWriteRejected)
	require.ErrorIs(t, svc.Complete(ctx, "missing", "2024-03-01 12:00:00"), store.ErrWriteRejected)
	require.Empty(t, sink.events)
}

func TestDuplicateCreateRejected(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	req := CreateRequest{ProcessID: "dup", StartTime: "2024-03-01 12:00:00"}
	require.NoError(t, svc.Create(ctx, req))
	require.ErrorIs(t, svc.Create(ctx, req), store.ErrWriteRejected)
}

func TestAdvanceAndCompleteValidation(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	require.ErrorIs(t, svc.Advance(ctx, "", 10), ErrInvalidRequest)
	require.ErrorIs(t, svc.Advance(ctx, "a", 100.5), ErrInvalidRequest)
	require.ErrorIs(t, svc.Complete(ctx, "", "2024-03-01 12:00:00"), ErrInvalidRequest)
	require.ErrorIs(t, svc.Complete(ctx, "a", "yesterday"), ErrInvalidRequest)
}

func TestHistoryFailureDoesNotFailWrite(t *testing.T) {
	sink := &captureSink{err: errors.New("clickhouse down")}
	svc, _ := newService(t, sink)
	require.NoError(t, svc.Create(context.Background(), CreateRequest{ProcessID: "a", StartTime: "2024-03-01 12:00:00"}))
	require.Len(t, sink.events, 1)
}

func TestNow(t *testing.T) {
	svc, _ := newService(t, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local) }
	require.Equal(t, "2024-05-06 07:08:09", svc.Now())
	require.True(t, store.ValidTime(svc.Now()))
}
