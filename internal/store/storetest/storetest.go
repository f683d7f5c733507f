// Package storetest holds behaviour checks shared by every store.Store implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/loykin/proctrack/internal/store"
)

// Run exercises st against the store contract. st must be empty and its
// table must not exist yet.
func Run(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	created, err := st.CreateTable(ctx)
	if err != nil || !created {
		t.Fatalf("first create table: created=%v err=%v", created, err)
	}
	created, err = st.CreateTable(ctx)
	if err != nil || created {
		t.Fatalf("second create table should be a no-op: created=%v err=%v", created, err)
	}

	t.Run("InsertThenReadAll", func(t *testing.T) { insertThenReadAll(t, st) })
	t.Run("UpdatePercentage", func(t *testing.T) { updatePercentage(t, st) })
	t.Run("UpdateEndTime", func(t *testing.T) { updateEndTime(t, st) })
	t.Run("UnknownIDRejected", func(t *testing.T) { unknownIDRejected(t, st) })
	t.Run("DuplicateIDRejected", func(t *testing.T) { duplicateIDRejected(t, st) })
	t.Run("ConcurrentWriters", func(t *testing.T) { concurrentWriters(t, st) })
	t.Run("InsertionOrder", func(t *testing.T) { insertionOrder(t, st) })
}

func str(s string) *string { return &s }

func find(t *testing.T, st store.Store, id string) (store.Snapshot, int) {
	t.Helper()
	all, err := st.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	for _, s := range all {
		if s.ProcessID == id {
			return s, len(all)
		}
	}
	t.Fatalf("process %q not found in %d rows", id, len(all))
	return store.Snapshot{}, 0
}

func insertThenReadAll(t *testing.T, st store.Store) {
	ctx := context.Background()
	rec := store.Record{
		ProcessID:   "ins-1",
		FileName:    str("data.csv"),
		FilePath:    str("/tmp/data.csv"),
		Description: str("import"),
		StartTime:   "2024-01-01 10:00:00",
	}
	if err := st.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, _ := find(t, st, "ins-1")
	if got.StartTime != rec.StartTime || got.EndTime != nil || got.Percentage != nil {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.FileName == nil || *got.FileName != "data.csv" || got.FilePath == nil || *got.FilePath != "/tmp/data.csv" {
		t.Fatalf("descriptive fields not persisted: %+v", got)
	}
	if got.TimeTakenSeconds != 0 {
		t.Fatalf("expected zero time taken, got %v", got.TimeTakenSeconds)
	}

	// optional fields stay NULL when not supplied
	if err := st.Insert(ctx, store.Record{ProcessID: "ins-2", StartTime: "2024-01-01 10:00:00"}); err != nil {
		t.Fatalf("insert minimal: %v", err)
	}
	got2, _ := find(t, st, "ins-2")
	if got2.FileName != nil || got2.FilePath != nil || got2.Description != nil {
		t.Fatalf("expected NULL descriptive fields: %+v", got2)
	}
}

func updatePercentage(t *testing.T, st store.Store) {
	ctx := context.Background()
	if err := st.Insert(ctx, store.Record{ProcessID: "pct-1", StartTime: "2024-01-01 10:00:00"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := st.UpdatePercentage(ctx, "pct-1", 42.5); err != nil {
		t.Fatalf("update percentage: %v", err)
	}
	got, _ := find(t, st, "pct-1")
	if got.Percentage == nil || *got.Percentage != 42.5 {
		t.Fatalf("expected percentage 42.5, got %+v", got.Percentage)
	}
	if got.StartTime != "2024-01-01 10:00:00" || got.EndTime != nil {
		t.Fatalf("other fields changed: %+v", got)
	}
}

func updateEndTime(t *testing.T, st store.Store) {
	ctx := context.Background()
	if err := st.Insert(ctx, store.Record{ProcessID: "end-1", StartTime: "2024-01-01 10:00:00"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := st.UpdateEndTime(ctx, "end-1", "2024-01-01 10:00:30"); err != nil {
		t.Fatalf("update end time: %v", err)
	}
	got, _ := find(t, st, "end-1")
	if got.EndTime == nil || *got.EndTime != "2024-01-01 10:00:30" {
		t.Fatalf("unexpected end time: %+v", got.EndTime)
	}
	if got.TimeTakenSeconds != 30 {
		t.Fatalf("expected 30s, got %v", got.TimeTakenSeconds)
	}
}

func unknownIDRejected(t *testing.T, st store.Store) {
	ctx := context.Background()
	before, err := st.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if err := st.UpdatePercentage(ctx, "missing", 10); !errors.Is(err, store.ErrWriteRejected) {
		t.Fatalf("update percentage on missing id: want ErrWriteRejected, got %v", err)
	}
	if err := st.UpdateEndTime(ctx, "missing", "2024-01-01 10:00:00"); !errors.Is(err, store.ErrWriteRejected) {
		t.Fatalf("update end time on missing id: want ErrWriteRejected, got %v", err)
	}
	after, err := st.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(before) != len(after) {
		t.Fatalf("row count changed: %d -> %d", len(before), len(after))
	}
}

func duplicateIDRejected(t *testing.T, st store.Store) {
	ctx := context.Background()
	if err := st.Insert(ctx, store.Record{ProcessID: "dup-1", StartTime: "2024-01-01 10:00:00"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, n := find(t, st, "dup-1")
	err := st.Insert(ctx, store.Record{ProcessID: "dup-1", StartTime: "2024-01-02 10:00:00"})
	if !errors.Is(err, store.ErrWriteRejected) {
		t.Fatalf("duplicate insert: want ErrWriteRejected, got %v", err)
	}
	got, n2 := find(t, st, "dup-1")
	if n2 != n || got.StartTime != "2024-01-01 10:00:00" {
		t.Fatalf("duplicate insert changed the store: rows %d -> %d, %+v", n, n2, got)
	}
}

func concurrentWriters(t *testing.T, st store.Store) {
	ctx := context.Background()
	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n*3)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conc-%d", i)
			if err := st.Insert(ctx, store.Record{ProcessID: id, StartTime: "2024-01-01 10:00:00"}); err != nil {
				errs <- err
				return
			}
			if err := st.UpdatePercentage(ctx, id, 50); err != nil {
				errs <- err
			}
			if _, err := st.ReadAll(ctx); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent op: %v", err)
	}
	for i := 0; i < n; i++ {
		got, _ := find(t, st, fmt.Sprintf("conc-%d", i))
		if got.Percentage == nil || *got.Percentage != 50 {
			t.Fatalf("conc-%d: unexpected percentage %+v", i, got.Percentage)
		}
	}
}

func insertionOrder(t *testing.T, st store.Store) {
	ctx := context.Background()
	ids := []string{"ord-c", "ord-a", "ord-b"}
	for _, id := range ids {
		if err := st.Insert(ctx, store.Record{ProcessID: id, StartTime: "2024-01-01 10:00:00"}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	all, err := st.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	var seen []string
	for _, s := range all {
		for _, id := range ids {
			if s.ProcessID == id {
				seen = append(seen, id)
			}
		}
	}
	if fmt.Sprint(seen) != fmt.Sprint(ids) {
		t.Fatalf("expected insertion order %v, got %v", ids, seen)
	}
}
