package store

import (
	"context"
	"errors"
)

// TableName is the single table holding one row per tracked process.
const TableName = "processes"

// ErrWriteRejected is returned when a mutation affected zero rows: the
// process_id is unknown, or the insert collided with an existing id.
// The store is left unchanged.
var ErrWriteRejected = errors.New("write rejected: no rows affected")

// Record is one tracked process as persisted.
// ProcessID is supplied by the caller; the store never generates it.
// StartTime and EndTime are strings in TimeLayout.
// Nil pointers are stored as NULL.
type Record struct {
	ProcessID   string   `json:"process_id"`
	FileName    *string  `json:"file_name"`
	FilePath    *string  `json:"file_path"`
	Description *string  `json:"description"`
	StartTime   string   `json:"start_time"`
	EndTime     *string  `json:"end_time"`
	Percentage  *float64 `json:"percentage"`
}

// Snapshot is a Record as read back, with the derived duration.
type Snapshot struct {
	Record
	TimeTakenSeconds float64 `json:"time_taken_seconds"`
}

// NewSnapshot derives TimeTakenSeconds from the record's timestamps.
func NewSnapshot(r Record) Snapshot {
	end := ""
	if r.EndTime != nil {
		end = *r.EndTime
	}
	return Snapshot{Record: r, TimeTakenSeconds: TimeTaken(r.StartTime, end)}
}

// Store is the durable process table. Implementations must be safe for
// concurrent use; each statement is serialized by the implementation, but
// sequences of calls are not atomic relative to other callers.
type Store interface {
	// CreateTable creates the process table. It reports created=false with a
	// nil error when the table already exists.
	CreateTable(ctx context.Context) (created bool, err error)
	Insert(ctx context.Context, rec Record) error
	ReadAll(ctx context.Context) ([]Snapshot, error)
	UpdateEndTime(ctx context.Context, processID, endTime string) error
	UpdatePercentage(ctx context.Context, processID string, percentage float64) error
	Ping(ctx context.Context) error
	Close() error
}

// Columns is the read projection order shared by all implementations.
var Columns = []string{"process_id", "file_name", "file_path", "description", "start_time", "end_time", "percentage"}

// Scanner is satisfied by *sql.Rows and *sql.Row.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanSnapshot reads one row in Columns order.
func ScanSnapshot(s Scanner) (Snapshot, error) {
	var r Record
	if err := s.Scan(&r.ProcessID, &r.FileName, &r.FilePath, &r.Description, &r.StartTime, &r.EndTime, &r.Percentage); err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(r), nil
}

// CheckAffected maps a zero RowsAffected to ErrWriteRejected.
func CheckAffected(n int64, err error) error {
	if err != nil {
		return err
	}
	if n < 1 {
		return ErrWriteRejected
	}
	return nil
}

// Args returns the record's values in Columns order with NULLs as nil.
func (r Record) Args() []any {
	return []any{r.ProcessID, strOrNil(r.FileName), strOrNil(r.FilePath), strOrNil(r.Description), r.StartTime, strOrNil(r.EndTime), floatOrNil(r.Percentage)}
}

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
