// Package registry is the write and query API over the process store.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loykin/proctrack/internal/history"
	"github.com/loykin/proctrack/internal/metrics"
	"github.com/loykin/proctrack/internal/store"
)

// ErrInvalidRequest marks a request rejected before reaching the store.
var ErrInvalidRequest = errors.New("invalid request")

// CreateRequest registers a new process. ProcessID and StartTime are required.
type CreateRequest struct {
	ProcessID   string   `json:"process_id"`
	FileName    *string  `json:"file_name,omitempty"`
	FilePath    *string  `json:"file_path,omitempty"`
	Description *string  `json:"description,omitempty"`
	StartTime   string   `json:"start_time"`
	EndTime     *string  `json:"end_time,omitempty"`
	Percentage  *float64 `json:"percentage,omitempty"`
}

func (r CreateRequest) record() store.Record {
	return store.Record{
		ProcessID:   r.ProcessID,
		FileName:    r.FileName,
		FilePath:    r.FilePath,
		Description: r.Description,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Percentage:  r.Percentage,
	}
}

// Validate checks required fields, timestamp layout and percentage range.
func (r CreateRequest) Validate() error {
	if err := validateID(r.ProcessID); err != nil {
		return err
	}
	if !store.ValidTime(r.StartTime) {
		return invalid("start_time %q must match %s", r.StartTime, store.TimeLayout)
	}
	if r.EndTime != nil && !store.ValidTime(*r.EndTime) {
		return invalid("end_time %q must match %s", *r.EndTime, store.TimeLayout)
	}
	if r.Percentage != nil {
		if err := validatePercentage(*r.Percentage); err != nil {
			return err
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("process_id is required")
	}
	return nil
}

func validatePercentage(p float64) error {
	if !(p >= 0 && p <= 100) {
		return invalid("percentage %v out of range [0,100]", p)
	}
	return nil
}

// Service validates requests, forwards them to the store and exports an
// event for every accepted write. Store errors are returned unchanged.
type Service struct {
	store   store.Store
	history history.Sink
	logger  *slog.Logger
	now     func() time.Time
}

// New builds a Service. sink may be nil.
func New(st store.Store, sink history.Sink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, history: sink, logger: logger, now: time.Now}
}

// Now returns the current local time in store.TimeLayout.
func (s *Service) Now() string { return store.FormatTime(s.now()) }

func (s *Service) Create(ctx context.Context, req CreateRequest) error {
	if err := req.Validate(); err != nil {
		metrics.IncRegistryOp("create", "invalid")
		return err
	}
	rec := req.record()
	err := s.store.Insert(ctx, rec)
	s.finish(ctx, "create", history.EventCreated, rec, err)
	return err
}

// Advance records progress. Monotonicity is left to the caller.
func (s *Service) Advance(ctx context.Context, processID string, percentage float64) error {
	if err := validateID(processID); err != nil {
		metrics.IncRegistryOp("progress", "invalid")
		return err
	}
	if err := validatePercentage(percentage); err != nil {
		metrics.IncRegistryOp("progress", "invalid")
		return err
	}
	err := s.store.UpdatePercentage(ctx, processID, percentage)
	s.finish(ctx, "progress", history.EventProgress, store.Record{ProcessID: processID, Percentage: &percentage}, err)
	return err
}

func (s *Service) Complete(ctx context.Context, processID, endTime string) error {
	if err := validateID(processID); err != nil {
		metrics.IncRegistryOp("complete", "invalid")
		return err
	}
	if !store.ValidTime(endTime) {
		metrics.IncRegistryOp("complete", "invalid")
		return invalid("end_time %q must match %s", endTime, store.TimeLayout)
	}
	err := s.store.UpdateEndTime(ctx, processID, endTime)
	s.finish(ctx, "complete", history.EventCompleted, store.Record{ProcessID: processID, EndTime: &endTime}, err)
	return err
}

// List returns every record in insertion order.
func (s *Service) List(ctx context.Context) ([]store.Snapshot, error) {
	snaps, err := s.store.ReadAll(ctx)
	if err != nil {
		metrics.IncRegistryOp("list", "error")
		return nil, err
	}
	metrics.IncRegistryOp("list", "ok")
	return snaps, nil
}

func (s *Service) finish(ctx context.Context, op string, typ history.EventType, rec store.Record, err error) {
	switch {
	case errors.Is(err, store.ErrWriteRejected):
		metrics.IncRegistryOp(op, "rejected")
		s.logger.Info("write rejected", "op", op, "process_id", rec.ProcessID)
		return
	case err != nil:
		metrics.IncRegistryOp(op, "error")
		s.logger.Error("store write failed", "op", op, "process_id", rec.ProcessID, "error", err)
		return
	}
	metrics.IncRegistryOp(op, "ok")
	if s.history == nil {
		return
	}
	e := history.Event{Type: typ, OccurredAt: s.now().UTC(), Record: rec}
	herr := s.history.Send(ctx, e)
	metrics.IncHistoryEvent(string(typ), herr == nil)
	if herr != nil {
		s.logger.Warn("history export failed", "type", typ, "process_id", rec.ProcessID, "error", herr)
	}
}
