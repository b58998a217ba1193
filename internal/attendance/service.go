// Package attendance owns the lifecycle of AttendanceRecords. The service here
// is the only writer of record state: it consumes verification outcomes,
// invokes the classifier at transition time, and enforces the one-record-per
// (subject, occasion) invariant under concurrent marking attempts.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"presence/internal/attendance/metrics"
	"presence/internal/classify"
	"presence/internal/domain"
	"presence/internal/verify"
	"presence/pkg/platform/sentinel"
	"presence/pkg/requestcontext"
)

const (
	opMarkSession = "mark_session"
	opCheckIn     = "check_in"
	opCheckOut    = "check_out"
	opCorrect     = "correct"

	resultAccepted = "accepted"

	// transitionRetries bounds internal retries after a lost store race
	// before surfacing PersistenceConflict. The per-pair lock already
	// serializes in-process writers; retries cover races across processes.
	transitionRetries = 3
)

// Event is one marking attempt entering the state machine. The outcome must
// come from the verification gateway (or ManualEvent for operator entries);
// rejected outcomes never reach a store.
type Event struct {
	OccasionID domain.OccasionID

	// SubjectID is the claimed subject. When the outcome resolved an
	// identity (identification mode) the resolved identity wins.
	SubjectID domain.SubjectID

	Outcome verify.Outcome
	Method  domain.Method

	// At is the event time; zero means the request time from context.
	At time.Time
}

// ManualEvent builds an operator-entered event that bypasses biometric
// verification. Callers are expected to have checked operator capability.
func ManualEvent(subjectID domain.SubjectID, occasionID domain.OccasionID, at time.Time) Event {
	return Event{
		OccasionID: occasionID,
		SubjectID:  subjectID,
		Outcome:    verify.Outcome{Accepted: true, SubjectID: subjectID},
		Method:     domain.MethodManual,
		At:         at,
	}
}

func (e Event) subject() domain.SubjectID {
	if e.Outcome.SubjectID != "" {
		return e.Outcome.SubjectID
	}
	return e.SubjectID
}

func (e Event) method() domain.Method {
	if e.Method == "" {
		return domain.MethodBiometric
	}
	return e.Method
}

func (e Event) at(ctx context.Context) time.Time {
	if !e.At.IsZero() {
		return e.At
	}
	return requestcontext.Now(ctx)
}

// CorrectionRequest describes an audited record correction. Unset times keep
// the record's current values; status is always recomputed by the classifier.
type CorrectionRequest struct {
	RecordID   uuid.UUID
	CheckIn    *time.Time
	CheckOut   *time.Time
	Reason     string
	ApprovedBy string
}

// Service is the attendance state machine.
type Service struct {
	records     RecordStore
	occasions   OccasionStore
	corrections CorrectionStore
	tx          TxRunner
	locks       *keyLock
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewService builds the state machine. txr may be nil when the stores are not
// SQL-backed; multi-store writes then run directly against the stores.
func NewService(records RecordStore, occasions OccasionStore, corrections CorrectionStore, txr TxRunner, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		records:     records,
		occasions:   occasions,
		corrections: corrections,
		tx:          txr,
		locks:       newKeyLock(),
		logger:      logger,
		metrics:     m,
	}
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.InTx(ctx, fn)
}

// MarkSession records full attendance for a session occasion in a single
// Unmarked -> Completed transition. A second event for the same pair is
// rejected with AlreadyMarked and leaves the record untouched.
func (s *Service) MarkSession(ctx context.Context, e Event) (domain.AttendanceRecord, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveMarkLatency(time.Since(start)) }()

	if err := e.Outcome.Err(); err != nil {
		return domain.AttendanceRecord{}, s.reject(ctx, opMarkSession, err)
	}

	occ, err := s.occasions.Get(ctx, e.OccasionID)
	if err != nil {
		return domain.AttendanceRecord{}, fmt.Errorf("load occasion %s: %w", e.OccasionID, err)
	}
	if occ.Kind != domain.OccasionSession {
		return domain.AttendanceRecord{}, fmt.Errorf("occasion %s: %w: session event on %s occasion", occ.ID, sentinel.ErrInvalidState, occ.Kind)
	}

	at := e.at(ctx)
	if !occ.AcceptsAt(at) {
		return domain.AttendanceRecord{}, s.reject(ctx, opMarkSession, domain.ErrOccasionClosed)
	}

	subjectID := e.subject()
	unlock := s.locks.Lock(subjectID, occ.ID)
	defer unlock()

	if _, err := s.records.GetLive(ctx, subjectID, occ.ID); err == nil {
		return domain.AttendanceRecord{}, s.reject(ctx, opMarkSession, domain.ErrAlreadyMarked)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return domain.AttendanceRecord{}, fmt.Errorf("load record: %w", err)
	}

	status, m := classify.Classify(occ, &at, nil)
	rec := domain.AttendanceRecord{
		ID:         uuid.New(),
		SubjectID:  subjectID,
		OccasionID: occ.ID,
		State:      domain.StateCompleted,
		Status:     status,
		Method:     e.method(),
		FirstEvent: &at,
		LastEvent:  &at,
		Confidence: e.Outcome.Confidence,
		AfterEnd:   m.AfterEnd,
	}

	if err := s.records.CreateIfAbsent(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A concurrent attempt won; this one is a duplicate.
			return domain.AttendanceRecord{}, s.reject(ctx, opMarkSession, domain.ErrAlreadyMarked)
		}
		return domain.AttendanceRecord{}, fmt.Errorf("create record: %w", err)
	}

	s.accepted(ctx, opMarkSession, rec)
	return rec, nil
}

// CheckIn opens a day record: Unmarked -> InProgress.
func (s *Service) CheckIn(ctx context.Context, e Event) (domain.AttendanceRecord, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveMarkLatency(time.Since(start)) }()

	if err := e.Outcome.Err(); err != nil {
		return domain.AttendanceRecord{}, s.reject(ctx, opCheckIn, err)
	}

	occ, err := s.dayOccasion(ctx, e.OccasionID)
	if err != nil {
		return domain.AttendanceRecord{}, err
	}

	at := e.at(ctx)
	if !occ.AcceptsAt(at) {
		return domain.AttendanceRecord{}, s.reject(ctx, opCheckIn, domain.ErrOccasionClosed)
	}

	subjectID := e.subject()
	unlock := s.locks.Lock(subjectID, occ.ID)
	defer unlock()

	if _, err := s.records.GetLive(ctx, subjectID, occ.ID); err == nil {
		return domain.AttendanceRecord{}, s.reject(ctx, opCheckIn, domain.ErrAlreadyCheckedIn)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return domain.AttendanceRecord{}, fmt.Errorf("load record: %w", err)
	}

	status, _ := classify.Classify(occ, &at, nil)
	rec := domain.AttendanceRecord{
		ID:         uuid.New(),
		SubjectID:  subjectID,
		OccasionID: occ.ID,
		State:      domain.StateInProgress,
		Status:     status,
		Method:     e.method(),
		FirstEvent: &at,
		Confidence: e.Outcome.Confidence,
	}

	if err := s.records.CreateIfAbsent(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return domain.AttendanceRecord{}, s.reject(ctx, opCheckIn, domain.ErrAlreadyCheckedIn)
		}
		return domain.AttendanceRecord{}, fmt.Errorf("create record: %w", err)
	}

	s.accepted(ctx, opCheckIn, rec)
	return rec, nil
}

// CheckOut completes a day record: InProgress -> Completed. The classifier
// recomputes status and hour metrics from the full span.
func (s *Service) CheckOut(ctx context.Context, e Event) (domain.AttendanceRecord, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveMarkLatency(time.Since(start)) }()

	if err := e.Outcome.Err(); err != nil {
		return domain.AttendanceRecord{}, s.reject(ctx, opCheckOut, err)
	}

	occ, err := s.dayOccasion(ctx, e.OccasionID)
	if err != nil {
		return domain.AttendanceRecord{}, err
	}
	if !occ.Active {
		return domain.AttendanceRecord{}, s.reject(ctx, opCheckOut, domain.ErrOccasionClosed)
	}

	subjectID := e.subject()
	unlock := s.locks.Lock(subjectID, occ.ID)
	defer unlock()

	for attempt := 0; attempt < transitionRetries; attempt++ {
		rec, err := s.records.GetLive(ctx, subjectID, occ.ID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.AttendanceRecord{}, s.reject(ctx, opCheckOut, domain.ErrNotCheckedIn)
		}
		if err != nil {
			return domain.AttendanceRecord{}, fmt.Errorf("load record: %w", err)
		}

		switch rec.State {
		case domain.StateInProgress:
		case domain.StateCompleted:
			return domain.AttendanceRecord{}, s.reject(ctx, opCheckOut, domain.ErrAlreadyCheckedOut)
		default:
			return domain.AttendanceRecord{}, s.reject(ctx, opCheckOut, domain.ErrNotCheckedIn)
		}

		at := e.at(ctx)
		if rec.FirstEvent != nil && at.Before(*rec.FirstEvent) {
			// Overnight shift: the checkout clock reads earlier than the
			// check-in; roll it forward to keep last >= first.
			at = at.Add(24 * time.Hour)
		}

		status, m := classify.Classify(occ, rec.FirstEvent, &at)
		updated, err := s.records.Transition(ctx, rec.ID, domain.StateInProgress, RecordUpdate{
			State:         domain.StateCompleted,
			Status:        status,
			LastEvent:     &at,
			TotalHours:    m.TotalHours,
			OvertimeHours: m.OvertimeHours,
			Confidence:    e.Outcome.Confidence,
			AfterEnd:      m.AfterEnd,
		})
		if err == nil {
			s.accepted(ctx, opCheckOut, updated)
			return updated, nil
		}
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementConflictRetry()
			continue
		}
		return domain.AttendanceRecord{}, fmt.Errorf("transition record: %w", err)
	}

	return domain.AttendanceRecord{}, s.reject(ctx, opCheckOut, domain.ErrPersistenceConflict)
}

// Correct supersedes a live record: the old record becomes Corrected
// (terminal) and an audited replacement takes its place. Records are never
// silently overwritten.
func (s *Service) Correct(ctx context.Context, req CorrectionRequest) (domain.AttendanceRecord, error) {
	old, err := s.records.GetByID(ctx, req.RecordID)
	if err != nil {
		return domain.AttendanceRecord{}, fmt.Errorf("load record %s: %w", req.RecordID, err)
	}

	unlock := s.locks.Lock(old.SubjectID, old.OccasionID)
	defer unlock()

	// Re-read under the lock; a concurrent correction may have retired the
	// record between the lookup and the lock.
	old, err = s.records.GetByID(ctx, req.RecordID)
	if err != nil {
		return domain.AttendanceRecord{}, fmt.Errorf("load record %s: %w", req.RecordID, err)
	}
	if !old.Live() {
		return domain.AttendanceRecord{}, fmt.Errorf("record %s: %w: already corrected", old.ID, sentinel.ErrInvalidState)
	}

	occ, err := s.occasions.Get(ctx, old.OccasionID)
	if err != nil {
		return domain.AttendanceRecord{}, fmt.Errorf("load occasion %s: %w", old.OccasionID, err)
	}

	first, last := old.FirstEvent, old.LastEvent
	if req.CheckIn != nil {
		first = req.CheckIn
	}
	if req.CheckOut != nil {
		last = req.CheckOut
	}

	status, m := classify.Classify(occ, first, last)

	state := domain.StateCompleted
	if occ.Kind == domain.OccasionDay && first != nil && last == nil {
		state = domain.StateInProgress
	}

	replacement := domain.AttendanceRecord{
		ID:            uuid.New(),
		SubjectID:     old.SubjectID,
		OccasionID:    old.OccasionID,
		State:         state,
		Status:        status,
		Method:        domain.MethodManual,
		FirstEvent:    first,
		LastEvent:     last,
		TotalHours:    m.TotalHours,
		OvertimeHours: m.OvertimeHours,
		Confidence:    old.Confidence,
		AfterEnd:      m.AfterEnd,
	}

	// Audit rows and the record swap commit together: a correction that
	// cannot be audited must not change what the live record says.
	trail := correctionTrail(old, replacement, req, requestcontext.Now(ctx))
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.corrections.Append(ctx, trail...); err != nil {
			return fmt.Errorf("append corrections: %w", err)
		}
		if err := s.records.Supersede(ctx, old.ID, old.State, replacement); err != nil {
			return fmt.Errorf("supersede record: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return domain.AttendanceRecord{}, s.reject(ctx, opCorrect, domain.ErrPersistenceConflict)
		}
		return domain.AttendanceRecord{}, err
	}

	s.accepted(ctx, opCorrect, replacement)
	return replacement, nil
}

// CloseOccasion stops the occasion from accepting events. Closing twice is a
// no-op; the absence sweep runs against closed occasions.
func (s *Service) CloseOccasion(ctx context.Context, id domain.OccasionID) (domain.Occasion, error) {
	occ, err := s.occasions.Close(ctx, id, requestcontext.Now(ctx))
	if err != nil {
		return domain.Occasion{}, fmt.Errorf("close occasion %s: %w", id, err)
	}
	return occ, nil
}

// Occasion returns the occasion so callers can read its policy.
func (s *Service) Occasion(ctx context.Context, id domain.OccasionID) (domain.Occasion, error) {
	return s.occasions.Get(ctx, id)
}

// History exposes the read-only record query for aggregation.
func (s *Service) History(ctx context.Context, filter HistoryFilter) ([]domain.AttendanceRecord, error) {
	return s.records.List(ctx, filter)
}

// GetRecord returns the live record for a pair, or sentinel.ErrNotFound.
func (s *Service) GetRecord(ctx context.Context, subjectID domain.SubjectID, occasionID domain.OccasionID) (domain.AttendanceRecord, error) {
	return s.records.GetLive(ctx, subjectID, occasionID)
}

// Corrections returns the audit trail for a record.
func (s *Service) Corrections(ctx context.Context, recordID uuid.UUID) ([]domain.Correction, error) {
	return s.corrections.ListByRecord(ctx, recordID)
}

func (s *Service) dayOccasion(ctx context.Context, id domain.OccasionID) (domain.Occasion, error) {
	occ, err := s.occasions.Get(ctx, id)
	if err != nil {
		return domain.Occasion{}, fmt.Errorf("load occasion %s: %w", id, err)
	}
	if occ.Kind != domain.OccasionDay {
		return domain.Occasion{}, fmt.Errorf("occasion %s: %w: clock event on %s occasion", occ.ID, sentinel.ErrInvalidState, occ.Kind)
	}
	return occ, nil
}

func (s *Service) reject(ctx context.Context, op string, err error) error {
	var de *domain.Error
	kind := "error"
	if errors.As(err, &de) {
		kind = string(de.Kind)
	}
	s.metrics.IncrementTransition(op, kind)

	if s.logger != nil {
		s.logger.DebugContext(ctx, "marking rejected",
			"operation", op,
			"kind", kind,
		)
	}
	return err
}

func (s *Service) accepted(ctx context.Context, op string, rec domain.AttendanceRecord) {
	s.metrics.IncrementTransition(op, resultAccepted)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "attendance recorded",
			"operation", op,
			"record_id", rec.ID,
			"subject_id", rec.SubjectID,
			"occasion_id", rec.OccasionID,
			"status", rec.Status,
			"method", rec.Method,
		)
	}
}

// correctionTrail emits one audit row per changed field so the correction
// object records exactly what moved and why.
func correctionTrail(old, now domain.AttendanceRecord, req CorrectionRequest, at time.Time) []domain.Correction {
	base := domain.Correction{
		RecordID:    old.ID,
		NewRecordID: now.ID,
		Reason:      req.Reason,
		ApprovedBy:  req.ApprovedBy,
		At:          at,
	}

	var trail []domain.Correction
	add := func(field, oldVal, newVal string) {
		if oldVal == newVal {
			return
		}
		c := base
		c.ID = uuid.New()
		c.Field = field
		c.OldValue = oldVal
		c.NewValue = newVal
		trail = append(trail, c)
	}

	add("check_in_time", formatEventTime(old.FirstEvent), formatEventTime(now.FirstEvent))
	add("check_out_time", formatEventTime(old.LastEvent), formatEventTime(now.LastEvent))
	add("status", string(old.Status), string(now.Status))
	return trail
}

func formatEventTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
