package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"presence/internal/aggregate/metrics"
	"presence/internal/attendance"
	"presence/internal/domain"
	"presence/pkg/platform/sentinel"
	platformstrings "presence/pkg/platform/strings"
)

// Roster answers who was expected at an occasion. Enrollment is owned by an
// external system; the sweep only needs the expected-subject set.
type Roster interface {
	ExpectedSubjects(ctx context.Context, occ domain.Occasion) ([]domain.SubjectID, error)
}

// Sweeper closes elapsed occasions and synthesizes Absent records for every
// expected subject that produced no event. This is the only writer that
// creates records without a verified event, and the only path that assigns
// StatusAbsent.
type Sweeper struct {
	occasions attendance.OccasionStore
	records   attendance.RecordStore
	roster    Roster
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewSweeper(occasions attendance.OccasionStore, records attendance.RecordStore, roster Roster, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		occasions: occasions,
		records:   records,
		roster:    roster,
		interval:  interval,
		logger:    logger,
		metrics:   m,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. Failures are
// logged and retried on the next pass; the sweep never blocks marking.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.SweepOnce(ctx, now.UTC()); err != nil && s.logger != nil {
				s.logger.ErrorContext(ctx, "absence sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce closes every occasion whose window has elapsed at now and fills
// in absences. Exported so operators can trigger a pass on demand.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) error {
	closable, err := s.occasions.ListClosable(ctx, now)
	if err != nil {
		return err
	}

	var errs []error
	for _, occ := range closable {
		if _, err := s.occasions.Close(ctx, occ.ID, now); err != nil {
			errs = append(errs, err)
			continue
		}
		s.metrics.IncrementOccasionsClosed()

		if err := s.FillAbsences(ctx, occ); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FillAbsences synthesizes an Absent record for every expected subject with
// no live record against occ. Subjects who produced an event lose the
// CreateIfAbsent race by design, so the pass is idempotent.
func (s *Sweeper) FillAbsences(ctx context.Context, occ domain.Occasion) error {
	expected, err := s.roster.ExpectedSubjects(ctx, occ)
	if err != nil {
		return err
	}

	synthesized := 0
	var errs []error
	for _, subjectID := range expected {
		rec := domain.AttendanceRecord{
			ID:         uuid.New(),
			SubjectID:  subjectID,
			OccasionID: occ.ID,
			State:      domain.StateCompleted,
			Status:     domain.StatusAbsent,
			Method:     domain.MethodSweep,
		}
		err := s.records.CreateIfAbsent(ctx, rec)
		if errors.Is(err, sentinel.ErrConflict) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		synthesized++
		s.metrics.IncrementAbsencesSynthesized()
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "occasion swept",
			"occasion_id", occ.ID,
			"expected", len(expected),
			"absences", synthesized,
		)
	}
	return errors.Join(errs...)
}

// InMemoryRoster is a static group-to-subjects mapping for single-process
// deployments and tests.
type InMemoryRoster struct {
	mu      sync.RWMutex
	byGroup map[string][]domain.SubjectID
}

func NewInMemoryRoster() *InMemoryRoster {
	return &InMemoryRoster{byGroup: make(map[string][]domain.SubjectID)}
}

// Enroll adds subjects to a group. Input is deduped against what is already
// enrolled so repeated imports stay idempotent.
func (r *InMemoryRoster) Enroll(group string, subjects ...domain.SubjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	merged := make([]string, 0, len(r.byGroup[group])+len(subjects))
	for _, s := range r.byGroup[group] {
		merged = append(merged, string(s))
	}
	for _, s := range subjects {
		merged = append(merged, string(s))
	}

	deduped := platformstrings.DedupeAndTrim(merged)
	ids := make([]domain.SubjectID, len(deduped))
	for i, s := range deduped {
		ids[i] = domain.SubjectID(s)
	}
	r.byGroup[group] = ids
}

func (r *InMemoryRoster) ExpectedSubjects(_ context.Context, occ domain.Occasion) ([]domain.SubjectID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.SubjectID{}, r.byGroup[occ.Group]...), nil
}
