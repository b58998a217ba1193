package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"presence/internal/domain"
	"presence/pkg/platform/sentinel"
	"presence/pkg/requestcontext"
)

// In-memory stores keep the engine runnable and testable without external
// services. They implement the same conditional-write semantics as the
// PostgreSQL stores, so the state machine behaves identically against either.

type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]domain.AttendanceRecord
	// live indexes the single non-corrected record per pair.
	live map[string]uuid.UUID
}

func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{
		records: make(map[uuid.UUID]domain.AttendanceRecord),
		live:    make(map[string]uuid.UUID),
	}
}

func (s *InMemoryRecordStore) GetLive(_ context.Context, subjectID domain.SubjectID, occasionID domain.OccasionID) (domain.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.live[pairKey(subjectID, occasionID)]; ok {
		return s.records[id], nil
	}
	return domain.AttendanceRecord{}, sentinel.ErrNotFound
}

func (s *InMemoryRecordStore) GetByID(_ context.Context, id uuid.UUID) (domain.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[id]; ok {
		return rec, nil
	}
	return domain.AttendanceRecord{}, sentinel.ErrNotFound
}

func (s *InMemoryRecordStore) CreateIfAbsent(ctx context.Context, rec domain.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(rec.SubjectID, rec.OccasionID)
	if _, exists := s.live[key]; exists {
		return sentinel.ErrConflict
	}

	now := requestcontext.Now(ctx)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.records[rec.ID] = rec
	s.live[key] = rec.ID
	return nil
}

func (s *InMemoryRecordStore) Transition(ctx context.Context, id uuid.UUID, expected domain.RecordState, update RecordUpdate) (domain.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return domain.AttendanceRecord{}, sentinel.ErrNotFound
	}
	if rec.State != expected {
		return domain.AttendanceRecord{}, sentinel.ErrConflict
	}

	rec.State = update.State
	rec.Status = update.Status
	rec.LastEvent = update.LastEvent
	rec.TotalHours = update.TotalHours
	rec.OvertimeHours = update.OvertimeHours
	rec.AfterEnd = update.AfterEnd
	if update.Confidence > rec.Confidence {
		rec.Confidence = update.Confidence
	}
	rec.UpdatedAt = requestcontext.Now(ctx)

	s.records[id] = rec
	return rec, nil
}

func (s *InMemoryRecordStore) Supersede(ctx context.Context, oldID uuid.UUID, expected domain.RecordState, replacement domain.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[oldID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if old.State != expected {
		return sentinel.ErrConflict
	}

	now := requestcontext.Now(ctx)
	old.State = domain.StateCorrected
	old.SupersededBy = &replacement.ID
	old.UpdatedAt = now
	s.records[oldID] = old

	replacement.CreatedAt = now
	replacement.UpdatedAt = now
	s.records[replacement.ID] = replacement
	s.live[pairKey(replacement.SubjectID, replacement.OccasionID)] = replacement.ID
	return nil
}

func (s *InMemoryRecordStore) List(_ context.Context, filter HistoryFilter) ([]domain.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AttendanceRecord
	for _, rec := range s.records {
		if !filter.IncludeCorrected && !rec.Live() {
			continue
		}
		if filter.SubjectID != "" && rec.SubjectID != filter.SubjectID {
			continue
		}
		if filter.OccasionID != "" && rec.OccasionID != filter.OccasionID {
			continue
		}
		at := recordTime(rec)
		if !filter.From.IsZero() && at.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !at.Before(filter.To) {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		return recordTime(out[i]).Before(recordTime(out[j]))
	})
	return out, nil
}

// recordTime anchors a record on the timeline: the first event when one
// exists, otherwise creation time (synthesized absences have no events).
func recordTime(rec domain.AttendanceRecord) time.Time {
	if rec.FirstEvent != nil {
		return *rec.FirstEvent
	}
	return rec.CreatedAt
}

type InMemoryOccasionStore struct {
	mu        sync.RWMutex
	occasions map[domain.OccasionID]domain.Occasion
}

func NewInMemoryOccasionStore() *InMemoryOccasionStore {
	return &InMemoryOccasionStore{occasions: make(map[domain.OccasionID]domain.Occasion)}
}

func (s *InMemoryOccasionStore) Get(_ context.Context, id domain.OccasionID) (domain.Occasion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if occ, ok := s.occasions[id]; ok {
		return occ, nil
	}
	return domain.Occasion{}, sentinel.ErrNotFound
}

func (s *InMemoryOccasionStore) Put(_ context.Context, occ domain.Occasion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.occasions[occ.ID] = occ
	return nil
}

func (s *InMemoryOccasionStore) Close(_ context.Context, id domain.OccasionID, at time.Time) (domain.Occasion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	occ, ok := s.occasions[id]
	if !ok {
		return domain.Occasion{}, sentinel.ErrNotFound
	}
	if !occ.Active {
		return occ, nil
	}
	occ.Active = false
	occ.ClosedAt = &at
	s.occasions[id] = occ
	return occ, nil
}

func (s *InMemoryOccasionStore) ListClosable(_ context.Context, now time.Time) ([]domain.Occasion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Occasion
	for _, occ := range s.occasions {
		if occ.Active && now.After(occ.AcceptanceDeadline()) {
			out = append(out, occ)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].End.Before(out[j].End) })
	return out, nil
}

type InMemoryCorrectionStore struct {
	mu          sync.RWMutex
	corrections map[uuid.UUID][]domain.Correction
}

func NewInMemoryCorrectionStore() *InMemoryCorrectionStore {
	return &InMemoryCorrectionStore{corrections: make(map[uuid.UUID][]domain.Correction)}
}

func (s *InMemoryCorrectionStore) Append(_ context.Context, corrections ...domain.Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range corrections {
		s.corrections[c.RecordID] = append(s.corrections[c.RecordID], c)
	}
	return nil
}

func (s *InMemoryCorrectionStore) ListByRecord(_ context.Context, recordID uuid.UUID) ([]domain.Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Correction{}, s.corrections[recordID]...), nil
}
