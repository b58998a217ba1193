package attendance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/domain"
	"presence/pkg/platform/sentinel"
	"presence/pkg/testutil"
)

func liveRecord(subjectID domain.SubjectID, occasionID domain.OccasionID, at time.Time) domain.AttendanceRecord {
	return domain.AttendanceRecord{
		ID:         uuid.New(),
		SubjectID:  subjectID,
		OccasionID: occasionID,
		State:      domain.StateInProgress,
		Status:     domain.StatusPresent,
		Method:     domain.MethodBiometric,
		FirstEvent: &at,
	}
}

func TestInMemoryRecordStore_CreateIfAbsent(t *testing.T) {
	ctx := testutil.Context(t)
	store := NewInMemoryRecordStore()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateIfAbsent(ctx, liveRecord("subj-1", "occ-1", at)))

	err := store.CreateIfAbsent(ctx, liveRecord("subj-1", "occ-1", at.Add(time.Minute)))
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	// A different pair is independent.
	assert.NoError(t, store.CreateIfAbsent(ctx, liveRecord("subj-2", "occ-1", at)))
}

func TestInMemoryRecordStore_TransitionExpectedState(t *testing.T) {
	ctx := testutil.Context(t)
	store := NewInMemoryRecordStore()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rec := liveRecord("subj-1", "occ-1", at)
	require.NoError(t, store.CreateIfAbsent(ctx, rec))

	out := at.Add(8 * time.Hour)
	updated, err := store.Transition(ctx, rec.ID, domain.StateInProgress, RecordUpdate{
		State:      domain.StateCompleted,
		Status:     domain.StatusPresent,
		LastEvent:  &out,
		TotalHours: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, updated.State)

	// The record left InProgress, so the same transition now conflicts.
	_, err = store.Transition(ctx, rec.ID, domain.StateInProgress, RecordUpdate{State: domain.StateCompleted})
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	_, err = store.Transition(ctx, uuid.New(), domain.StateInProgress, RecordUpdate{State: domain.StateCompleted})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryRecordStore_Supersede(t *testing.T) {
	ctx := testutil.Context(t)
	store := NewInMemoryRecordStore()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	old := liveRecord("subj-1", "occ-1", at)
	require.NoError(t, store.CreateIfAbsent(ctx, old))

	replacement := liveRecord("subj-1", "occ-1", at.Add(time.Minute))
	require.NoError(t, store.Supersede(ctx, old.ID, domain.StateInProgress, replacement))

	got, err := store.GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCorrected, got.State)
	require.NotNil(t, got.SupersededBy)
	assert.Equal(t, replacement.ID, *got.SupersededBy)

	live, err := store.GetLive(ctx, "subj-1", "occ-1")
	require.NoError(t, err)
	assert.Equal(t, replacement.ID, live.ID)

	// Stale expected state no longer matches after the first supersede.
	err = store.Supersede(ctx, old.ID, domain.StateInProgress, liveRecord("subj-1", "occ-1", at))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestInMemoryRecordStore_ListFilters(t *testing.T) {
	ctx := testutil.Context(t)
	store := NewInMemoryRecordStore()
	day1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	a := liveRecord("subj-1", "occ-1", day1)
	b := liveRecord("subj-1", "occ-2", day2)
	c := liveRecord("subj-2", "occ-1", day1.Add(time.Hour))
	for _, rec := range []domain.AttendanceRecord{b, c, a} {
		require.NoError(t, store.CreateIfAbsent(ctx, rec))
	}

	bySubject, err := store.List(ctx, HistoryFilter{SubjectID: "subj-1"})
	require.NoError(t, err)
	require.Len(t, bySubject, 2)
	assert.Equal(t, a.ID, bySubject[0].ID, "ordered by event time")
	assert.Equal(t, b.ID, bySubject[1].ID)

	window, err := store.List(ctx, HistoryFilter{From: day1, To: day1.Add(12 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, window, 2)

	// Corrected records drop out of default listings.
	require.NoError(t, store.Supersede(ctx, a.ID, domain.StateInProgress, liveRecord("subj-1", "occ-1", day1)))
	defaultList, err := store.List(ctx, HistoryFilter{SubjectID: "subj-1", OccasionID: "occ-1"})
	require.NoError(t, err)
	require.Len(t, defaultList, 1)
	assert.NotEqual(t, a.ID, defaultList[0].ID)

	all, err := store.List(ctx, HistoryFilter{SubjectID: "subj-1", OccasionID: "occ-1", IncludeCorrected: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestInMemoryOccasionStore_CloseAndListClosable(t *testing.T) {
	ctx := testutil.Context(t)
	store := NewInMemoryOccasionStore()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	occ := domain.Occasion{ID: "occ-1", Kind: domain.OccasionSession, Start: start, End: start.Add(time.Hour), Policy: domain.DefaultPolicy(), Active: true}
	require.NoError(t, store.Put(ctx, occ))

	closable, err := store.ListClosable(ctx, start.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, closable, "window still open")

	closable, err = store.ListClosable(ctx, start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, closable, 1)

	closedAt := start.Add(2 * time.Hour)
	closed, err := store.Close(ctx, occ.ID, closedAt)
	require.NoError(t, err)
	assert.False(t, closed.Active)

	again, err := store.Close(ctx, occ.ID, closedAt.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, again.ClosedAt)
	assert.Equal(t, closedAt, *again.ClosedAt, "close is idempotent")

	closable, err = store.ListClosable(ctx, closedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, closable)
}
