package aggregate

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/attendance"
	"presence/internal/domain"
	"presence/pkg/testutil"
)

func TestSweepOnce(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (*Sweeper, *attendance.InMemoryRecordStore, *attendance.InMemoryOccasionStore, domain.Occasion) {
		records := attendance.NewInMemoryRecordStore()
		occasions := attendance.NewInMemoryOccasionStore()
		roster := NewInMemoryRoster()
		roster.Enroll("cohort-a", "subj-1", "subj-2", "subj-3")

		occ := domain.Occasion{
			ID:     "occ-1",
			Kind:   domain.OccasionSession,
			Group:  "cohort-a",
			Start:  start,
			End:    start.Add(time.Hour),
			Policy: domain.DefaultPolicy(),
			Active: true,
		}
		require.NoError(t, occasions.Put(testutil.Context(t), occ))

		sweeper := NewSweeper(occasions, records, roster, time.Minute, nil, nil)
		return sweeper, records, occasions, occ
	}

	t.Run("every expected subject ends with exactly one record", func(t *testing.T) {
		sweeper, records, occasions, occ := setup(t)

		// subj-1 attended before the window elapsed.
		attendedAt := start.Add(5 * time.Minute)
		require.NoError(t, records.CreateIfAbsent(testutil.ContextAt(t, attendedAt), domain.AttendanceRecord{
			ID:         uuid.New(),
			SubjectID:  "subj-1",
			OccasionID: occ.ID,
			State:      domain.StateCompleted,
			Status:     domain.StatusPresent,
			Method:     domain.MethodBiometric,
			FirstEvent: &attendedAt,
		}))

		now := occ.End.Add(time.Minute)
		require.NoError(t, sweeper.SweepOnce(testutil.ContextAt(t, now), now))

		closed, err := occasions.Get(testutil.Context(t), occ.ID)
		require.NoError(t, err)
		assert.False(t, closed.Active)

		for _, subjectID := range []domain.SubjectID{"subj-1", "subj-2", "subj-3"} {
			rec, err := records.GetLive(testutil.Context(t), subjectID, occ.ID)
			require.NoError(t, err, "subject %s has a record", subjectID)
			if subjectID == "subj-1" {
				assert.Equal(t, domain.StatusPresent, rec.Status)
				assert.Equal(t, domain.MethodBiometric, rec.Method)
			} else {
				assert.Equal(t, domain.StatusAbsent, rec.Status)
				assert.Equal(t, domain.MethodSweep, rec.Method)
				assert.Nil(t, rec.FirstEvent)
			}
		}
	})

	t.Run("sweeping twice adds nothing", func(t *testing.T) {
		sweeper, records, _, occ := setup(t)

		now := occ.End.Add(time.Minute)
		require.NoError(t, sweeper.SweepOnce(testutil.ContextAt(t, now), now))

		before, err := records.List(testutil.Context(t), attendance.HistoryFilter{OccasionID: occ.ID})
		require.NoError(t, err)

		// Second pass: the occasion is already closed, and a direct refill
		// loses every CreateIfAbsent race.
		require.NoError(t, sweeper.SweepOnce(testutil.ContextAt(t, now.Add(time.Minute)), now.Add(time.Minute)))
		require.NoError(t, sweeper.FillAbsences(testutil.ContextAt(t, now.Add(time.Minute)), occ))

		after, err := records.List(testutil.Context(t), attendance.HistoryFilter{OccasionID: occ.ID})
		require.NoError(t, err)
		assert.Equal(t, len(before), len(after))
	})

	t.Run("open occasions are left alone", func(t *testing.T) {
		sweeper, records, occasions, occ := setup(t)

		now := occ.End.Add(-time.Minute)
		require.NoError(t, sweeper.SweepOnce(testutil.ContextAt(t, now), now))

		still, err := occasions.Get(testutil.Context(t), occ.ID)
		require.NoError(t, err)
		assert.True(t, still.Active)

		recs, err := records.List(testutil.Context(t), attendance.HistoryFilter{OccasionID: occ.ID})
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("late acceptance window delays the close", func(t *testing.T) {
		sweeper, _, occasions, occ := setup(t)
		occ.Policy.LateAcceptanceWindow = 30 * time.Minute
		require.NoError(t, occasions.Put(testutil.Context(t), occ))

		inWindow := occ.End.Add(10 * time.Minute)
		require.NoError(t, sweeper.SweepOnce(testutil.ContextAt(t, inWindow), inWindow))
		still, err := occasions.Get(testutil.Context(t), occ.ID)
		require.NoError(t, err)
		assert.True(t, still.Active, "still inside the acceptance window")

		pastWindow := occ.End.Add(31 * time.Minute)
		require.NoError(t, sweeper.SweepOnce(testutil.ContextAt(t, pastWindow), pastWindow))
		closed, err := occasions.Get(testutil.Context(t), occ.ID)
		require.NoError(t, err)
		assert.False(t, closed.Active)
	})
}
