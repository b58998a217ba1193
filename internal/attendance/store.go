package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"presence/internal/domain"
)

// Stores are interface-driven so the state machine can run against in-memory
// maps in tests and PostgreSQL in production without rewiring business code.
// Both implementations must provide the conditional-write semantics the
// uniqueness invariant depends on: CreateIfAbsent and Transition never
// read-then-write without atomicity.

// RecordUpdate carries the fields a transition may change. The state machine
// is the only caller; stores apply it blindly once the expected-state check
// passes.
type RecordUpdate struct {
	State         domain.RecordState
	Status        domain.Status
	LastEvent     *time.Time
	TotalHours    float64
	OvertimeHours float64
	Confidence    float64
	AfterEnd      bool
}

// HistoryFilter narrows history queries. Zero fields are ignored.
type HistoryFilter struct {
	SubjectID  domain.SubjectID
	OccasionID domain.OccasionID
	From       time.Time
	To         time.Time

	// IncludeCorrected widens the query to superseded records; by default
	// only live history is returned.
	IncludeCorrected bool
}

// RecordStore persists AttendanceRecords.
type RecordStore interface {
	// GetLive returns the single non-corrected record for the pair, or
	// sentinel.ErrNotFound.
	GetLive(ctx context.Context, subjectID domain.SubjectID, occasionID domain.OccasionID) (domain.AttendanceRecord, error)

	GetByID(ctx context.Context, id uuid.UUID) (domain.AttendanceRecord, error)

	// CreateIfAbsent inserts the record unless a live record for the pair
	// already exists, in which case it returns sentinel.ErrConflict. The
	// check and insert are atomic.
	CreateIfAbsent(ctx context.Context, rec domain.AttendanceRecord) error

	// Transition applies update iff the record is currently in expected
	// state. A mismatch returns sentinel.ErrConflict; a missing record
	// returns sentinel.ErrNotFound.
	Transition(ctx context.Context, id uuid.UUID, expected domain.RecordState, update RecordUpdate) (domain.AttendanceRecord, error)

	// Supersede atomically moves the old record to Corrected (iff still in
	// expected state) and inserts its replacement.
	Supersede(ctx context.Context, oldID uuid.UUID, expected domain.RecordState, replacement domain.AttendanceRecord) error

	// List returns the append-only record history for aggregation. Results
	// are ordered by first event time ascending.
	List(ctx context.Context, filter HistoryFilter) ([]domain.AttendanceRecord, error)
}

// OccasionStore persists occasions. Creation belongs to the external
// scheduling flow; the engine only reads them and applies the close
// transition.
type OccasionStore interface {
	Get(ctx context.Context, id domain.OccasionID) (domain.Occasion, error)
	Put(ctx context.Context, occ domain.Occasion) error

	// Close deactivates the occasion so no further events are accepted.
	// Closing an already-closed occasion is a no-op returning the occasion.
	Close(ctx context.Context, id domain.OccasionID, at time.Time) (domain.Occasion, error)

	// ListClosable returns active occasions whose window has elapsed at now.
	ListClosable(ctx context.Context, now time.Time) ([]domain.Occasion, error)
}

// CorrectionStore is the separately-audited trail of record corrections.
type CorrectionStore interface {
	// Append writes the given corrections as one unit: either all land or
	// none do.
	Append(ctx context.Context, corrections ...domain.Correction) error
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]domain.Correction, error)
}

// TxRunner groups writes across stores into one atomic unit. The SQL-backed
// implementation opens a transaction and hands it to the stores through the
// context; callers without transactional storage may leave it nil and the
// service runs the function directly.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
