package domain

// ErrorKind enumerates the engine's rejection taxonomy. Kinds are stable
// identifiers surfaced to callers; they are not transport codes.
type ErrorKind string

const (
	// Verification-stage rejections. Safe to retry with a fresh event; no
	// state was mutated.
	KindLowConfidence  ErrorKind = "low_confidence"
	KindAmbiguous      ErrorKind = "ambiguous"
	KindMatcherTimeout ErrorKind = "matcher_timeout"

	// State-machine rejections: definitive ordering conflicts, not transient
	// failures.
	KindAlreadyMarked     ErrorKind = "already_marked"
	KindAlreadyCheckedIn  ErrorKind = "already_checked_in"
	KindNotCheckedIn      ErrorKind = "not_checked_in"
	KindAlreadyCheckedOut ErrorKind = "already_checked_out"

	KindOccasionClosed      ErrorKind = "occasion_closed"
	KindPersistenceConflict ErrorKind = "persistence_conflict"
)

// Error is a typed engine rejection. Callers match with errors.Is against the
// exported values below; wrapped copies compare equal by kind.
type Error struct {
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Is makes errors.Is match any Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether retrying the whole operation can succeed. Only
// matcher timeouts and lost persistence races qualify; everything else is a
// definitive business answer.
func (e *Error) Retryable() bool {
	return e.Kind == KindMatcherTimeout || e.Kind == KindPersistenceConflict
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

var (
	ErrLowConfidence  = newError(KindLowConfidence, "match confidence below threshold")
	ErrAmbiguous      = newError(KindAmbiguous, "candidate scores too close to identify")
	ErrMatcherTimeout = newError(KindMatcherTimeout, "matcher did not answer in time")

	ErrAlreadyMarked     = newError(KindAlreadyMarked, "attendance already marked for this occasion")
	ErrAlreadyCheckedIn  = newError(KindAlreadyCheckedIn, "already checked in")
	ErrNotCheckedIn      = newError(KindNotCheckedIn, "cannot check out before checking in")
	ErrAlreadyCheckedOut = newError(KindAlreadyCheckedOut, "already checked out")

	ErrOccasionClosed      = newError(KindOccasionClosed, "occasion no longer accepts events")
	ErrPersistenceConflict = newError(KindPersistenceConflict, "concurrent write race lost, retry the operation")
)
