package domain

import "time"

// OccasionID identifies a scheduled unit attendance is measured against.
type OccasionID string

func (id OccasionID) String() string { return string(id) }

// OccasionKind distinguishes the two attendance models.
type OccasionKind string

const (
	// OccasionSession is a one-off scheduled meeting: a single accepted event
	// marks full attendance.
	OccasionSession OccasionKind = "session"

	// OccasionDay is an open-ended workday with a check-in and a check-out.
	OccasionDay OccasionKind = "day"
)

// Policy holds the per-occasion thresholds. Different cohorts run different
// policies, so these are plain data attached to each occasion rather than
// process-wide settings.
type Policy struct {
	Grace                time.Duration
	EarlyDepartureGrace  time.Duration
	LateAcceptanceWindow time.Duration
	OvertimeThresholdHrs float64
	HalfDayHours         float64

	VerifyThreshold   float64
	IdentifyThreshold float64
	IdentifyMargin    float64
}

// DefaultPolicy mirrors the institutional defaults: 15 minute grace on both
// ends, 8 standard hours, 0.80 verification and 0.85 identification thresholds.
func DefaultPolicy() Policy {
	return Policy{
		Grace:                15 * time.Minute,
		EarlyDepartureGrace:  15 * time.Minute,
		LateAcceptanceWindow: 0,
		OvertimeThresholdHrs: 8,
		HalfDayHours:         4,
		VerifyThreshold:      0.80,
		IdentifyThreshold:    0.85,
		IdentifyMargin:       0.05,
	}
}

// Occasion is the thing attendance is recorded against. It is created by an
// external scheduling flow and immutable once events exist, except for the
// explicit close transition.
type Occasion struct {
	ID       OccasionID
	Kind     OccasionKind
	Group    string
	Start    time.Time
	End      time.Time
	Policy   Policy
	Active   bool
	ClosedAt *time.Time
}

// GraceDeadline is the last instant an event still counts as on time.
func (o Occasion) GraceDeadline() time.Time {
	return o.Start.Add(o.Policy.Grace)
}

// AcceptanceDeadline is the last instant a session event is accepted at all.
// Events after the scheduled end are admitted (as late) only within the
// configured late-acceptance window.
func (o Occasion) AcceptanceDeadline() time.Time {
	return o.End.Add(o.Policy.LateAcceptanceWindow)
}

// AcceptsAt reports whether the occasion admits a new event at t.
func (o Occasion) AcceptsAt(t time.Time) bool {
	if !o.Active {
		return false
	}
	if o.Kind == OccasionSession && t.After(o.AcceptanceDeadline()) {
		return false
	}
	return true
}
