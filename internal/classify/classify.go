// Package classify turns event timestamps plus occasion policy into an
// attendance status and derived hour metrics. Everything here is pure domain
// logic - no I/O, no side effects - so every other copy of status logic in the
// system defers to this one.
package classify

import (
	"time"

	"presence/internal/domain"
)

// Metrics are the derived numbers attached to a record at transition time.
type Metrics struct {
	TotalHours    float64
	OvertimeHours float64

	// AfterEnd marks session events admitted after the scheduled end, inside
	// the late-acceptance window.
	AfterEnd bool
}

// Classify computes the status category for a record given its first and last
// event times. Identical inputs always yield identical outputs.
//
// A nil first event means no verified event exists for an expected subject,
// which is an absence regardless of occasion kind.
func Classify(occ domain.Occasion, first, last *time.Time) (domain.Status, Metrics) {
	if first == nil {
		return domain.StatusAbsent, Metrics{}
	}
	if occ.Kind == domain.OccasionSession {
		return classifySession(occ, *first)
	}
	return classifyDay(occ, *first, last)
}

func classifySession(occ domain.Occasion, at time.Time) (domain.Status, Metrics) {
	if !at.After(occ.GraceDeadline()) {
		return domain.StatusPresent, Metrics{}
	}
	if !at.After(occ.End) {
		return domain.StatusLate, Metrics{}
	}
	// Inside the late-acceptance window; admissibility past the window is the
	// state machine's call, not the classifier's.
	return domain.StatusLate, Metrics{AfterEnd: true}
}

// classifyDay applies the category precedence for clock-in/out occasions:
// overtime, half day, late, early departure, present - first match wins.
func classifyDay(occ domain.Occasion, first time.Time, last *time.Time) (domain.Status, Metrics) {
	late := first.After(occ.GraceDeadline())

	if last == nil {
		// Still clocked in; only lateness is decidable.
		if late {
			return domain.StatusLate, Metrics{}
		}
		return domain.StatusPresent, Metrics{}
	}

	m := Metrics{TotalHours: TotalHours(first, *last)}
	m.OvertimeHours = overtime(m.TotalHours, occ.Policy.OvertimeThresholdHrs)

	switch {
	case m.TotalHours > occ.Policy.OvertimeThresholdHrs+1:
		return domain.StatusOvertime, m
	case m.TotalHours < occ.Policy.HalfDayHours:
		return domain.StatusHalfDay, m
	case late:
		return domain.StatusLate, m
	case last.Before(occ.End.Add(-occ.Policy.EarlyDepartureGrace)):
		return domain.StatusEarlyDeparture, m
	default:
		return domain.StatusPresent, m
	}
}

// TotalHours measures the span between check-in and check-out, rolling the
// checkout forward a day when an overnight shift wraps past midnight.
func TotalHours(first, last time.Time) float64 {
	if last.Before(first) {
		last = last.Add(24 * time.Hour)
	}
	return last.Sub(first).Hours()
}

func overtime(totalHours, threshold float64) float64 {
	if totalHours <= threshold {
		return 0
	}
	return totalHours - threshold
}
