// Package aggregate computes read-model reports over attendance record
// history. Nothing here has write authority over records: every output is
// reproducible by replaying the same history, and cached copies carry an
// explicit staleness flag instead of pretending to be current.
package aggregate

import (
	"fmt"
	"time"

	"presence/internal/domain"
)

// Query selects the history slice a report is computed over. Zero fields
// widen the query; a subject-scoped and an occasion-scoped report use the
// same pipeline.
type Query struct {
	SubjectID  domain.SubjectID  `json:"subject_id,omitempty"`
	OccasionID domain.OccasionID `json:"occasion_id,omitempty"`
	From       time.Time         `json:"from"`
	To         time.Time         `json:"to"`
}

func (q Query) cacheKey() string {
	return fmt.Sprintf("report:%s:%s:%d:%d", q.SubjectID, q.OccasionID, q.From.Unix(), q.To.Unix())
}

// StatusCounts is the per-category tally of one report.
type StatusCounts struct {
	Present        int `json:"present"`
	Late           int `json:"late"`
	EarlyDeparture int `json:"early_departure"`
	Absent         int `json:"absent"`
	Overtime       int `json:"overtime"`
	HalfDay        int `json:"half_day"`
}

func (c *StatusCounts) add(status domain.Status) {
	switch status {
	case domain.StatusPresent:
		c.Present++
	case domain.StatusLate:
		c.Late++
	case domain.StatusEarlyDeparture:
		c.EarlyDeparture++
	case domain.StatusAbsent:
		c.Absent++
	case domain.StatusOvertime:
		c.Overtime++
	case domain.StatusHalfDay:
		c.HalfDay++
	}
}

// TrendPoint is one day's attendance rate within the trend series.
type TrendPoint struct {
	Day       time.Time `json:"day"`
	Total     int       `json:"total"`
	Attended  int       `json:"attended"`
	Rate      float64   `json:"rate"`
	MovingAvg float64   `json:"moving_avg"`
}

// AnomalyKind tags a derived warning flag.
type AnomalyKind string

const (
	AnomalyChronicAbsence    AnomalyKind = "chronic_absence"
	AnomalyAbsenceStreak     AnomalyKind = "absence_streak"
	AnomalyLateStreak        AnomalyKind = "late_streak"
	AnomalyDecliningTrend    AnomalyKind = "declining_trend"
	AnomalyExcessiveOvertime AnomalyKind = "excessive_overtime"
)

// Anomaly is a read-only flag derived from history. It carries the measured
// value that tripped the threshold so callers can rank severity.
type Anomaly struct {
	Kind      AnomalyKind      `json:"kind"`
	SubjectID domain.SubjectID `json:"subject_id"`
	Value     float64          `json:"value"`
	Detail    string           `json:"detail"`
}

// Report is the rolled-up view for one query.
type Report struct {
	Query Query `json:"query"`

	TotalRecords    int          `json:"total_records"`
	Counts          StatusCounts `json:"counts"`
	AttendanceRate  float64      `json:"attendance_rate"`
	PunctualityRate float64      `json:"punctuality_rate"`
	TotalHours      float64      `json:"total_hours"`
	OvertimeHours   float64      `json:"overtime_hours"`

	Trend     []TrendPoint `json:"trend"`
	Anomalies []Anomaly    `json:"anomalies"`
}

// Cached wraps a report with its provenance so callers can distinguish a live
// recompute from a possibly outdated copy.
type Cached struct {
	Report     Report    `json:"report"`
	ComputedAt time.Time `json:"computed_at"`
	Stale      bool      `json:"stale"`
}

// Thresholds configure anomaly detection. Like occasion policy these are
// plain data so different deployments can tune them.
type Thresholds struct {
	// ChronicAbsenceFloor flags subjects whose attendance rate falls below it.
	ChronicAbsenceFloor float64

	// AbsenceStreak and LateStreak flag runs of consecutive records.
	AbsenceStreak int
	LateStreak    int

	// TrendDelta flags a window whose later half drops below the earlier half
	// by more than this much.
	TrendDelta float64

	// DailyOvertimeHours flags any single record above this many hours.
	DailyOvertimeHours float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ChronicAbsenceFloor: 0.75,
		AbsenceStreak:       2,
		LateStreak:          3,
		TrendDelta:          0.1,
		DailyOvertimeHours:  12,
	}
}
