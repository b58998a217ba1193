package aggregate

import (
	"fmt"
	"sort"

	"presence/internal/domain"
)

// detectAnomalies derives warning flags per subject from a history slice. It
// is a pure pass over records already in memory; chronology comes from the
// same ordering the stores return (first event time ascending).
func detectAnomalies(recs []domain.AttendanceRecord, th Thresholds) []Anomaly {
	bySubject := make(map[domain.SubjectID][]domain.AttendanceRecord)
	for _, rec := range recs {
		bySubject[rec.SubjectID] = append(bySubject[rec.SubjectID], rec)
	}

	subjects := make([]domain.SubjectID, 0, len(bySubject))
	for id := range bySubject {
		subjects = append(subjects, id)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i] < subjects[j] })

	var out []Anomaly
	for _, id := range subjects {
		out = append(out, subjectAnomalies(id, bySubject[id], th)...)
	}
	return out
}

func subjectAnomalies(id domain.SubjectID, recs []domain.AttendanceRecord, th Thresholds) []Anomaly {
	var out []Anomaly

	attended := 0
	absentRun, maxAbsentRun := 0, 0
	lateRun, maxLateRun := 0, 0
	peakHours := 0.0

	for _, rec := range recs {
		if rec.Status.Attended() {
			attended++
		}

		if rec.Status == domain.StatusAbsent {
			absentRun++
			if absentRun > maxAbsentRun {
				maxAbsentRun = absentRun
			}
		} else {
			absentRun = 0
		}

		if rec.Status == domain.StatusLate {
			lateRun++
			if lateRun > maxLateRun {
				maxLateRun = lateRun
			}
		} else {
			lateRun = 0
		}

		if rec.TotalHours > peakHours {
			peakHours = rec.TotalHours
		}
	}

	rate := float64(attended) / float64(len(recs))
	if rate < th.ChronicAbsenceFloor {
		out = append(out, Anomaly{
			Kind:      AnomalyChronicAbsence,
			SubjectID: id,
			Value:     rate,
			Detail:    fmt.Sprintf("attendance rate %.0f%% below %.0f%% floor", rate*100, th.ChronicAbsenceFloor*100),
		})
	}
	if th.AbsenceStreak > 0 && maxAbsentRun >= th.AbsenceStreak {
		out = append(out, Anomaly{
			Kind:      AnomalyAbsenceStreak,
			SubjectID: id,
			Value:     float64(maxAbsentRun),
			Detail:    fmt.Sprintf("%d consecutive absences", maxAbsentRun),
		})
	}
	if th.LateStreak > 0 && maxLateRun >= th.LateStreak {
		out = append(out, Anomaly{
			Kind:      AnomalyLateStreak,
			SubjectID: id,
			Value:     float64(maxLateRun),
			Detail:    fmt.Sprintf("%d consecutive late arrivals", maxLateRun),
		})
	}
	if th.DailyOvertimeHours > 0 && peakHours > th.DailyOvertimeHours {
		out = append(out, Anomaly{
			Kind:      AnomalyExcessiveOvertime,
			SubjectID: id,
			Value:     peakHours,
			Detail:    fmt.Sprintf("%.1f hours in one day exceeds %.0f", peakHours, th.DailyOvertimeHours),
		})
	}
	if a, ok := decliningTrend(id, recs, th.TrendDelta); ok {
		out = append(out, a)
	}
	return out
}

// decliningTrend compares the attendance rate of the window's later half
// against its earlier half.
func decliningTrend(id domain.SubjectID, recs []domain.AttendanceRecord, delta float64) (Anomaly, bool) {
	if delta <= 0 || len(recs) < 4 {
		return Anomaly{}, false
	}

	mid := len(recs) / 2
	earlier := attendedRate(recs[:mid])
	later := attendedRate(recs[mid:])

	if later >= earlier-delta {
		return Anomaly{}, false
	}
	return Anomaly{
		Kind:      AnomalyDecliningTrend,
		SubjectID: id,
		Value:     earlier - later,
		Detail:    fmt.Sprintf("attendance rate fell from %.0f%% to %.0f%%", earlier*100, later*100),
	}, true
}

func attendedRate(recs []domain.AttendanceRecord) float64 {
	if len(recs) == 0 {
		return 0
	}
	attended := 0
	for _, rec := range recs {
		if rec.Status.Attended() {
			attended++
		}
	}
	return float64(attended) / float64(len(recs))
}
