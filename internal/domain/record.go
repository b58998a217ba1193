package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecordState is the lifecycle state of an AttendanceRecord.
type RecordState string

const (
	StateUnmarked   RecordState = "unmarked"
	StateInProgress RecordState = "in_progress"
	StateCompleted  RecordState = "completed"

	// StateCorrected is terminal. A corrected record is immutable and is
	// superseded by a replacement record linked through SupersededBy.
	StateCorrected RecordState = "corrected"
)

// Status is the derived attendance category.
type Status string

const (
	StatusPresent        Status = "present"
	StatusLate           Status = "late"
	StatusEarlyDeparture Status = "early_departure"
	StatusAbsent         Status = "absent"
	StatusOvertime       Status = "overtime"
	StatusHalfDay        Status = "half_day"
)

// Attended reports whether the status counts toward the attendance rate.
func (s Status) Attended() bool {
	switch s {
	case StatusPresent, StatusLate, StatusOvertime, StatusHalfDay:
		return true
	}
	return false
}

// Method tags how the accepting event was produced.
type Method string

const (
	MethodBiometric Method = "biometric"
	MethodManual    Method = "manual"

	// MethodSweep marks records synthesized by the absence sweep; they carry
	// no verified event.
	MethodSweep Method = "sweep"
)

// AttendanceRecord is the single authoritative attendance fact for one
// (subject, occasion) pair. It is created on the first accepted event, mutated
// only by the state machine, and never deleted - corrections supersede it.
type AttendanceRecord struct {
	ID         uuid.UUID
	SubjectID  SubjectID
	OccasionID OccasionID

	State  RecordState
	Status Status
	Method Method

	FirstEvent *time.Time
	LastEvent  *time.Time

	TotalHours    float64
	OvertimeHours float64
	Confidence    float64
	AfterEnd      bool

	// SupersededBy points at the replacement record once this one has been
	// corrected. Nil for live records.
	SupersededBy *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Live reports whether this record is the authoritative one for its pair.
func (r AttendanceRecord) Live() bool { return r.State != StateCorrected }

// Correction is the audited change object. Records are never edited in place;
// every correction keeps the old and new values alongside who approved it.
type Correction struct {
	ID       uuid.UUID
	RecordID uuid.UUID

	NewRecordID uuid.UUID

	Field      string
	OldValue   string
	NewValue   string
	Reason     string
	ApprovedBy string
	At         time.Time
}
