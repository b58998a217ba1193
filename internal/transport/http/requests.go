package httptransport

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"

	"presence/internal/domain"
	"presence/internal/verify"
)

// markRequest is the body for mark, check-in and check-out events. Image is
// base64; it stays opaque to the engine and goes straight to the matcher.
type markRequest struct {
	SubjectID string `json:"subject_id"`
	Image     string `json:"image,omitempty"`
	Method    string `json:"method,omitempty"`
	At        string `json:"at,omitempty"`
}

func (r markRequest) validate(requireSubject bool) string {
	if requireSubject && r.SubjectID == "" {
		return "subject_id is required"
	}
	switch r.Method {
	case "", string(domain.MethodBiometric):
		if r.Image == "" {
			return "image is required for biometric marking"
		}
	case string(domain.MethodManual):
	default:
		return "method must be biometric or manual"
	}
	if r.At != "" {
		if _, err := time.Parse(time.RFC3339, r.At); err != nil {
			return "at must be RFC3339"
		}
	}
	return ""
}

func (r markRequest) at() time.Time {
	if r.At == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, r.At)
	return t.UTC()
}

func (r markRequest) manual() bool {
	return r.Method == string(domain.MethodManual)
}

func (r markRequest) image() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.Image)
}

type correctionRequest struct {
	CheckIn    *time.Time `json:"check_in,omitempty"`
	CheckOut   *time.Time `json:"check_out,omitempty"`
	Reason     string     `json:"reason"`
	ApprovedBy string     `json:"approved_by"`
}

func (r correctionRequest) validate() string {
	if r.CheckIn == nil && r.CheckOut == nil {
		return "at least one of check_in or check_out is required"
	}
	if r.Reason == "" {
		return "reason is required"
	}
	if r.ApprovedBy == "" {
		return "approved_by is required"
	}
	return ""
}

// recordResponse is the stable AttendanceRecord snapshot shape.
type recordResponse struct {
	ID         uuid.UUID  `json:"id"`
	SubjectID  string     `json:"subject_id"`
	OccasionID string     `json:"occasion_id"`
	State      string     `json:"state"`
	Status     string     `json:"status"`
	Method     string     `json:"method"`
	FirstEvent *time.Time `json:"first_event_time,omitempty"`
	LastEvent  *time.Time `json:"last_event_time,omitempty"`

	TotalHours    float64 `json:"total_hours"`
	OvertimeHours float64 `json:"overtime_hours"`
	Confidence    float64 `json:"confidence"`
	AfterEnd      bool    `json:"after_end,omitempty"`

	SupersededBy *uuid.UUID `json:"superseded_by,omitempty"`
}

func toRecordResponse(rec domain.AttendanceRecord) recordResponse {
	return recordResponse{
		ID:            rec.ID,
		SubjectID:     rec.SubjectID.String(),
		OccasionID:    rec.OccasionID.String(),
		State:         string(rec.State),
		Status:        string(rec.Status),
		Method:        string(rec.Method),
		FirstEvent:    rec.FirstEvent,
		LastEvent:     rec.LastEvent,
		TotalHours:    rec.TotalHours,
		OvertimeHours: rec.OvertimeHours,
		Confidence:    rec.Confidence,
		AfterEnd:      rec.AfterEnd,
		SupersededBy:  rec.SupersededBy,
	}
}

// markResponse pairs the record with the verification decision that produced
// it so callers can show the confidence behind an acceptance.
type markResponse struct {
	Record     recordResponse `json:"record"`
	Confidence float64        `json:"confidence"`
	Threshold  float64        `json:"threshold"`
	Mode       string         `json:"mode,omitempty"`
}

func toMarkResponse(rec domain.AttendanceRecord, out verify.Outcome) markResponse {
	return markResponse{
		Record:     toRecordResponse(rec),
		Confidence: out.Confidence,
		Threshold:  out.Threshold,
		Mode:       string(out.Mode),
	}
}

type correctionResponse struct {
	ID          uuid.UUID `json:"id"`
	RecordID    uuid.UUID `json:"record_id"`
	NewRecordID uuid.UUID `json:"new_record_id"`
	Field       string    `json:"field"`
	OldValue    string    `json:"old_value"`
	NewValue    string    `json:"new_value"`
	Reason      string    `json:"reason"`
	ApprovedBy  string    `json:"approved_by"`
	At          time.Time `json:"at"`
}

func toCorrectionResponses(cs []domain.Correction) []correctionResponse {
	out := make([]correctionResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, correctionResponse{
			ID:          c.ID,
			RecordID:    c.RecordID,
			NewRecordID: c.NewRecordID,
			Field:       c.Field,
			OldValue:    c.OldValue,
			NewValue:    c.NewValue,
			Reason:      c.Reason,
			ApprovedBy:  c.ApprovedBy,
			At:          c.At,
		})
	}
	return out
}

type occasionResponse struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	Active   bool       `json:"active"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

func toOccasionResponse(occ domain.Occasion) occasionResponse {
	return occasionResponse{
		ID:       occ.ID.String(),
		Kind:     string(occ.Kind),
		Active:   occ.Active,
		ClosedAt: occ.ClosedAt,
	}
}
