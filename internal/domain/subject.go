package domain

// SubjectID identifies a person who can be marked present (student or employee).
type SubjectID string

func (id SubjectID) String() string { return string(id) }

// Subject is the enrollment-time view of a person. The biometric template is
// owned by the external matcher; the engine only carries an opaque reference to
// it. Subjects are never mutated by the engine.
type Subject struct {
	ID          SubjectID
	TemplateRef string

	// ThresholdOverride replaces the occasion policy's verification threshold
	// for this subject when set. Nil means use the policy value.
	ThresholdOverride *float64

	Cohort string
}
