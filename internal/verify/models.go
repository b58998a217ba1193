package verify

import (
	"context"

	"presence/internal/domain"
)

// Mode selects the decision rule applied to a match signal.
type Mode string

const (
	// ModeVerification: the subject claims an identity (self check-in) and
	// the matcher scores that single claim.
	ModeVerification Mode = "verification"

	// ModeIdentification: the subject is unknown (operator marking a class)
	// and the matcher returns a ranked candidate list.
	ModeIdentification Mode = "identification"
)

// Candidate is one scored identity from the matcher in identification mode.
type Candidate struct {
	SubjectID domain.SubjectID
	Score     float64
}

// MatchResult is the opaque matcher output the engine consumes. The engine
// never sees images or embeddings, only scores.
type MatchResult struct {
	Score      float64
	Candidates []Candidate
}

// Matcher is the external biometric collaborator. In verification mode
// claimed carries the asserted identity; in identification mode it is nil.
type Matcher interface {
	Match(ctx context.Context, image []byte, claimed *domain.SubjectID) (MatchResult, error)
}

// Outcome is the ephemeral verification decision. It is never persisted as its
// own entity; accepted outcomes feed the state machine, rejected ones carry
// the rejection kind back to the caller.
type Outcome struct {
	Accepted   bool
	Confidence float64
	Threshold  float64
	Mode       Mode

	// SubjectID is the claimed subject in verification mode or the resolved
	// best candidate in identification mode. Empty on ambiguous rejections.
	SubjectID domain.SubjectID

	// Reason is set only on rejection.
	Reason domain.ErrorKind
}

// Err translates a rejected outcome into its domain error. Nil for accepted
// outcomes.
func (o Outcome) Err() error {
	if o.Accepted {
		return nil
	}
	switch o.Reason {
	case domain.KindAmbiguous:
		return domain.ErrAmbiguous
	case domain.KindMatcherTimeout:
		return domain.ErrMatcherTimeout
	default:
		return domain.ErrLowConfidence
	}
}
