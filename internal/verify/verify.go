// Package verify turns raw biometric match scores into accept/reject
// verification outcomes under configurable threshold policy. The decision
// functions are pure; the Gateway adds the bounded call to the external
// matcher.
package verify

import (
	"sort"

	"presence/internal/domain"
)

// DecideVerification applies the verification-mode rule: accept iff the score
// meets the subject's override threshold, falling back to the policy default.
func DecideVerification(subject *domain.Subject, score float64, policy domain.Policy) Outcome {
	threshold := policy.VerifyThreshold
	if subject != nil && subject.ThresholdOverride != nil {
		threshold = *subject.ThresholdOverride
	}

	out := Outcome{
		Confidence: score,
		Threshold:  threshold,
		Mode:       ModeVerification,
	}
	if subject != nil {
		out.SubjectID = subject.ID
	}

	if score >= threshold {
		out.Accepted = true
		return out
	}
	out.Reason = domain.KindLowConfidence
	return out
}

// DecideIdentification applies the identification-mode rule: the best
// candidate wins only when its score clears the identification threshold and
// leads the runner-up by at least the configured margin. Near-ties are
// rejected as ambiguous rather than guessed.
func DecideIdentification(candidates []Candidate, policy domain.Policy) Outcome {
	out := Outcome{
		Threshold: policy.IdentifyThreshold,
		Mode:      ModeIdentification,
	}

	if len(candidates) == 0 {
		out.Reason = domain.KindLowConfidence
		return out
	}

	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	best := ranked[0]
	out.Confidence = best.Score

	if best.Score < policy.IdentifyThreshold {
		out.Reason = domain.KindLowConfidence
		return out
	}
	if len(ranked) > 1 && best.Score-ranked[1].Score < policy.IdentifyMargin {
		out.Reason = domain.KindAmbiguous
		return out
	}

	out.Accepted = true
	out.SubjectID = best.SubjectID
	return out
}
