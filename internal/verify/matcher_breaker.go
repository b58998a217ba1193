package verify

import (
	"context"
	"fmt"
	"log/slog"

	"presence/internal/domain"
	"presence/pkg/platform/circuit"
	"presence/pkg/platform/sentinel"
)

// BreakerMatcher guards a Matcher with a circuit breaker. Every attempt is
// recorded; once the circuit opens, failures surface as ErrUnavailable so
// callers can distinguish a down matcher from a one-off error, and the
// circuit closes again after enough consecutive successes.
type BreakerMatcher struct {
	inner   Matcher
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewBreakerMatcher(inner Matcher, breaker *circuit.Breaker, logger *slog.Logger) *BreakerMatcher {
	return &BreakerMatcher{inner: inner, breaker: breaker, logger: logger}
}

func (m *BreakerMatcher) Match(ctx context.Context, image []byte, claimed *domain.SubjectID) (MatchResult, error) {
	result, err := m.inner.Match(ctx, image, claimed)
	if err != nil {
		degraded, change := m.breaker.RecordFailure()
		if change.Opened && m.logger != nil {
			m.logger.Warn("matcher circuit opened", "breaker", m.breaker.Name(), "error", err)
		}
		if degraded {
			return MatchResult{}, fmt.Errorf("matcher degraded: %w", sentinel.ErrUnavailable)
		}
		return MatchResult{}, err
	}

	if _, change := m.breaker.RecordSuccess(); change.Closed && m.logger != nil {
		m.logger.Info("matcher circuit closed", "breaker", m.breaker.Name())
	}
	return result, nil
}
