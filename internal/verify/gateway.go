package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"presence/internal/domain"
	"presence/internal/verify/metrics"
	"presence/pkg/platform/sentinel"
)

// Gateway bounds calls to the external matcher and applies the decision rules.
// It holds no mutable state, so callers may share one instance across
// goroutines.
type Gateway struct {
	matcher Matcher
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewGateway constructs a verification gateway. timeout bounds every matcher
// call; a matcher that overruns it yields MatcherTimeout and no state change
// anywhere downstream.
func NewGateway(matcher Matcher, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Gateway {
	return &Gateway{
		matcher: matcher,
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

// Verify runs verification mode: the subject claims an identity and the
// matcher scores that claim against the subject's registered template.
func (g *Gateway) Verify(ctx context.Context, image []byte, subject *domain.Subject, policy domain.Policy) (Outcome, error) {
	claimed := subject.ID
	result, err := g.match(ctx, image, &claimed)
	if err != nil {
		return g.matchFailed(ModeVerification, err)
	}

	out := DecideVerification(subject, result.Score, policy)
	g.observe(ctx, out)
	return out, nil
}

// Identify runs identification mode: the matcher returns a candidate list and
// the best candidate must clear both the threshold and the runner-up margin.
func (g *Gateway) Identify(ctx context.Context, image []byte, policy domain.Policy) (Outcome, error) {
	result, err := g.match(ctx, image, nil)
	if err != nil {
		return g.matchFailed(ModeIdentification, err)
	}

	out := DecideIdentification(result.Candidates, policy)
	g.observe(ctx, out)
	return out, nil
}

// matchFailed records why the matcher call failed. Only a timeout carries a
// rejection reason; an unreachable or broken matcher is an infrastructure
// error the caller surfaces as-is.
func (g *Gateway) matchFailed(mode Mode, err error) (Outcome, error) {
	g.metrics.IncrementDecision(string(mode), matchFailureLabel(err))
	out := Outcome{Mode: mode}
	if errors.Is(err, domain.ErrMatcherTimeout) {
		out.Reason = domain.KindMatcherTimeout
	}
	return out, err
}

func matchFailureLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrMatcherTimeout):
		return string(domain.KindMatcherTimeout)
	case errors.Is(err, sentinel.ErrUnavailable):
		return "matcher_unavailable"
	default:
		return "matcher_error"
	}
}

func (g *Gateway) match(ctx context.Context, image []byte, claimed *domain.SubjectID) (MatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	result, err := g.matcher.Match(ctx, image, claimed)
	g.metrics.ObserveMatchLatency(time.Since(start))

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return MatchResult{}, domain.ErrMatcherTimeout
		}
		return MatchResult{}, err
	}
	return result, nil
}

func (g *Gateway) observe(ctx context.Context, out Outcome) {
	result := "accepted"
	if !out.Accepted {
		result = string(out.Reason)
	}
	g.metrics.IncrementDecision(string(out.Mode), result)

	if g.logger != nil {
		g.logger.DebugContext(ctx, "verification decided",
			"mode", out.Mode,
			"accepted", out.Accepted,
			"confidence", out.Confidence,
			"threshold", out.Threshold,
			"subject_id", out.SubjectID,
		)
	}
}
