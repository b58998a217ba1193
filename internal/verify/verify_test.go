package verify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/domain"
	"presence/pkg/platform/sentinel"
)

func TestDecideVerification(t *testing.T) {
	policy := domain.DefaultPolicy()
	subject := &domain.Subject{ID: "subj-1"}

	t.Run("score at threshold is accepted", func(t *testing.T) {
		out := DecideVerification(subject, 0.80, policy)
		assert.True(t, out.Accepted)
		assert.Equal(t, domain.SubjectID("subj-1"), out.SubjectID)
		assert.NoError(t, out.Err())
	})

	t.Run("score below threshold is low confidence", func(t *testing.T) {
		out := DecideVerification(subject, 0.79, policy)
		assert.False(t, out.Accepted)
		assert.Equal(t, domain.KindLowConfidence, out.Reason)
		assert.ErrorIs(t, out.Err(), domain.ErrLowConfidence)
	})

	t.Run("per-subject override wins over policy", func(t *testing.T) {
		override := 0.90
		strict := &domain.Subject{ID: "subj-2", ThresholdOverride: &override}

		out := DecideVerification(strict, 0.85, policy)
		assert.False(t, out.Accepted)
		assert.Equal(t, 0.90, out.Threshold)
	})

	t.Run("raising the threshold never flips a rejection to an accept", func(t *testing.T) {
		for score := 0.0; score <= 1.0; score += 0.05 {
			loose := policy
			loose.VerifyThreshold = 0.70
			strict := policy
			strict.VerifyThreshold = 0.90

			looseOut := DecideVerification(subject, score, loose)
			strictOut := DecideVerification(subject, score, strict)
			if strictOut.Accepted {
				require.True(t, looseOut.Accepted,
					"score %.2f accepted at 0.90 but rejected at 0.70", score)
			}
		}
	})
}

func TestDecideIdentification(t *testing.T) {
	policy := domain.DefaultPolicy()

	t.Run("clear winner is accepted", func(t *testing.T) {
		out := DecideIdentification([]Candidate{
			{SubjectID: "a", Score: 0.92},
			{SubjectID: "b", Score: 0.70},
		}, policy)
		assert.True(t, out.Accepted)
		assert.Equal(t, domain.SubjectID("a"), out.SubjectID)
		assert.Equal(t, 0.92, out.Confidence)
	})

	t.Run("unsorted input still selects the best candidate", func(t *testing.T) {
		out := DecideIdentification([]Candidate{
			{SubjectID: "b", Score: 0.60},
			{SubjectID: "a", Score: 0.95},
			{SubjectID: "c", Score: 0.50},
		}, policy)
		assert.True(t, out.Accepted)
		assert.Equal(t, domain.SubjectID("a"), out.SubjectID)
	})

	t.Run("best score under identification threshold is low confidence", func(t *testing.T) {
		out := DecideIdentification([]Candidate{{SubjectID: "a", Score: 0.84}}, policy)
		assert.False(t, out.Accepted)
		assert.Equal(t, domain.KindLowConfidence, out.Reason)
	})

	t.Run("near-tie is ambiguous", func(t *testing.T) {
		out := DecideIdentification([]Candidate{
			{SubjectID: "a", Score: 0.90},
			{SubjectID: "b", Score: 0.88},
		}, policy)
		assert.False(t, out.Accepted)
		assert.Equal(t, domain.KindAmbiguous, out.Reason)
		assert.Empty(t, out.SubjectID)
	})

	t.Run("empty candidate list is low confidence", func(t *testing.T) {
		out := DecideIdentification(nil, policy)
		assert.False(t, out.Accepted)
		assert.Equal(t, domain.KindLowConfidence, out.Reason)
	})

	t.Run("single candidate needs no margin", func(t *testing.T) {
		out := DecideIdentification([]Candidate{{SubjectID: "a", Score: 0.86}}, policy)
		assert.True(t, out.Accepted)
	})
}

type stubMatcher struct {
	result MatchResult
	err    error
	delay  time.Duration
}

func (m *stubMatcher) Match(ctx context.Context, _ []byte, _ *domain.SubjectID) (MatchResult, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return MatchResult{}, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	return m.result, m.err
}

func TestGateway(t *testing.T) {
	policy := domain.DefaultPolicy()
	subject := &domain.Subject{ID: "subj-1"}

	t.Run("verify accepts a good score", func(t *testing.T) {
		g := NewGateway(&stubMatcher{result: MatchResult{Score: 0.91}}, time.Second, nil, nil)

		out, err := g.Verify(context.Background(), []byte("img"), subject, policy)
		require.NoError(t, err)
		assert.True(t, out.Accepted)
		assert.Equal(t, 0.91, out.Confidence)
	})

	t.Run("slow matcher yields MatcherTimeout", func(t *testing.T) {
		g := NewGateway(&stubMatcher{delay: 200 * time.Millisecond}, 20*time.Millisecond, nil, nil)

		out, err := g.Verify(context.Background(), []byte("img"), subject, policy)
		assert.ErrorIs(t, err, domain.ErrMatcherTimeout)
		assert.False(t, out.Accepted)
		assert.Equal(t, domain.KindMatcherTimeout, out.Reason)
	})

	t.Run("matcher failure propagates without a timeout reason", func(t *testing.T) {
		boom := errors.New("matcher down")
		g := NewGateway(&stubMatcher{err: boom}, time.Second, nil, nil)

		out, err := g.Verify(context.Background(), []byte("img"), subject, policy)
		assert.ErrorIs(t, err, boom)
		assert.False(t, out.Accepted)
		assert.Empty(t, out.Reason)
	})

	t.Run("degraded matcher propagates unavailable", func(t *testing.T) {
		down := fmt.Errorf("matcher degraded: %w", sentinel.ErrUnavailable)
		g := NewGateway(&stubMatcher{err: down}, time.Second, nil, nil)

		out, err := g.Identify(context.Background(), []byte("img"), policy)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.Empty(t, out.Reason)
	})

	t.Run("failure metric label follows the failure class", func(t *testing.T) {
		assert.Equal(t, string(domain.KindMatcherTimeout), matchFailureLabel(domain.ErrMatcherTimeout))
		assert.Equal(t, "matcher_unavailable", matchFailureLabel(fmt.Errorf("call matcher: %w", sentinel.ErrUnavailable)))
		assert.Equal(t, "matcher_error", matchFailureLabel(errors.New("connection reset")))
	})

	t.Run("identify resolves the best candidate", func(t *testing.T) {
		g := NewGateway(&stubMatcher{result: MatchResult{Candidates: []Candidate{
			{SubjectID: "a", Score: 0.93},
			{SubjectID: "b", Score: 0.60},
		}}}, time.Second, nil, nil)

		out, err := g.Identify(context.Background(), []byte("img"), policy)
		require.NoError(t, err)
		assert.True(t, out.Accepted)
		assert.Equal(t, domain.SubjectID("a"), out.SubjectID)
	})
}
