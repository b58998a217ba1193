package verify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"presence/internal/domain"
	"presence/pkg/platform/sentinel"
)

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(ctx context.Context, image []byte, claimed *domain.SubjectID) (MatchResult, error)

func (f MatcherFunc) Match(ctx context.Context, image []byte, claimed *domain.SubjectID) (MatchResult, error) {
	return f(ctx, image, claimed)
}

// HTTPMatcher calls an external matching service. The engine only ships
// opaque image bytes out and scores back in; cancellation and deadlines come
// from the caller's context (the gateway bounds them).
type HTTPMatcher struct {
	baseURL string
	client  *http.Client
}

func NewHTTPMatcher(baseURL string, client *http.Client) *HTTPMatcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPMatcher{baseURL: baseURL, client: client}
}

type matchRequest struct {
	Image            string `json:"image"`
	ClaimedSubjectID string `json:"claimed_subject_id,omitempty"`
}

type matchResponse struct {
	Score      float64 `json:"score"`
	Candidates []struct {
		SubjectID string  `json:"subject_id"`
		Score     float64 `json:"score"`
	} `json:"candidates"`
}

func (m *HTTPMatcher) Match(ctx context.Context, image []byte, claimed *domain.SubjectID) (MatchResult, error) {
	payload := matchRequest{Image: base64.StdEncoding.EncodeToString(image)}
	if claimed != nil {
		payload.ClaimedSubjectID = claimed.String()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return MatchResult{}, fmt.Errorf("marshal match request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/match", bytes.NewReader(body))
	if err != nil {
		return MatchResult{}, fmt.Errorf("build match request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return MatchResult{}, fmt.Errorf("call matcher: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return MatchResult{}, fmt.Errorf("matcher returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var decoded matchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return MatchResult{}, fmt.Errorf("decode match response: %w", err)
	}

	result := MatchResult{Score: decoded.Score}
	for _, c := range decoded.Candidates {
		result.Candidates = append(result.Candidates, Candidate{
			SubjectID: domain.SubjectID(c.SubjectID),
			Score:     c.Score,
		})
	}
	return result, nil
}
