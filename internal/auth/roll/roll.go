// Package roll provides voter-roll lookups: an HTTP client for the electoral
// roll service and an in-memory roll for offline machines and tests.
package roll

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"fortis/pkg/platform/circuit"
	"fortis/pkg/platform/sentinel"
)

// Memory is an in-process roll keyed by election.
type Memory struct {
	mu       sync.RWMutex
	eligible map[string]map[string]bool
	voted    map[string]map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		eligible: make(map[string]map[string]bool),
		voted:    make(map[string]map[string]bool),
	}
}

// Enroll makes voterIDs eligible for electionID.
func (m *Memory) Enroll(electionID string, voterIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.eligible[electionID]
	if !ok {
		set = make(map[string]bool)
		m.eligible[electionID] = set
	}
	for _, id := range voterIDs {
		set[id] = true
	}
}

func (m *Memory) MarkVoted(_ context.Context, voterID, electionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.voted[electionID]
	if !ok {
		set = make(map[string]bool)
		m.voted[electionID] = set
	}
	set[voterID] = true
	return nil
}

func (m *Memory) IsEligible(_ context.Context, voterID, electionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eligible[electionID][voterID], nil
}

func (m *Memory) HasVoted(_ context.Context, voterID, electionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.voted[electionID][voterID], nil
}

type voterStatus struct {
	Eligible bool `json:"eligible"`
	HasVoted bool `json:"has_voted"`
}

// HTTPClient queries GET {base}/v1/elections/{election}/voters/{voter}.
// A 404 means the voter is not on the roll.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*HTTPClient)

func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.client = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *HTTPClient) { h.logger = logger }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(h *HTTPClient) { h.breaker = b }
}

func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: circuit.New("voter-roll"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPClient) IsEligible(ctx context.Context, voterID, electionID string) (bool, error) {
	st, err := h.lookup(ctx, voterID, electionID)
	if err != nil {
		return false, err
	}
	return st.Eligible, nil
}

func (h *HTTPClient) HasVoted(ctx context.Context, voterID, electionID string) (bool, error) {
	st, err := h.lookup(ctx, voterID, electionID)
	if err != nil {
		return false, err
	}
	return st.HasVoted, nil
}

func (h *HTTPClient) lookup(ctx context.Context, voterID, electionID string) (voterStatus, error) {
	if !h.breaker.Allow() {
		return voterStatus{}, fmt.Errorf("voter roll circuit open: %w", sentinel.ErrUnavailable)
	}
	endpoint := fmt.Sprintf("%s/v1/elections/%s/voters/%s", h.baseURL, url.PathEscape(electionID), url.PathEscape(voterID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return voterStatus{}, fmt.Errorf("build roll request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.recordFailure(ctx)
		return voterStatus{}, fmt.Errorf("query voter roll: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		h.breaker.RecordSuccess()
		return voterStatus{}, nil
	case resp.StatusCode >= 500:
		h.recordFailure(ctx)
		return voterStatus{}, fmt.Errorf("voter roll returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		return voterStatus{}, fmt.Errorf("voter roll returned %d", resp.StatusCode)
	}

	var st voterStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return voterStatus{}, fmt.Errorf("decode voter roll response: %w", err)
	}
	h.breaker.RecordSuccess()
	return st, nil
}

func (h *HTTPClient) recordFailure(ctx context.Context) {
	if _, change := h.breaker.RecordFailure(); change.Opened {
		h.logger.WarnContext(ctx, "voter roll circuit opened", "breaker", h.breaker.Name())
	}
}
