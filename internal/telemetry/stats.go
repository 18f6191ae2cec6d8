package telemetry

import (
	"sync"
	"time"
)

// RequestLog is one completed request as recorded by the telemetry step.
type RequestLog struct {
	RequestID    string        `json:"request_id"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	CredentialID string        `json:"credential_id,omitempty"`
	Status       int           `json:"status"`
	Streamed     bool          `json:"streamed"`
	Retries      int           `json:"retries"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Duration     time.Duration `json:"duration"`
	At           time.Time     `json:"at"`
}

// ProviderStats aggregates per-provider request outcomes.
type ProviderStats struct {
	Requests     int64         `json:"requests"`
	Failures     int64         `json:"failures"`
	Retries      int64         `json:"retries"`
	InputTokens  int64         `json:"input_tokens"`
	OutputTokens int64         `json:"output_tokens"`
	TotalLatency time.Duration `json:"-"`
	AvgLatencyMS int64         `json:"avg_latency_ms"`
}

// Stats collects request logs and keeps rolling per-provider aggregates.
// A bounded ring of recent logs is retained for the health endpoint.
type Stats struct {
	mu        sync.Mutex
	providers map[string]*ProviderStats
	recent    []RequestLog
	maxRecent int
	started   time.Time
}

const defaultMaxRecent = 100

func NewStats() *Stats {
	return &Stats{
		providers: make(map[string]*ProviderStats),
		maxRecent: defaultMaxRecent,
		started:   time.Now(),
	}
}

// Record folds one request log into the aggregates.
func (s *Stats) Record(log RequestLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps := s.providers[log.Provider]
	if ps == nil {
		ps = &ProviderStats{}
		s.providers[log.Provider] = ps
	}

	ps.Requests++
	if log.Status >= 400 {
		ps.Failures++
	}
	ps.Retries += int64(log.Retries)
	ps.InputTokens += int64(log.InputTokens)
	ps.OutputTokens += int64(log.OutputTokens)
	ps.TotalLatency += log.Duration
	ps.AvgLatencyMS = ps.TotalLatency.Milliseconds() / ps.Requests

	s.recent = append(s.recent, log)
	if len(s.recent) > s.maxRecent {
		s.recent = s.recent[len(s.recent)-s.maxRecent:]
	}
}

// Provider returns a copy of the aggregate for one provider.
func (s *Stats) Provider(name string) (ProviderStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.providers[name]
	if !ok {
		return ProviderStats{}, false
	}
	return *ps, true
}

// Snapshot returns a copy of all per-provider aggregates.
func (s *Stats) Snapshot() map[string]ProviderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ProviderStats, len(s.providers))
	for name, ps := range s.providers {
		out[name] = *ps
	}
	return out
}

// Recent returns the retained request logs, newest last.
func (s *Stats) Recent() []RequestLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RequestLog, len(s.recent))
	copy(out, s.recent)
	return out
}

// Uptime reports how long this Stats instance has been collecting.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.started)
}
