package resilience

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// FailureType classifies an upstream failure for failover decisions.
type FailureType int

const (
	FailureUnknown FailureType = iota
	FailureQuotaExceeded
	FailureAuthentication
	FailureServiceUnavailable
	FailureNetwork
)

func (f FailureType) String() string {
	switch f {
	case FailureQuotaExceeded:
		return "quota_exceeded"
	case FailureAuthentication:
		return "authentication_failed"
	case FailureServiceUnavailable:
		return "service_unavailable"
	case FailureNetwork:
		return "network_error"
	default:
		return "unknown"
	}
}

// ShouldSwitchCredential reports whether this failure class warrants moving
// to another credential. Authentication failures never switch: a bad key is
// bad on every retry and switching would burn the whole pool.
func (f FailureType) ShouldSwitchCredential() bool {
	switch f {
	case FailureQuotaExceeded, FailureServiceUnavailable, FailureNetwork:
		return true
	default:
		return false
	}
}

var quotaKeywords = []string{
	"quota",
	"rate limit",
	"rate_limit",
	"too many requests",
	"exceeded",
	"limit exceeded",
	"throttl",
}

// ClassifyFailure maps a status code and error message to a FailureType.
// A nil status code means the request never produced an HTTP response.
func ClassifyFailure(statusCode *int, message string) FailureType {
	lower := strings.ToLower(message)

	if statusCode == nil {
		for _, kw := range quotaKeywords {
			if strings.Contains(lower, kw) {
				return FailureQuotaExceeded
			}
		}
		return FailureNetwork
	}

	switch *statusCode {
	case 429:
		return FailureQuotaExceeded
	case 401, 403:
		return FailureAuthentication
	case 502, 503, 504:
		return FailureServiceUnavailable
	}

	for _, kw := range quotaKeywords {
		if strings.Contains(lower, kw) {
			return FailureQuotaExceeded
		}
	}
	return FailureUnknown
}

// Switch records one credential change during a request.
type Switch struct {
	From    string
	To      string
	Reason  FailureType
	At      time.Time
}

// FailoverManager tracks which credentials already failed within one logical
// request so a retry never reuses them, bounded by the pool size.
type FailoverManager struct {
	mu       sync.Mutex
	logger   *slog.Logger
	failed   map[string]FailureType
	switches []Switch
	// maxSwitches caps failover at the number of available credentials.
	maxSwitches int
}

func NewFailoverManager(maxSwitches int, logger *slog.Logger) *FailoverManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailoverManager{
		logger:      logger,
		failed:      make(map[string]FailureType),
		maxSwitches: maxSwitches,
	}
}

// RecordFailure marks a credential as failed for this request and reports
// whether a switch to another credential is still allowed.
func (m *FailoverManager) RecordFailure(credentialID string, failure FailureType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failed[credentialID] = failure

	if !failure.ShouldSwitchCredential() {
		m.logger.Debug("Failure does not warrant credential switch",
			"credential", credentialID,
			"failure", failure.String(),
		)
		return false
	}
	return len(m.switches) < m.maxSwitches
}

// RecordSwitch logs a credential change.
func (m *FailoverManager) RecordSwitch(from, to string, reason FailureType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.switches = append(m.switches, Switch{From: from, To: to, Reason: reason, At: time.Now()})
	m.logger.Info("Switched credential",
		"from", from,
		"to", to,
		"reason", reason.String(),
		"switches", len(m.switches),
	)
}

// HasFailed reports whether the credential already failed in this request.
func (m *FailoverManager) HasFailed(credentialID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.failed[credentialID]
	return ok
}

// FailedCredentials returns the ids that failed so far.
func (m *FailoverManager) FailedCredentials() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.failed))
	for id := range m.failed {
		ids = append(ids, id)
	}
	return ids
}

// Switches returns a snapshot of the switch log.
func (m *FailoverManager) Switches() []Switch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Switch(nil), m.switches...)
}
