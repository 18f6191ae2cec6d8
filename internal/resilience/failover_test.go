package resilience

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name    string
		status  *int
		message string
		want    FailureType
	}{
		{"429 is quota", intPtr(429), "", FailureQuotaExceeded},
		{"401 is auth", intPtr(401), "", FailureAuthentication},
		{"403 is auth", intPtr(403), "", FailureAuthentication},
		{"502 is unavailable", intPtr(502), "", FailureServiceUnavailable},
		{"503 is unavailable", intPtr(503), "", FailureServiceUnavailable},
		{"504 is unavailable", intPtr(504), "", FailureServiceUnavailable},
		{"no status is network", nil, "connection reset", FailureNetwork},
		{"no status with quota keyword", nil, "monthly quota reached", FailureQuotaExceeded},
		{"500 with throttle message", intPtr(500), "request was throttled", FailureQuotaExceeded},
		{"500 with rate limit message", intPtr(500), "Rate limit exceeded", FailureQuotaExceeded},
		{"500 plain", intPtr(500), "internal error", FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFailure(tt.status, tt.message))
		})
	}
}

func TestFailureTypeSwitchPolicy(t *testing.T) {
	assert.True(t, FailureQuotaExceeded.ShouldSwitchCredential())
	assert.True(t, FailureServiceUnavailable.ShouldSwitchCredential())
	assert.True(t, FailureNetwork.ShouldSwitchCredential())
	assert.False(t, FailureAuthentication.ShouldSwitchCredential())
	assert.False(t, FailureUnknown.ShouldSwitchCredential())
}

func TestFailoverManagerBoundsSwitches(t *testing.T) {
	m := NewFailoverManager(2, nil)

	assert.True(t, m.RecordFailure("cred-1", FailureQuotaExceeded))
	m.RecordSwitch("cred-1", "cred-2", FailureQuotaExceeded)

	assert.True(t, m.RecordFailure("cred-2", FailureServiceUnavailable))
	m.RecordSwitch("cred-2", "cred-3", FailureServiceUnavailable)

	// Budget exhausted: two switches for a pool of two alternatives.
	assert.False(t, m.RecordFailure("cred-3", FailureQuotaExceeded))
	assert.Len(t, m.Switches(), 2)
}

func TestFailoverManagerAuthNeverSwitches(t *testing.T) {
	m := NewFailoverManager(5, nil)

	assert.False(t, m.RecordFailure("cred-1", FailureAuthentication))
	assert.True(t, m.HasFailed("cred-1"))
	assert.Empty(t, m.Switches())
}

func TestFailoverManagerTracksFailedSet(t *testing.T) {
	m := NewFailoverManager(5, nil)

	m.RecordFailure("cred-1", FailureNetwork)
	m.RecordFailure("cred-2", FailureQuotaExceeded)

	assert.True(t, m.HasFailed("cred-1"))
	assert.True(t, m.HasFailed("cred-2"))
	assert.False(t, m.HasFailed("cred-3"))
	assert.ElementsMatch(t, []string{"cred-1", "cred-2"}, m.FailedCredentials())
}
