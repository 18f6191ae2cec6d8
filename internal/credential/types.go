// Package credential holds the per-provider credential pool: selection with
// load balancing, health tracking, and quota-aware cooldown failover.
package credential

import "time"

// Credential is one upstream identity the gateway can call with. The access
// token is acquired externally and handed in ready to use.
type Credential struct {
	UUID         string    `json:"uuid" yaml:"uuid"`
	ProviderType string    `json:"provider_type" yaml:"provider_type"`
	Label        string    `json:"label,omitempty" yaml:"label,omitempty"`
	AccessToken  string    `json:"access_token" yaml:"access_token"`
	BaseURL      string    `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Disabled     bool      `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Selection is the outcome of picking a credential for one request.
type Selection struct {
	Credential Credential
	// Eligible is how many credentials were selectable at pick time; it
	// bounds how many failover switches a request may still perform.
	Eligible int
}

// CooldownInfo records why and until when a credential is excluded.
type CooldownInfo struct {
	Until  time.Time
	Reason string
}

// HealthStatus is the recorded outcome of the latest probe.
type HealthStatus struct {
	Healthy   bool
	CheckedAt time.Time
	Error     string
}

// PoolStatus is a point-in-time summary for diagnostics.
type PoolStatus struct {
	Provider   string `json:"provider"`
	Total      int    `json:"total"`
	Eligible   int    `json:"eligible"`
	Disabled   int    `json:"disabled"`
	Unhealthy  int    `json:"unhealthy"`
	CoolingOff int    `json:"cooling_off"`
}
