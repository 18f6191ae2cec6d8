package credential

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// HealthCheckConfig controls the periodic probe loop.
type HealthCheckConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
	// Path is appended to the credential's base URL for the probe.
	Path string `json:"path" yaml:"path"`
}

func DefaultHealthCheckConfig() HealthCheckConfig {
	return HealthCheckConfig{
		Interval: 5 * time.Minute,
		Timeout:  10 * time.Second,
		Path:     "/health",
	}
}

// HealthCheckResult is the outcome of probing one credential.
type HealthCheckResult struct {
	CredentialID string
	Healthy      bool
	CheckedAt    time.Time
	Error        string
}

// ProbeFunc issues one health probe. Implementations must honor the context
// deadline.
type ProbeFunc func(ctx context.Context, cred Credential) error

// HealthChecker probes pool credentials on a schedule and reports results
// back to the pool. The probe is pluggable; the default performs a GET
// against the credential's base URL.
type HealthChecker struct {
	config HealthCheckConfig
	pool   *Pool
	probe  ProbeFunc
	logger *slog.Logger
}

func NewHealthChecker(config HealthCheckConfig, pool *Pool, probe ProbeFunc, logger *slog.Logger) *HealthChecker {
	if logger == nil {
		logger = slog.Default()
	}
	if probe == nil {
		probe = func(ctx context.Context, cred Credential) error {
			return httpProbe(ctx, cred, config.Path)
		}
	}
	return &HealthChecker{
		config: config,
		pool:   pool,
		probe:  probe,
		logger: logger,
	}
}

// CheckAll probes every credential in the pool once and records the results.
func (h *HealthChecker) CheckAll(ctx context.Context) []HealthCheckResult {
	credentials := h.pool.Credentials()
	results := make([]HealthCheckResult, 0, len(credentials))

	for _, cred := range credentials {
		if cred.Disabled {
			continue
		}
		result := h.Check(ctx, cred)
		results = append(results, result)
		h.pool.RecordHealth(cred.UUID, result)
	}
	return results
}

// Check probes a single credential.
func (h *HealthChecker) Check(ctx context.Context, cred Credential) HealthCheckResult {
	probeCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	result := HealthCheckResult{
		CredentialID: cred.UUID,
		CheckedAt:    time.Now(),
	}
	if err := h.probe(probeCtx, cred); err != nil {
		result.Error = err.Error()
		h.logger.Warn("Health probe failed", "credential", cred.UUID, "error", err)
	} else {
		result.Healthy = true
	}
	return result
}

// Run probes on the configured interval until the context is cancelled.
func (h *HealthChecker) Run(ctx context.Context) {
	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.CheckAll(ctx)
		}
	}
}

func httpProbe(ctx context.Context, cred Credential, path string) error {
	if cred.BaseURL == "" {
		return fmt.Errorf("credential %s has no base URL to probe", cred.UUID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cred.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}
