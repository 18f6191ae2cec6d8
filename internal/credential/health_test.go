package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckerRecordsResults(t *testing.T) {
	pool := newTestPool(t,
		Credential{UUID: "good"},
		Credential{UUID: "bad"},
		Credential{UUID: "off", Disabled: true},
	)

	probe := func(ctx context.Context, cred Credential) error {
		if cred.UUID == "bad" {
			return errors.New("probe failed")
		}
		return nil
	}
	checker := NewHealthChecker(DefaultHealthCheckConfig(), pool, probe, nil)

	results := checker.CheckAll(context.Background())
	require.Len(t, results, 2, "disabled credentials are not probed")

	byID := map[string]HealthCheckResult{}
	for _, r := range results {
		byID[r.CredentialID] = r
	}
	assert.True(t, byID["good"].Healthy)
	assert.False(t, byID["bad"].Healthy)
	assert.Equal(t, "probe failed", byID["bad"].Error)

	// Unhealthy credentials drop out of selection.
	sel, err := pool.Select(nil)
	require.NoError(t, err)
	assert.Equal(t, "good", sel.Credential.UUID)
	assert.Equal(t, 1, sel.Eligible)
}

func TestHealthCheckerProbeTimeout(t *testing.T) {
	pool := newTestPool(t, Credential{UUID: "slow"})

	cfg := DefaultHealthCheckConfig()
	probe := func(ctx context.Context, cred Credential) error {
		<-ctx.Done()
		return ctx.Err()
	}
	cfg.Timeout = 1 // nanosecond, forces immediate deadline

	checker := NewHealthChecker(cfg, pool, probe, nil)
	result := checker.Check(context.Background(), Credential{UUID: "slow"})
	assert.False(t, result.Healthy)
	assert.NotEmpty(t, result.Error)
}
