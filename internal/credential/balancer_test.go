package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBalancerRejectsUnknownStrategy(t *testing.T) {
	_, err := NewLoadBalancer("bogus")
	assert.Error(t, err)
}

func TestRoundRobinCycles(t *testing.T) {
	b, err := NewLoadBalancer(StrategyRoundRobin)
	require.NoError(t, err)

	eligible := []Credential{{UUID: "a"}, {UUID: "b"}, {UUID: "c"}}

	var picked []string
	for i := 0; i < 6; i++ {
		picked = append(picked, b.Pick(eligible).UUID)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, picked)
}

func TestLeastUsedPrefersColdCredential(t *testing.T) {
	b, err := NewLoadBalancer(StrategyLeastUsed)
	require.NoError(t, err)

	eligible := []Credential{{UUID: "a"}, {UUID: "b"}}

	assert.Equal(t, "a", b.Pick(eligible).UUID)
	assert.Equal(t, "b", b.Pick(eligible).UUID)
	assert.Equal(t, "a", b.Pick(eligible).UUID)

	// A credential that was unavailable for a while catches up first.
	cold := []Credential{{UUID: "a"}, {UUID: "b"}, {UUID: "c"}}
	assert.Equal(t, "c", b.Pick(cold).UUID)
}

func TestLoadBalancerForget(t *testing.T) {
	b, err := NewLoadBalancer(StrategyLeastUsed)
	require.NoError(t, err)

	eligible := []Credential{{UUID: "a"}}
	b.Pick(eligible)
	assert.Equal(t, 1, b.Uses("a"))

	b.Forget("a")
	assert.Equal(t, 0, b.Uses("a"))
}
