package credential

import "fmt"

// BalanceStrategy picks among eligible credentials.
type BalanceStrategy string

const (
	StrategyRoundRobin BalanceStrategy = "round_robin"
	StrategyLeastUsed  BalanceStrategy = "least_used"
)

// LoadBalancer picks one credential from an eligible set. It is not
// goroutine-safe on its own; the pool serializes access under its lock.
type LoadBalancer struct {
	strategy BalanceStrategy
	cursor   int
	useCount map[string]int
}

func NewLoadBalancer(strategy BalanceStrategy) (*LoadBalancer, error) {
	switch strategy {
	case StrategyRoundRobin, StrategyLeastUsed:
	default:
		return nil, fmt.Errorf("unknown balance strategy %q", strategy)
	}
	return &LoadBalancer{
		strategy: strategy,
		useCount: make(map[string]int),
	}, nil
}

// Pick selects one credential from the eligible slice and records the use.
// The slice must be non-empty.
func (b *LoadBalancer) Pick(eligible []Credential) Credential {
	var chosen Credential

	switch b.strategy {
	case StrategyLeastUsed:
		chosen = eligible[0]
		for _, c := range eligible[1:] {
			if b.useCount[c.UUID] < b.useCount[chosen.UUID] {
				chosen = c
			}
		}
	default: // round robin
		chosen = eligible[b.cursor%len(eligible)]
		b.cursor++
	}

	b.useCount[chosen.UUID]++
	return chosen
}

// Uses returns how often a credential has been picked.
func (b *LoadBalancer) Uses(uuid string) int {
	return b.useCount[uuid]
}

// Forget drops tracking state for a removed credential.
func (b *LoadBalancer) Forget(uuid string) {
	delete(b.useCount, uuid)
}
