package credential

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Davincible/ai-gateway-go/internal/resilience"
)

// Pool manages the credentials of one provider. Selection and reporting are
// separate operations so callers never hold the pool lock across network
// I/O: select, attempt the call, then report the outcome.
type Pool struct {
	mu       sync.RWMutex
	provider string
	logger   *slog.Logger

	credentials []Credential
	health      map[string]HealthStatus
	cooldowns   map[string]CooldownInfo

	balancer *LoadBalancer
	quota    *QuotaManager
}

// NewPool builds a pool with the given balance strategy.
func NewPool(provider string, strategy BalanceStrategy, logger *slog.Logger) (*Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	balancer, err := NewLoadBalancer(strategy)
	if err != nil {
		return nil, err
	}
	return &Pool{
		provider:  provider,
		logger:    logger,
		health:    make(map[string]HealthStatus),
		cooldowns: make(map[string]CooldownInfo),
		balancer:  balancer,
		quota:     NewQuotaManager(logger),
	}, nil
}

// Provider returns the provider this pool serves.
func (p *Pool) Provider() string {
	return p.provider
}

// Quota exposes the quota manager, e.g. for the background cleanup task.
func (p *Pool) Quota() *QuotaManager {
	return p.quota
}

// Add registers a credential.
func (p *Pool) Add(cred Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.credentials = append(p.credentials, cred)
}

// Remove drops a credential by id.
func (p *Pool) Remove(uuid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.credentials[:0]
	removed := false
	for _, c := range p.credentials {
		if c.UUID == uuid {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	p.credentials = kept
	if removed {
		delete(p.health, uuid)
		delete(p.cooldowns, uuid)
		p.balancer.Forget(uuid)
		p.quota.Clear(uuid)
	}
	return removed
}

// SetDisabled flips a credential's disabled flag.
func (p *Pool) SetDisabled(uuid string, disabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.credentials {
		if p.credentials[i].UUID == uuid {
			p.credentials[i].Disabled = disabled
			return nil
		}
	}
	return ErrNotFound
}

// Credentials returns a snapshot of all credentials.
func (p *Pool) Credentials() []Credential {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Credential(nil), p.credentials...)
}

// Select picks one eligible credential. Credentials in exclude (already
// failed this request), disabled, unhealthy, or cooling off are skipped.
func (p *Pool) Select(exclude map[string]bool) (*Selection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var eligible []Credential
	status := PoolStatus{Provider: p.provider, Total: len(p.credentials)}

	for _, c := range p.credentials {
		switch {
		case c.Disabled:
			status.Disabled++
		case exclude[c.UUID]:
			// Failed earlier in this request.
		case p.unhealthyLocked(c.UUID):
			status.Unhealthy++
		case p.coolingOffLocked(c.UUID, now):
			status.CoolingOff++
		case p.quota.IsExceeded(c.UUID):
			status.CoolingOff++
		default:
			eligible = append(eligible, c)
		}
	}

	if len(eligible) == 0 {
		return nil, &AllExhaustedError{
			Provider:   p.provider,
			Total:      status.Total,
			Disabled:   status.Disabled,
			Unhealthy:  status.Unhealthy,
			CoolingOff: status.CoolingOff,
		}
	}

	chosen := p.balancer.Pick(eligible)
	return &Selection{Credential: chosen, Eligible: len(eligible)}, nil
}

// ReportSuccess clears failure state after a successful call.
func (p *Pool) ReportSuccess(uuid string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.cooldowns, uuid)
	p.quota.Clear(uuid)
	p.health[uuid] = HealthStatus{Healthy: true, CheckedAt: time.Now()}
}

// ReportFailure records an upstream failure and applies the matching
// penalty: quota failures start a cooldown, availability failures mark the
// credential unhealthy, auth failures disable it outright.
func (p *Pool) ReportFailure(uuid string, failure resilience.FailureType, retryAfter time.Duration) {
	switch failure {
	case resilience.FailureQuotaExceeded:
		p.quota.MarkExceeded(uuid, failure.String(), retryAfter)

	case resilience.FailureAuthentication:
		p.mu.Lock()
		for i := range p.credentials {
			if p.credentials[i].UUID == uuid {
				p.credentials[i].Disabled = true
				break
			}
		}
		p.mu.Unlock()
		p.logger.Warn("Disabled credential after authentication failure", "credential", uuid)

	case resilience.FailureServiceUnavailable, resilience.FailureNetwork:
		p.mu.Lock()
		p.health[uuid] = HealthStatus{
			Healthy:   false,
			CheckedAt: time.Now(),
			Error:     failure.String(),
		}
		p.mu.Unlock()
	}
}

// RecordHealth stores a probe result.
func (p *Pool) RecordHealth(uuid string, result HealthCheckResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.health[uuid] = HealthStatus{
		Healthy:   result.Healthy,
		CheckedAt: result.CheckedAt,
		Error:     result.Error,
	}
}

// StartCooldown excludes a credential until the deadline.
func (p *Pool) StartCooldown(uuid, reason string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cooldowns[uuid] = CooldownInfo{Until: time.Now().Add(duration), Reason: reason}
}

// Status summarizes the pool for diagnostics.
func (p *Pool) Status() PoolStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := time.Now()
	status := PoolStatus{Provider: p.provider, Total: len(p.credentials)}
	for _, c := range p.credentials {
		switch {
		case c.Disabled:
			status.Disabled++
		case p.unhealthyLocked(c.UUID):
			status.Unhealthy++
		case p.coolingOffLocked(c.UUID, now) || p.quota.IsExceeded(c.UUID):
			status.CoolingOff++
		default:
			status.Eligible++
		}
	}
	return status
}

func (p *Pool) unhealthyLocked(uuid string) bool {
	h, ok := p.health[uuid]
	return ok && !h.Healthy
}

func (p *Pool) coolingOffLocked(uuid string, now time.Time) bool {
	cd, ok := p.cooldowns[uuid]
	if !ok {
		return false
	}
	if now.After(cd.Until) {
		delete(p.cooldowns, uuid)
		return false
	}
	return true
}

// Registry maps provider names to their pools.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]*Pool
}

func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]*Pool)}
}

// Register adds a pool; the last registration for a provider wins.
func (r *Registry) Register(pool *Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools[pool.Provider()] = pool
}

// Get returns the pool for a provider.
func (r *Registry) Get(provider string) (*Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.pools[provider]
	return pool, ok
}

// Pools returns all registered pools.
func (r *Registry) Pools() []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Pool, 0, len(r.pools))
	for _, pool := range r.pools {
		out = append(out, pool)
	}
	return out
}
