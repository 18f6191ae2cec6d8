// Package router maps requested model names to target providers using
// ordered wildcard rules and per-provider exclusion lists.
package router

import (
	"sort"
	"strings"
	"sync"
)

// Rule routes models matching Pattern to TargetProvider. Lower Priority
// numbers win among rules of the same specificity; exact patterns always
// outrank wildcard patterns regardless of priority.
type Rule struct {
	Pattern        string `json:"pattern" yaml:"pattern" koanf:"pattern"`
	TargetProvider string `json:"target_provider" yaml:"target_provider" koanf:"target_provider"`
	Priority       int    `json:"priority" yaml:"priority" koanf:"priority"`
	Enabled        bool   `json:"enabled" yaml:"enabled" koanf:"enabled"`
}

// Decision is the outcome of routing one model name.
type Decision struct {
	Provider    string
	MatchedRule *Rule
	IsDefault   bool
}

// Router holds the rule set, the default provider, and per-provider
// exclusion patterns. All reads and mutations are serialized by a
// reader/writer lock; no lock is held across I/O.
type Router struct {
	mu              sync.RWMutex
	rules           []Rule
	defaultProvider string
	exclusions      map[string][]string
}

func New(defaultProvider string) *Router {
	return &Router{
		defaultProvider: defaultProvider,
		exclusions:      make(map[string][]string),
	}
}

// Route resolves a model name to a provider. Rules are scanned in sorted
// order; a match whose provider excludes the model is skipped and scanning
// continues. When nothing matches, the default provider is returned with
// IsDefault set.
func (r *Router) Route(model string) Decision {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.rules {
		rule := &r.rules[i]
		if !rule.Enabled || !MatchPattern(rule.Pattern, model) {
			continue
		}
		if r.isExcluded(rule.TargetProvider, model) {
			continue
		}
		matched := *rule
		return Decision{Provider: rule.TargetProvider, MatchedRule: &matched}
	}

	return Decision{Provider: r.defaultProvider, IsDefault: true}
}

// AddRule inserts a rule and re-sorts the rule set.
func (r *Router) AddRule(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule)
	sortRules(r.rules)
}

// RemoveRule drops every rule with the given pattern. It reports whether
// anything was removed.
func (r *Router) RemoveRule(pattern string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.rules[:0]
	removed := false
	for _, rule := range r.rules {
		if rule.Pattern == pattern {
			removed = true
			continue
		}
		kept = append(kept, rule)
	}
	r.rules = kept
	return removed
}

// SetRules replaces the whole rule set.
func (r *Router) SetRules(rules []Rule) {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sortRules(sorted)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = sorted
}

// Rules returns a snapshot of the rule set in evaluation order.
func (r *Router) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// AddExclusion prevents the provider from ever being chosen for models
// matching the pattern.
func (r *Router) AddExclusion(provider, pattern string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exclusions[provider] = append(r.exclusions[provider], pattern)
}

// SetExclusions replaces the exclusion table.
func (r *Router) SetExclusions(exclusions map[string][]string) {
	copied := make(map[string][]string, len(exclusions))
	for provider, patterns := range exclusions {
		copied[provider] = append([]string(nil), patterns...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.exclusions = copied
}

// DefaultProvider returns the fallback provider.
func (r *Router) DefaultProvider() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultProvider
}

func (r *Router) isExcluded(provider, model string) bool {
	for _, pattern := range r.exclusions[provider] {
		if MatchPattern(pattern, model) {
			return true
		}
	}
	return false
}

// sortRules orders exact patterns before wildcard patterns, then by
// ascending priority, then by pattern for a stable order.
func sortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		iExact := !strings.Contains(rules[i].Pattern, "*")
		jExact := !strings.Contains(rules[j].Pattern, "*")
		if iExact != jExact {
			return iExact
		}
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].Pattern < rules[j].Pattern
	})
}

// MatchPattern matches a model name against a pattern containing at most one
// wildcard: exact, "prefix*", "*suffix", "*middle*", or "prefix*suffix".
// Patterns with more than one interior wildcard are unsupported and never
// match.
func MatchPattern(pattern, model string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == model
	}

	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) >= 2 {
		middle := pattern[1 : len(pattern)-1]
		if strings.Contains(middle, "*") {
			return false
		}
		return strings.Contains(model, middle)
	}

	parts := strings.SplitN(pattern, "*", 2)
	if strings.Contains(parts[1], "*") {
		return false
	}
	return strings.HasPrefix(model, parts[0]) &&
		strings.HasSuffix(model, parts[1]) &&
		len(model) >= len(parts[0])+len(parts[1])
}
