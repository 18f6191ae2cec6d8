// Package injection applies configured default parameters to requests whose
// model matches a rule pattern.
package injection

import (
	"sort"
	"strings"
	"sync"

	"github.com/Davincible/ai-gateway-go/internal/router"
)

// Mode controls how injected parameters interact with caller-supplied ones.
type Mode string

const (
	// ModeMerge only fills parameters the request does not already carry.
	ModeMerge Mode = "merge"
	// ModeOverride replaces the request's values unconditionally.
	ModeOverride Mode = "override"
)

// Rule injects Params into requests whose model matches Pattern. The
// pattern grammar is the router's: at most one wildcard.
type Rule struct {
	ID       string         `json:"id" yaml:"id" koanf:"id"`
	Pattern  string         `json:"pattern" yaml:"pattern" koanf:"pattern"`
	Params   map[string]any `json:"params" yaml:"params" koanf:"params"`
	Priority int            `json:"priority" yaml:"priority" koanf:"priority"`
	Enabled  bool           `json:"enabled" yaml:"enabled" koanf:"enabled"`
	Mode     Mode           `json:"mode" yaml:"mode" koanf:"mode"`
}

// Result reports what one Apply call did.
type Result struct {
	AppliedRules   []string
	InjectedParams []string
}

// Injector evaluates rules in order: exact patterns before wildcards, then
// ascending priority.
type Injector struct {
	mu    sync.RWMutex
	rules []Rule
}

func NewInjector(rules []Rule) *Injector {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sortRules(sorted)
	return &Injector{rules: sorted}
}

// AddRule inserts a rule and re-sorts.
func (i *Injector) AddRule(rule Rule) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.rules = append(i.rules, rule)
	sortRules(i.rules)
}

// RemoveRule drops the rule with the given id.
func (i *Injector) RemoveRule(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	kept := i.rules[:0]
	removed := false
	for _, rule := range i.rules {
		if rule.ID == id {
			removed = true
			continue
		}
		kept = append(kept, rule)
	}
	i.rules = kept
	return removed
}

// Rules returns a snapshot in evaluation order.
func (i *Injector) Rules() []Rule {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]Rule(nil), i.rules...)
}

// Apply mutates payload with the parameters of every enabled rule matching
// the model. Later rules never override parameters an earlier rule already
// injected; merge-mode rules additionally never override caller values.
func (i *Injector) Apply(model string, payload map[string]any) Result {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var result Result
	injected := make(map[string]bool)

	for _, rule := range i.rules {
		if !rule.Enabled || !router.MatchPattern(rule.Pattern, model) {
			continue
		}

		applied := false
		for key, value := range rule.Params {
			if injected[key] {
				continue
			}
			if _, exists := payload[key]; exists && rule.Mode != ModeOverride {
				continue
			}
			payload[key] = value
			injected[key] = true
			result.InjectedParams = append(result.InjectedParams, key)
			applied = true
		}
		if applied {
			result.AppliedRules = append(result.AppliedRules, rule.ID)
		}
	}

	sort.Strings(result.InjectedParams)
	return result
}

func sortRules(rules []Rule) {
	sort.SliceStable(rules, func(a, b int) bool {
		aExact := !strings.Contains(rules[a].Pattern, "*")
		bExact := !strings.Contains(rules[b].Pattern, "*")
		if aExact != bExact {
			return aExact
		}
		return rules[a].Priority < rules[b].Priority
	})
}
