package router

import "sync"

// ModelMapper resolves client-facing model aliases to backend-native model
// ids. Unmapped names resolve to themselves.
type ModelMapper struct {
	mu      sync.RWMutex
	aliases map[string]string
}

func NewModelMapper(aliases map[string]string) *ModelMapper {
	copied := make(map[string]string, len(aliases))
	for alias, target := range aliases {
		copied[alias] = target
	}
	return &ModelMapper{aliases: copied}
}

// Resolve returns the mapped model id, or the input unchanged when no
// mapping exists.
func (m *ModelMapper) Resolve(model string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if target, ok := m.aliases[model]; ok {
		return target
	}
	return model
}

// SetAlias adds or replaces one alias.
func (m *ModelMapper) SetAlias(alias, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliases[alias] = target
}

// RemoveAlias drops an alias; subsequent resolves return the name itself.
func (m *ModelMapper) RemoveAlias(alias string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.aliases, alias)
}
