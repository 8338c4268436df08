package backend

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Provider registry
// ---------------------------------------------------------------------------

var (
	registryMu sync.RWMutex
	providers  = make(map[string]Provider)
)

// Register adds a provider under its own name.
// Returns the provider previously registered under that name, or nil.
func Register(p Provider) Provider {
	registryMu.Lock()
	defer registryMu.Unlock()

	old := providers[p.Name()]
	providers[p.Name()] = p
	return old
}

// Unregister removes a provider by name. Mainly useful in tests that swap
// in a stand-in external backend.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(providers, name)
}

// Locate tries each candidate name in preference order and returns the first
// registered provider. If none of the candidates resolve the returned error
// names every candidate tried and every provider actually registered.
func Locate(names ...string) (Provider, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range names {
		if p, ok := providers[name]; ok {
			return p, nil
		}
	}

	have := make([]string, 0, len(providers))
	for name := range providers {
		have = append(have, name)
	}
	sort.Strings(have)
	return nil, fmt.Errorf("backend: no registered backend among candidates [%s] (registered: [%s])",
		strings.Join(names, ", "), strings.Join(have, ", "))
}

// Names returns the names of all registered providers, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
