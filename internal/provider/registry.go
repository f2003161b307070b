// Package provider implements the payment-processor abstraction and its
// shipped deterministic simulators (stripe, vnpay), grounded on the
// webhook-signature idiom of CedrosPay-server's internal/stripe client
// without importing a live API client, since every provider here is a
// simulator rather than a network call.
package provider

import (
	"strings"

	"payment-orchestrator/internal/core/ports"
)

// Registry resolves a ports.Provider by name, case-insensitively. It
// implements ports.ProviderRegistry.
type Registry struct {
	byName map[string]ports.Provider
}

// NewRegistry builds an empty registry; call Register for each provider.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]ports.Provider)}
}

// Register adds a provider under its own Name(), lower-cased for lookup.
func (r *Registry) Register(p ports.Provider) {
	r.byName[strings.ToLower(p.Name())] = p
}

// Get resolves a provider by name, case-insensitively.
func (r *Registry) Get(name string) (ports.Provider, bool) {
	p, ok := r.byName[strings.ToLower(name)]
	return p, ok
}

// Names returns the registered provider names in their own canonical case.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for _, p := range r.byName {
		names = append(names, p.Name())
	}
	return names
}
