// Package adapters registers webhook adapters by provider name.
package adapters

import (
	"strings"

	"github.com/connorodea/aidentalnotes/internal/webhook/domain"
)

// Registry resolves a provider name to its configured adapter.
type Registry struct {
	adapters map[string]domain.SubscriptionAdapter
}

// NewRegistry builds a registry from named adapters.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]domain.SubscriptionAdapter)}
}

// Register adds an adapter under the given provider name.
func (r *Registry) Register(provider string, adapter domain.SubscriptionAdapter) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || adapter == nil {
		return
	}
	r.adapters[provider] = adapter
}

// Adapter returns the adapter for provider, or nil when none is registered.
func (r *Registry) Adapter(provider string) domain.SubscriptionAdapter {
	if r == nil {
		return nil
	}
	return r.adapters[strings.ToLower(strings.TrimSpace(provider))]
}
