package adapters

import (
	"sort"
	"strings"

	"github.com/smallbiznis/boxoffice/internal/payment/domain"
)

// Registry maps provider names to adapter factories.
type Registry struct {
	factories map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	r := &Registry{factories: make(map[string]domain.AdapterFactory, len(factories))}
	for _, f := range factories {
		if f == nil {
			continue
		}
		if name := normalize(f.Provider()); name != "" {
			r.factories[name] = f
		}
	}
	return r
}

// Build creates the adapter for provider from cfg.
func (r *Registry) Build(provider string, cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	f, ok := r.factories[normalize(provider)]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return f.NewAdapter(cfg)
}

// Providers lists registered provider names in sorted order.
func (r *Registry) Providers() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
