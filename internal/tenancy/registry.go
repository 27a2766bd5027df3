package tenancy

import (
	"context"
	"sort"
	"sync"
)

// Registry resolves tenant ids to their configuration.
type Registry interface {
	Resolve(ctx context.Context, tenantID string) (*Configuration, error)
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// MemoryRegistry is a Registry over configurations injected at construction.
type MemoryRegistry struct {
	mu      sync.RWMutex
	tenants map[string]*Configuration
}

// NewMemoryRegistry indexes the given configurations by case-folded tenant id.
// Later entries with the same id replace earlier ones.
func NewMemoryRegistry(configs ...*Configuration) *MemoryRegistry {
	r := &MemoryRegistry{tenants: make(map[string]*Configuration, len(configs))}
	for _, cfg := range configs {
		if cfg == nil || normalizeTenantKey(cfg.TenantID) == "" {
			continue
		}
		r.tenants[normalizeTenantKey(cfg.TenantID)] = cfg.clone()
	}
	return r
}

// Resolve returns the tenant configuration or ErrTenantNotFound.
func (r *MemoryRegistry) Resolve(ctx context.Context, tenantID string) (*Configuration, error) {
	key := normalizeTenantKey(tenantID)
	if key == "" {
		return nil, ErrTenantNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.tenants[key]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return cfg.clone(), nil
}

// ListTenantIDs returns every tenant id as configured, sorted.
func (r *MemoryRegistry) ListTenantIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tenants))
	for _, cfg := range r.tenants {
		ids = append(ids, cfg.TenantID)
	}
	sort.Strings(ids)
	return ids, nil
}
