package booking

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jconeo117/receptionist-agent/internal/tenancy"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

// ErrNoDatabase is returned when a tenant asks for the relational adapter but
// no database pool was configured.
var ErrNoDatabase = errors.New("booking: postgres adapter requested without a database pool")

// AdapterFactory builds and caches one DataAdapter per tenant. The variant is
// decided once, on first use, from the tenant's DBType.
type AdapterFactory struct {
	db     rowQuerier
	logger *logging.Logger

	mu       sync.Mutex
	adapters map[string]DataAdapter
}

// NewAdapterFactory creates a factory. pool may be nil when every tenant uses
// the memory adapter.
func NewAdapterFactory(pool *pgxpool.Pool, logger *logging.Logger) *AdapterFactory {
	var db rowQuerier
	if pool != nil {
		db = pool
	}
	return newAdapterFactoryWithQuerier(db, logger)
}

func newAdapterFactoryWithQuerier(db rowQuerier, logger *logging.Logger) *AdapterFactory {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdapterFactory{db: db, logger: logger, adapters: make(map[string]DataAdapter)}
}

// ForTenant returns the cached adapter of the tenant, creating it on first use.
func (f *AdapterFactory) ForTenant(cfg *tenancy.Configuration) (DataAdapter, error) {
	if cfg == nil || strings.TrimSpace(cfg.TenantID) == "" {
		return nil, tenancy.ErrTenantNotFound
	}
	key := strings.ToLower(strings.TrimSpace(cfg.TenantID))

	f.mu.Lock()
	defer f.mu.Unlock()
	if adapter, ok := f.adapters[key]; ok {
		return adapter, nil
	}

	providers, err := ProjectProviders(cfg)
	if err != nil {
		f.logger.Warn("skipping invalid providers", "tenant_id", cfg.TenantID, "error", err)
	}

	var adapter DataAdapter
	switch cfg.AdapterKind() {
	case tenancy.DBTypePostgres:
		if f.db == nil {
			return nil, fmt.Errorf("booking: tenant %s: %w", cfg.TenantID, ErrNoDatabase)
		}
		adapter = newPostgresAdapterWithQuerier(f.db, cfg.TenantID, providers)
	default:
		adapter = NewMemoryAdapter(cfg.TenantID, providers)
	}
	f.adapters[key] = adapter
	f.logger.Info("booking adapter ready", "tenant_id", cfg.TenantID, "kind", cfg.AdapterKind(), "providers", len(providers))
	return adapter, nil
}
