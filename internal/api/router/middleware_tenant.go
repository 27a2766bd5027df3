package router

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jconeo117/receptionist-agent/internal/tenancy"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

// requireTenant resolves the {tenantID} route param against the registry and
// stores the canonical tenant id in the request context. Unknown tenants get 404.
func requireTenant(registry tenancy.Registry, logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cfg, err := registry.Resolve(r.Context(), chi.URLParam(r, "tenantID"))
			if errors.Is(err, tenancy.ErrTenantNotFound) {
				http.Error(w, "unknown tenant", http.StatusNotFound)
				return
			}
			if err != nil {
				logger.Error("tenant resolution failed", "error", err)
				http.Error(w, "tenant lookup failed", http.StatusInternalServerError)
				return
			}
			ctx := tenancy.WithTenantID(r.Context(), cfg.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
