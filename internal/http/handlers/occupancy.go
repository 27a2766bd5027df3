package handlers

import (
	"net/http"

	"github.com/jconeo117/receptionist-agent/internal/booking"
	"github.com/jconeo117/receptionist-agent/internal/observability/metrics"
	"github.com/jconeo117/receptionist-agent/internal/tenancy"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

// OccupancyHandler serves the day view of a tenant's agenda without client data.
type OccupancyHandler struct {
	registry tenancy.Registry
	adapters *booking.AdapterFactory
	metrics  *metrics.ReceptionistMetrics
	logger   *logging.Logger
}

func NewOccupancyHandler(registry tenancy.Registry, adapters *booking.AdapterFactory, m *metrics.ReceptionistMetrics, logger *logging.Logger) *OccupancyHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &OccupancyHandler{registry: registry, adapters: adapters, metrics: m, logger: logger}
}

// Occupancy handles GET /api/{tenantID}/bookings/occupancy?date=YYYY-MM-DD.
func (h *OccupancyHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	date, err := booking.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	cfg, err := h.registry.Resolve(r.Context(), tenantFromRequest(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	adapter, err := h.adapters.ForTenant(cfg)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	lines, err := booking.NewService(cfg.TenantID, adapter, h.metrics, h.logger).Occupancy(r.Context(), date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": cfg.TenantID,
		"date":      booking.FormatDate(date),
		"bookings":  lines,
	})
}
