package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jconeo117/receptionist-agent/internal/audit"
	httpmiddleware "github.com/jconeo117/receptionist-agent/internal/http/middleware"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

const defaultSecurityWindow = 24 * time.Hour

// AuditHandler exposes the audit trail to admins. Tenant-scoped tokens only
// see their own tenant.
type AuditHandler struct {
	trail    audit.Trail
	archiver *audit.Archiver
	logger   *logging.Logger
	now      func() time.Time
}

func NewAuditHandler(trail audit.Trail, archiver *audit.Archiver, logger *logging.Logger) *AuditHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditHandler{trail: trail, archiver: archiver, logger: logger, now: time.Now}
}

// SessionEntries handles GET /admin/audit/sessions/{sessionID}.
func (h *AuditHandler) SessionEntries(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpmiddleware.AdminClaimsFromContext(r.Context())
	entries, err := h.trail.QuerySession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	visible := entries[:0]
	for _, e := range entries {
		if claims.CanAccess(e.TenantID) {
			visible = append(visible, e)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": visible})
}

// Security handles GET /admin/audit/security?tenant=&from=&to=. The window
// defaults to the last 24 hours.
func (h *AuditHandler) Security(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.scopedTenant(w, r)
	if !ok {
		return
	}
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	entries, err := h.trail.QuerySecurity(r.Context(), tenantID, from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// Recent handles GET /admin/audit/recent?tenant=&limit=.
func (h *AuditHandler) Recent(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.scopedTenant(w, r)
	if !ok {
		return
	}
	limit := audit.DefaultRecentLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	entries, err := h.trail.QueryRecent(r.Context(), tenantID, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type archiveRequest struct {
	TenantID string    `json:"tenant_id"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
}

// Archive handles POST /admin/audit/archive, exporting security events to S3.
func (h *AuditHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if !h.archiver.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "audit archive not configured"})
		return
	}
	var req archiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	claims, _ := httpmiddleware.AdminClaimsFromContext(r.Context())
	if claims.TenantID != "" {
		if req.TenantID == "" {
			req.TenantID = claims.TenantID
		}
		if !claims.CanAccess(req.TenantID) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "tenant not allowed"})
			return
		}
	}
	if req.To.IsZero() {
		req.To = h.now()
	}
	if req.From.IsZero() {
		req.From = req.To.Add(-defaultSecurityWindow)
	}
	if req.To.Before(req.From) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to must not be before from"})
		return
	}

	result, err := h.archiver.Export(r.Context(), req.TenantID, req.From, req.To)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("audit archive exported", "tenant_id", req.TenantID, "key", result.Key, "entries", result.Entries)
	writeJSON(w, http.StatusCreated, result)
}

// scopedTenant returns the tenant filter of the request, forcing it to the
// token's tenant for scoped tokens.
func (h *AuditHandler) scopedTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := strings.TrimSpace(r.URL.Query().Get("tenant"))
	claims, _ := httpmiddleware.AdminClaimsFromContext(r.Context())
	if claims.TenantID == "" {
		return tenantID, true
	}
	if tenantID == "" {
		return claims.TenantID, true
	}
	if !claims.CanAccess(tenantID) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "tenant not allowed"})
		return "", false
	}
	return tenantID, true
}

func (h *AuditHandler) window(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	to := h.now()
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to must be RFC3339"})
			return time.Time{}, time.Time{}, false
		}
		to = parsed
	}
	from := to.Add(-defaultSecurityWindow)
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from must be RFC3339"})
			return time.Time{}, time.Time{}, false
		}
		from = parsed
	}
	if to.Before(from) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to must not be before from"})
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
