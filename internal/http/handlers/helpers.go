// Package handlers implements the HTTP endpoints of the receptionist API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jconeo117/receptionist-agent/internal/apperr"
	"github.com/jconeo117/receptionist-agent/internal/tenancy"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError answers with the status mapped from err. Internal errors are
// logged and answered with a generic message.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.Join(apperr.ErrInvalidArgument, err)
	}
	return nil
}

// tenantFromRequest prefers the canonical tenant id stored by the router's
// tenant middleware and falls back to the raw URL parameter.
func tenantFromRequest(r *http.Request) string {
	if id, ok := tenancy.TenantIDFromContext(r.Context()); ok {
		return id
	}
	return chi.URLParam(r, "tenantID")
}
