// Package tenancy resolves tenant identifiers to their immutable configuration.
package tenancy

import (
	"fmt"
	"strings"

	"github.com/jconeo117/receptionist-agent/internal/apperr"
)

// ErrTenantNotFound is returned when a tenant id does not resolve.
var ErrTenantNotFound = fmt.Errorf("tenancy: tenant %w", apperr.ErrNotFound)

// Data adapter variants selectable per tenant.
const (
	DBTypeMemory   = "memory"
	DBTypePostgres = "postgres"
)

// ProviderConfig describes one bookable provider as loaded from tenant data.
type ProviderConfig struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Role                string   `json:"role"`
	WorkingDays         []string `json:"working_days"` // "Monday", "Tuesday", ...
	StartTime           string   `json:"start_time"`   // "09:00"
	EndTime             string   `json:"end_time"`     // "18:00"
	SlotDurationMinutes int      `json:"slot_duration_minutes"`
}

// Configuration is the full configuration of one tenant. It is treated as
// read-only once handed out by a Registry.
type Configuration struct {
	TenantID          string            `json:"tenant_id"`
	BusinessName      string            `json:"business_name"`
	BusinessType      string            `json:"business_type,omitempty"` // "clinic", "salon", "workshop"
	Address           string            `json:"address,omitempty"`
	Phone             string            `json:"phone,omitempty"`
	WorkingHours      string            `json:"working_hours,omitempty"`
	TimezoneID        string            `json:"timezone_id,omitempty"`
	Services          []string          `json:"services,omitempty"`
	AcceptedInsurance []string          `json:"accepted_insurance,omitempty"`
	Pricing           map[string]string `json:"pricing,omitempty"`
	Providers         []ProviderConfig  `json:"providers"`
	// DBType selects the booking data adapter: "memory" (default) or "postgres".
	DBType string `json:"db_type,omitempty"`
}

// AdapterKind returns the normalized data adapter variant for the tenant.
func (c *Configuration) AdapterKind() string {
	if c == nil {
		return DBTypeMemory
	}
	switch strings.ToLower(strings.TrimSpace(c.DBType)) {
	case DBTypePostgres, "postgresql", "sql":
		return DBTypePostgres
	default:
		return DBTypeMemory
	}
}

// clone returns a deep copy so stored configurations cannot be mutated by callers.
func (c *Configuration) clone() *Configuration {
	if c == nil {
		return nil
	}
	out := *c
	out.Services = append([]string(nil), c.Services...)
	out.AcceptedInsurance = append([]string(nil), c.AcceptedInsurance...)
	if c.Pricing != nil {
		out.Pricing = make(map[string]string, len(c.Pricing))
		for k, v := range c.Pricing {
			out.Pricing[k] = v
		}
	}
	out.Providers = make([]ProviderConfig, len(c.Providers))
	for i, p := range c.Providers {
		p.WorkingDays = append([]string(nil), p.WorkingDays...)
		out.Providers[i] = p
	}
	return &out
}

func normalizeTenantKey(tenantID string) string {
	return strings.ToLower(strings.TrimSpace(tenantID))
}
