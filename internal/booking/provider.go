package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jconeo117/receptionist-agent/internal/tenancy"
)

// Defaults applied when a provider config omits or garbles its schedule.
const (
	DefaultStartTime    = TimeOfDay(9 * 60)
	DefaultEndTime      = TimeOfDay(18 * 60)
	DefaultSlotDuration = 30 * time.Minute
)

// ServiceProvider is the runtime projection of a provider config scoped to a tenant.
type ServiceProvider struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	Name         string         `json:"name"`
	Role         string         `json:"role"`
	WorkingDays  []time.Weekday `json:"working_days"`
	StartTime    TimeOfDay      `json:"start_time"`
	EndTime      TimeOfDay      `json:"end_time"`
	SlotDuration time.Duration  `json:"slot_duration"`
}

// WorksOn reports whether the provider works on the weekday of date.
func (p ServiceProvider) WorksOn(date time.Time) bool {
	wd := date.Weekday()
	for _, d := range p.WorkingDays {
		if d == wd {
			return true
		}
	}
	return false
}

// Slots returns every slot start in [StartTime, EndTime).
func (p ServiceProvider) Slots() []TimeOfDay {
	step := int(p.SlotDuration / time.Minute)
	if step <= 0 {
		return nil
	}
	var out []TimeOfDay
	for t := p.StartTime; t < p.EndTime; t += TimeOfDay(step) {
		out = append(out, t)
	}
	return out
}

// OnGrid reports whether at is a slot start for this provider.
func (p ServiceProvider) OnGrid(at TimeOfDay) bool {
	step := int(p.SlotDuration / time.Minute)
	if step <= 0 || at < p.StartTime || at >= p.EndTime {
		return false
	}
	return int(at-p.StartTime)%step == 0
}

func (p ServiceProvider) validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("provider id required")
	}
	if p.StartTime >= p.EndTime {
		return fmt.Errorf("provider %s: start %s not before end %s", p.ID, p.StartTime, p.EndTime)
	}
	if p.SlotDuration <= 0 {
		return fmt.Errorf("provider %s: slot duration must be positive", p.ID)
	}
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "domingo": time.Sunday,
	"monday": time.Monday, "lunes": time.Monday,
	"tuesday": time.Tuesday, "martes": time.Tuesday,
	"wednesday": time.Wednesday, "miercoles": time.Wednesday, "miércoles": time.Wednesday,
	"thursday": time.Thursday, "jueves": time.Thursday,
	"friday": time.Friday, "viernes": time.Friday,
	"saturday": time.Saturday, "sabado": time.Saturday, "sábado": time.Saturday,
}

// NewServiceProvider projects a provider config, applying schedule defaults for
// missing or unparseable values and rejecting configs that break the invariants.
func NewServiceProvider(tenantID string, cfg tenancy.ProviderConfig) (ServiceProvider, error) {
	p := ServiceProvider{
		ID:           strings.TrimSpace(cfg.ID),
		TenantID:     tenantID,
		Name:         strings.TrimSpace(cfg.Name),
		Role:         strings.TrimSpace(cfg.Role),
		StartTime:    DefaultStartTime,
		EndTime:      DefaultEndTime,
		SlotDuration: DefaultSlotDuration,
	}
	if t, err := ParseTime(cfg.StartTime); err == nil {
		p.StartTime = t
	}
	if t, err := ParseTime(cfg.EndTime); err == nil {
		p.EndTime = t
	}
	if cfg.SlotDurationMinutes > 0 {
		p.SlotDuration = time.Duration(cfg.SlotDurationMinutes) * time.Minute
	}

	seen := make(map[time.Weekday]bool, len(cfg.WorkingDays))
	for _, name := range cfg.WorkingDays {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return ServiceProvider{}, fmt.Errorf("provider %s: unknown weekday %q", p.ID, name)
		}
		if !seen[wd] {
			seen[wd] = true
			p.WorkingDays = append(p.WorkingDays, wd)
		}
	}
	if err := p.validate(); err != nil {
		return ServiceProvider{}, err
	}
	return p, nil
}

// ProjectProviders projects every provider config of a tenant. Invalid entries
// are skipped and reported through the joined error.
func ProjectProviders(cfg *tenancy.Configuration) ([]ServiceProvider, error) {
	if cfg == nil {
		return nil, nil
	}
	var (
		out  []ServiceProvider
		errs []error
	)
	for _, pc := range cfg.Providers {
		p, err := NewServiceProvider(cfg.TenantID, pc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, p)
	}
	return out, errors.Join(errs...)
}
