package booking

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Custom field keys the booking flow relies on.
const (
	FieldClientID = "clientId"
	FieldPhone    = "phone"
	FieldEmail    = "email"
	FieldReason   = "reason"
)

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hours and minutes.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalText renders the time as HH:MM.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTime(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Record is a single booking owned by a tenant's data adapter.
type Record struct {
	ID               string            `json:"id"`
	TenantID         string            `json:"tenant_id"`
	ConfirmationCode string            `json:"confirmation_code"`
	ClientName       string            `json:"client_name"`
	ProviderID       string            `json:"provider_id"`
	ProviderName     string            `json:"provider_name"`
	Date             time.Time         `json:"date"`
	Time             TimeOfDay         `json:"time"`
	Status           Status            `json:"status"`
	CustomFields     map[string]string `json:"custom_fields,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        *time.Time        `json:"updated_at,omitempty"`
}

// ClientID returns the client identifier stored in the custom fields.
func (r *Record) ClientID() string {
	if r == nil {
		return ""
	}
	return r.CustomFields[FieldClientID]
}

// Active reports whether the booking still occupies its slot.
func (r *Record) Active() bool {
	return r != nil && r.Status != StatusCancelled
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.CustomFields != nil {
		out.CustomFields = make(map[string]string, len(r.CustomFields))
		for k, v := range r.CustomFields {
			out.CustomFields[k] = v
		}
	}
	if r.UpdatedAt != nil {
		ts := *r.UpdatedAt
		out.UpdatedAt = &ts
	}
	return &out
}

// TimeSlot is a computed, never persisted, bookable unit.
type TimeSlot struct {
	Date      time.Time `json:"date"`
	Time      TimeOfDay `json:"time"`
	Available bool      `json:"available"`
	BookingID string    `json:"booking_id,omitempty"`
}

// OccupancyLine is the client-free view of a booking used for occupancy listings.
type OccupancyLine struct {
	ProviderName string    `json:"provider_name"`
	Time         TimeOfDay `json:"time"`
	Status       Status    `json:"status"`
}

// civilDate truncates t to its calendar date in UTC.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func slotKey(providerID string, date time.Time, at TimeOfDay) string {
	return strings.ToLower(providerID) + "|" + civilDate(date).Format(dateLayout) + "|" + at.String()
}
