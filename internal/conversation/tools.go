package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jconeo117/receptionist-agent/internal/apperr"
	"github.com/jconeo117/receptionist-agent/internal/audit"
	"github.com/jconeo117/receptionist-agent/internal/booking"
	"github.com/jconeo117/receptionist-agent/internal/session"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

// AccessDeniedMessage is the only text returned when an ownership check
// fails. It never carries booking content.
const AccessDeniedMessage = "ACCESO DENEGADO: no se puede verificar la identidad. Proporcione su documento de identidad para verificar que esta cita le pertenece."

var (
	ErrAccessDenied      = fmt.Errorf("conversation: %s: %w", AccessDeniedMessage, apperr.ErrAccessDenied)
	ErrLookupKeyRequired = fmt.Errorf("conversation: confirmation code or client id required: %w", apperr.ErrInvalidArgument)
	ErrAmbiguousProvider = fmt.Errorf("conversation: provider query matches several providers: %w", apperr.ErrInvalidArgument)
)

// BookRequest is what the conversational loop gathers before booking.
type BookRequest struct {
	ProviderQuery string
	ClientName    string
	ClientID      string
	Date          string // YYYY-MM-DD
	Time          string // HH:MM
	Phone         string
	Email         string
	Reason        string
}

// BookingTools are the booking operations exposed to the conversational loop
// for one tenant and one session. Read and cancel are gated on ownership
// proven inside the session.
type BookingTools struct {
	svc       *booking.Service
	state     *session.State
	trail     audit.Trail
	tenantID  string
	sessionID string
	logger    *logging.Logger
	now       func() time.Time
}

func NewBookingTools(svc *booking.Service, state *session.State, trail audit.Trail, sessionID string, logger *logging.Logger) *BookingTools {
	if svc == nil || state == nil {
		panic("conversation: booking service and session state required")
	}
	if trail == nil {
		trail = audit.NewMemoryTrail()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingTools{
		svc:       svc,
		state:     state,
		trail:     trail,
		tenantID:  svc.TenantID(),
		sessionID: sessionID,
		logger:    logger.ForTenant(svc.TenantID(), sessionID),
		now:       time.Now,
	}
}

// owns reports whether the session has proven ownership of rec.
func (t *BookingTools) owns(rec *booking.Record) bool {
	if t.state.IsCodeValidated(rec.ConfirmationCode) {
		return true
	}
	clientID := rec.ClientID()
	return clientID != "" && t.state.IsClientValidated(clientID)
}

// proveOwnership marks the client id and the booking code as validated.
func (t *BookingTools) proveOwnership(clientID, code string) {
	if err := t.state.ValidateClient(clientID); err != nil {
		t.logger.Warn("client id not validated", "error", err)
	}
	if err := t.state.ValidateCode(code); err != nil {
		t.logger.Warn("confirmation code not validated", "error", err)
	}
}

// GetBookingInfo looks a booking up by confirmation code or, when no code is
// given, by client id. A code lookup is allowed when the code or the
// booking's client id was already validated, or when clientID matches the
// stored one (which validates both). A client id lookup validates both.
func (t *BookingTools) GetBookingInfo(ctx context.Context, code, clientID string) (*booking.Record, error) {
	code, clientID = strings.TrimSpace(code), strings.TrimSpace(clientID)
	rec, err := t.getBookingInfo(ctx, code, clientID)
	t.recordTool(ctx, "get_booking_info", err)
	return rec, err
}

func (t *BookingTools) getBookingInfo(ctx context.Context, code, clientID string) (*booking.Record, error) {
	switch {
	case code != "":
		rec, err := t.svc.GetBooking(ctx, code)
		if err != nil {
			return nil, err
		}
		if t.owns(rec) {
			return rec, nil
		}
		if clientID != "" && rec.ClientID() != "" && strings.EqualFold(clientID, rec.ClientID()) {
			t.proveOwnership(clientID, rec.ConfirmationCode)
			return rec, nil
		}
		t.deny(ctx, "get_booking_info", rec)
		return nil, ErrAccessDenied
	case clientID != "":
		rec, err := t.svc.GetBookingByClientID(ctx, clientID)
		if err != nil {
			return nil, err
		}
		t.proveOwnership(clientID, rec.ConfirmationCode)
		return rec, nil
	default:
		return nil, ErrLookupKeyRequired
	}
}

// CancelBooking cancels the booking behind code when the session already
// owns it. Supplying a client id here does not prove ownership.
func (t *BookingTools) CancelBooking(ctx context.Context, code string) (*booking.Record, error) {
	rec, err := t.cancelBooking(ctx, strings.TrimSpace(code))
	t.recordTool(ctx, "cancel_booking", err)
	if err == nil {
		t.append(ctx, audit.EventBookingCancelled, rec.ConfirmationCode, map[string]string{
			"booking_id":  rec.ID,
			"provider_id": rec.ProviderID,
		})
	}
	return rec, err
}

func (t *BookingTools) cancelBooking(ctx context.Context, code string) (*booking.Record, error) {
	if code == "" {
		return nil, ErrLookupKeyRequired
	}
	rec, err := t.svc.GetBooking(ctx, code)
	if err != nil {
		return nil, err
	}
	if !t.owns(rec) {
		t.deny(ctx, "cancel_booking", rec)
		return nil, ErrAccessDenied
	}
	return t.svc.CancelBooking(ctx, code)
}

// ListClientBookings returns every booking of clientID, cancelled ones
// included. The client id must already be validated in this session.
func (t *BookingTools) ListClientBookings(ctx context.Context, clientID string) ([]*booking.Record, error) {
	recs, err := t.listClientBookings(ctx, strings.TrimSpace(clientID))
	t.recordTool(ctx, "list_client_bookings", err)
	return recs, err
}

func (t *BookingTools) listClientBookings(ctx context.Context, clientID string) ([]*booking.Record, error) {
	if clientID == "" {
		return nil, ErrLookupKeyRequired
	}
	if !t.state.IsClientValidated(clientID) {
		t.deny(ctx, "list_client_bookings", nil)
		return nil, ErrAccessDenied
	}
	return t.svc.GetBookingsByClientID(ctx, clientID)
}

// BookAppointment creates a booking and validates its client id and code
// for the rest of the session.
func (t *BookingTools) BookAppointment(ctx context.Context, req BookRequest) (*booking.Record, error) {
	rec, err := t.bookAppointment(ctx, req)
	t.recordTool(ctx, "book_appointment", err)
	if err == nil {
		t.append(ctx, audit.EventBookingCreated, rec.ConfirmationCode, map[string]string{
			"booking_id":  rec.ID,
			"provider_id": rec.ProviderID,
			"date":        booking.FormatDate(rec.Date),
			"time":        rec.Time.String(),
		})
	}
	return rec, err
}

func (t *BookingTools) bookAppointment(ctx context.Context, req BookRequest) (*booking.Record, error) {
	date, err := booking.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	at, err := booking.ParseTime(req.Time)
	if err != nil {
		return nil, err
	}
	provider, err := t.resolveProvider(ctx, req.ProviderQuery)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	for k, v := range map[string]string{
		booking.FieldClientID: req.ClientID,
		booking.FieldPhone:    req.Phone,
		booking.FieldEmail:    req.Email,
		booking.FieldReason:   req.Reason,
	} {
		if v = strings.TrimSpace(v); v != "" {
			fields[k] = v
		}
	}

	rec, err := t.svc.CreateBooking(ctx, booking.CreateRequest{
		ProviderID:   provider.ID,
		ClientName:   req.ClientName,
		Date:         date,
		Time:         at,
		CustomFields: fields,
	})
	if err != nil {
		return nil, err
	}
	if clientID := rec.ClientID(); clientID != "" {
		t.proveOwnership(clientID, rec.ConfirmationCode)
	} else if err := t.state.ValidateCode(rec.ConfirmationCode); err != nil {
		t.logger.Warn("confirmation code not validated", "error", err)
	}
	return rec, nil
}

// FindSlots lists the slots of the provider matching providerQuery on date.
func (t *BookingTools) FindSlots(ctx context.Context, providerQuery, date string) (booking.ServiceProvider, []booking.TimeSlot, error) {
	provider, slots, err := t.findSlots(ctx, providerQuery, date)
	t.recordTool(ctx, "find_slots", err)
	return provider, slots, err
}

func (t *BookingTools) findSlots(ctx context.Context, providerQuery, date string) (booking.ServiceProvider, []booking.TimeSlot, error) {
	day, err := booking.ParseDate(date)
	if err != nil {
		return booking.ServiceProvider{}, nil, err
	}
	provider, err := t.resolveProvider(ctx, providerQuery)
	if err != nil {
		return booking.ServiceProvider{}, nil, err
	}
	slots, err := t.svc.ListAvailableSlots(ctx, provider.ID, day)
	return provider, slots, err
}

// FirstAvailable finds the earliest free slot of the provider within days.
func (t *BookingTools) FirstAvailable(ctx context.Context, providerQuery string, days int) (booking.TimeSlot, bool, error) {
	provider, err := t.resolveProvider(ctx, providerQuery)
	if err != nil {
		t.recordTool(ctx, "first_available", err)
		return booking.TimeSlot{}, false, err
	}
	slot, ok, err := t.svc.FirstAvailable(ctx, provider.ID, t.now(), days)
	t.recordTool(ctx, "first_available", err)
	return slot, ok, err
}

// SearchProviders lists providers whose name or role matches query.
func (t *BookingTools) SearchProviders(ctx context.Context, query string) ([]booking.ServiceProvider, error) {
	providers, err := t.svc.SearchProviders(ctx, query)
	t.recordTool(ctx, "search_providers", err)
	return providers, err
}

// Occupancy lists the day's active bookings without client data.
func (t *BookingTools) Occupancy(ctx context.Context, date string) ([]booking.OccupancyLine, error) {
	day, err := booking.ParseDate(date)
	if err != nil {
		t.recordTool(ctx, "occupancy", err)
		return nil, err
	}
	lines, err := t.svc.Occupancy(ctx, day)
	t.recordTool(ctx, "occupancy", err)
	return lines, err
}

// resolveProvider accepts a provider id or a search query that must match
// exactly one provider.
func (t *BookingTools) resolveProvider(ctx context.Context, query string) (booking.ServiceProvider, error) {
	if p, err := t.svc.Provider(ctx, query); err == nil {
		return p, nil
	}
	matches, err := t.svc.SearchProviders(ctx, query)
	if err != nil {
		return booking.ServiceProvider{}, err
	}
	switch len(matches) {
	case 0:
		return booking.ServiceProvider{}, booking.ErrProviderNotFound
	case 1:
		return matches[0], nil
	default:
		return booking.ServiceProvider{}, ErrAmbiguousProvider
	}
}

func (t *BookingTools) deny(ctx context.Context, tool string, rec *booking.Record) {
	t.logger.Warn("booking access denied", "tool", tool)
	md := map[string]string{}
	if rec != nil {
		md["booking_id"] = rec.ID
	}
	t.append(ctx, audit.EventAccessDenied, tool, md)
}

func (t *BookingTools) recordTool(ctx context.Context, tool string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = err.Error()
	}
	t.append(ctx, audit.EventToolCall, tool, map[string]string{"tool": tool, "outcome": outcome})
}

func (t *BookingTools) append(ctx context.Context, eventType audit.EventType, content string, metadata map[string]string) {
	if _, err := t.trail.Append(ctx, audit.Entry{
		TenantID:  t.tenantID,
		SessionID: t.sessionID,
		EventType: eventType,
		Content:   content,
		Metadata:  metadata,
	}); err != nil {
		t.logger.Error("failed to append audit entry", "event_type", eventType, "error", err)
	}
}
