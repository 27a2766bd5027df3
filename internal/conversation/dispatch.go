package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jconeo117/receptionist-agent/internal/booking"
)

// Tool names exposed to the model.
const (
	ToolGetBookingInfo  = "get_booking_info"
	ToolCancelBooking   = "cancel_booking"
	ToolBookAppointment = "book_appointment"
	ToolFindSlots       = "find_slots"
	ToolFirstAvailable  = "first_available"
	ToolSearchProviders = "search_providers"
	ToolOccupancy       = "occupancy"
	ToolClientBookings  = "list_client_bookings"
)

const defaultSearchDays = 14

// Dispatch runs the tool called name with the model-supplied args and returns
// a JSON-friendly result. Errors are reported inside the result under
// "error" so the model can relay them; access denials carry only
// AccessDeniedMessage.
func (t *BookingTools) Dispatch(ctx context.Context, name string, args map[string]any) map[string]any {
	result, err := t.dispatch(ctx, name, args)
	if err != nil {
		if errors.Is(err, ErrAccessDenied) {
			return map[string]any{"error": AccessDeniedMessage}
		}
		return map[string]any{"error": err.Error()}
	}
	return result
}

func (t *BookingTools) dispatch(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	switch name {
	case ToolGetBookingInfo:
		rec, err := t.GetBookingInfo(ctx, argString(args, "confirmation_code"), argString(args, "client_id"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"booking": bookingView(rec)}, nil
	case ToolCancelBooking:
		rec, err := t.CancelBooking(ctx, argString(args, "confirmation_code"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"booking": bookingView(rec)}, nil
	case ToolBookAppointment:
		rec, err := t.BookAppointment(ctx, BookRequest{
			ProviderQuery: argString(args, "provider"),
			ClientName:    argString(args, "client_name"),
			ClientID:      argString(args, "client_id"),
			Date:          argString(args, "date"),
			Time:          argString(args, "time"),
			Phone:         argString(args, "phone"),
			Email:         argString(args, "email"),
			Reason:        argString(args, "reason"),
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"booking": bookingView(rec)}, nil
	case ToolClientBookings:
		recs, err := t.ListClientBookings(ctx, argString(args, "client_id"))
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(recs))
		for _, rec := range recs {
			out = append(out, bookingView(rec))
		}
		return map[string]any{"bookings": out}, nil
	case ToolFindSlots:
		provider, slots, err := t.FindSlots(ctx, argString(args, "provider"), argString(args, "date"))
		if err != nil {
			return nil, err
		}
		free := make([]string, 0, len(slots))
		for _, s := range slots {
			if s.Available {
				free = append(free, s.Time.String())
			}
		}
		return map[string]any{"provider": provider.Name, "date": argString(args, "date"), "available": free}, nil
	case ToolFirstAvailable:
		days := argInt(args, "days", defaultSearchDays)
		slot, ok, err := t.FirstAvailable(ctx, argString(args, "provider"), days)
		if err != nil {
			return nil, err
		}
		if !ok {
			return map[string]any{"found": false}, nil
		}
		return map[string]any{"found": true, "date": booking.FormatDate(slot.Date), "time": slot.Time.String()}, nil
	case ToolSearchProviders:
		providers, err := t.SearchProviders(ctx, argString(args, "query"))
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(providers))
		for _, p := range providers {
			out = append(out, map[string]any{"id": p.ID, "name": p.Name, "role": p.Role})
		}
		return map[string]any{"providers": out}, nil
	case ToolOccupancy:
		lines, err := t.Occupancy(ctx, argString(args, "date"))
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(lines))
		for _, l := range lines {
			out = append(out, map[string]any{"provider": l.ProviderName, "time": l.Time.String(), "status": string(l.Status)})
		}
		return map[string]any{"bookings": out}, nil
	default:
		return nil, fmt.Errorf("conversation: unknown tool %q", name)
	}
}

func bookingView(rec *booking.Record) map[string]any {
	return map[string]any{
		"confirmation_code": rec.ConfirmationCode,
		"client_name":       rec.ClientName,
		"provider":          rec.ProviderName,
		"date":              booking.FormatDate(rec.Date),
		"time":              rec.Time.String(),
		"status":            string(rec.Status),
	}
}

func argString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func argInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
