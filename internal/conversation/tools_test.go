package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jconeo117/receptionist-agent/internal/apperr"
	"github.com/jconeo117/receptionist-agent/internal/audit"
	"github.com/jconeo117/receptionist-agent/internal/booking"
	"github.com/jconeo117/receptionist-agent/internal/session"
)

const testMonday = "2025-03-10"

func testProviders() []booking.ServiceProvider {
	return []booking.ServiceProvider{
		{
			ID:           "DR001",
			TenantID:     "clinic",
			Name:         "Dra. Gómez",
			Role:         "Oftalmología",
			WorkingDays:  []time.Weekday{time.Monday, time.Wednesday},
			StartTime:    booking.NewTimeOfDay(9, 0),
			EndTime:      booking.NewTimeOfDay(11, 0),
			SlotDuration: 30 * time.Minute,
		},
		{
			ID:           "DR002",
			TenantID:     "clinic",
			Name:         "Dr. Pérez",
			Role:         "Optometría",
			WorkingDays:  []time.Weekday{time.Monday},
			StartTime:    booking.NewTimeOfDay(14, 0),
			EndTime:      booking.NewTimeOfDay(15, 0),
			SlotDuration: 20 * time.Minute,
		},
	}
}

type toolsFixture struct {
	svc   *booking.Service
	trail *audit.MemoryTrail
}

func newToolsFixture() *toolsFixture {
	adapter := booking.NewMemoryAdapter("clinic", testProviders())
	return &toolsFixture{
		svc:   booking.NewService("clinic", adapter, nil, nil),
		trail: audit.NewMemoryTrail(),
	}
}

// session opens a fresh conversation with empty ownership state.
func (f *toolsFixture) session(id string) *BookingTools {
	tools := NewBookingTools(f.svc, session.NewState(), f.trail, id, nil)
	tools.now = func() time.Time { return time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC) }
	return tools
}

func (f *toolsFixture) book(t *testing.T, clientID string) *booking.Record {
	t.Helper()
	rec, err := f.session("booker").BookAppointment(context.Background(), BookRequest{
		ProviderQuery: "DR001",
		ClientName:    "Ana Ruiz",
		ClientID:      clientID,
		Date:          testMonday,
		Time:          "09:30",
		Phone:         "3001234567",
	})
	require.NoError(t, err)
	return rec
}

func eventsOf(t *testing.T, trail audit.Trail, sessionID string, eventType audit.EventType) []audit.Entry {
	t.Helper()
	entries, err := trail.QuerySession(context.Background(), sessionID)
	require.NoError(t, err)
	var out []audit.Entry
	for _, e := range entries {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestBookAppointmentValidatesOwnershipInSession(t *testing.T) {
	f := newToolsFixture()
	ctx := context.Background()
	tools := f.session("s1")

	rec, err := tools.BookAppointment(ctx, BookRequest{
		ProviderQuery: "gomez",
		ClientName:    "Ana Ruiz",
		ClientID:      "1020304050",
		Date:          testMonday,
		Time:          "10:00",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.ConfirmationCode, "CITA-"))
	assert.Equal(t, "DR001", rec.ProviderID)

	got, err := tools.GetBookingInfo(ctx, strings.ToLower(rec.ConfirmationCode), "")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = tools.CancelBooking(ctx, rec.ConfirmationCode)
	require.NoError(t, err)

	assert.Len(t, eventsOf(t, f.trail, "s1", audit.EventBookingCreated), 1)
	assert.Len(t, eventsOf(t, f.trail, "s1", audit.EventBookingCancelled), 1)
}

func TestGetBookingInfoDeniesUnprovenSession(t *testing.T) {
	f := newToolsFixture()
	rec := f.book(t, "1020304050")
	tools := f.session("intruder")

	got, err := tools.GetBookingInfo(context.Background(), rec.ConfirmationCode, "")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.ErrorIs(t, err, apperr.ErrAccessDenied)

	got, err = tools.GetBookingInfo(context.Background(), rec.ConfirmationCode, "999")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrAccessDenied)

	denied := eventsOf(t, f.trail, "intruder", audit.EventAccessDenied)
	require.Len(t, denied, 2)
	assert.Equal(t, "get_booking_info", denied[0].Content)
}

func TestGetBookingInfoWithMatchingClientIDProvesOwnership(t *testing.T) {
	f := newToolsFixture()
	ctx := context.Background()
	rec := f.book(t, "1020304050")
	tools := f.session("owner")

	_, err := tools.CancelBooking(ctx, rec.ConfirmationCode)
	require.ErrorIs(t, err, ErrAccessDenied)

	got, err := tools.GetBookingInfo(ctx, rec.ConfirmationCode, "1020304050")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	cancelled, err := tools.CancelBooking(ctx, rec.ConfirmationCode)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cancelled.Status)
}

func TestGetBookingInfoByClientIDValidatesCode(t *testing.T) {
	f := newToolsFixture()
	ctx := context.Background()
	rec := f.book(t, "1020304050")
	tools := f.session("owner")

	got, err := tools.GetBookingInfo(ctx, "", "1020304050")
	require.NoError(t, err)
	assert.Equal(t, rec.ConfirmationCode, got.ConfirmationCode)

	_, err = tools.CancelBooking(ctx, rec.ConfirmationCode)
	require.NoError(t, err)
}

func TestGetBookingInfoRequiresLookupKey(t *testing.T) {
	f := newToolsFixture()
	_, err := f.session("s").GetBookingInfo(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrLookupKeyRequired)
}

func TestOwnershipDoesNotLeakAcrossSessions(t *testing.T) {
	f := newToolsFixture()
	ctx := context.Background()
	rec := f.book(t, "1020304050")

	owner := f.session("owner")
	_, err := owner.GetBookingInfo(ctx, "", "1020304050")
	require.NoError(t, err)

	_, err = f.session("other").CancelBooking(ctx, rec.ConfirmationCode)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestBookAppointmentRejectsTakenSlotAndAmbiguousProvider(t *testing.T) {
	f := newToolsFixture()
	ctx := context.Background()
	f.book(t, "1")

	_, err := f.session("s").BookAppointment(ctx, BookRequest{
		ProviderQuery: "DR001", ClientName: "Luis", Date: testMonday, Time: "09:30",
	})
	assert.ErrorIs(t, err, booking.ErrSlotTaken)

	_, err = f.session("s").BookAppointment(ctx, BookRequest{
		ProviderQuery: "dr", ClientName: "Luis", Date: testMonday, Time: "14:00",
	})
	assert.ErrorIs(t, err, ErrAmbiguousProvider)

	_, err = f.session("s").BookAppointment(ctx, BookRequest{
		ProviderQuery: "cardiologia", ClientName: "Luis", Date: testMonday, Time: "14:00",
	})
	assert.ErrorIs(t, err, booking.ErrProviderNotFound)
}

func TestFindSlotsAndFirstAvailable(t *testing.T) {
	f := newToolsFixture()
	ctx := context.Background()
	f.book(t, "1")
	tools := f.session("s")

	provider, slots, err := tools.FindSlots(ctx, "gomez", testMonday)
	require.NoError(t, err)
	assert.Equal(t, "DR001", provider.ID)
	require.Len(t, slots, 4)
	assert.False(t, slots[1].Available)

	slot, ok, err := tools.FirstAvailable(ctx, "DR001", 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testMonday, booking.FormatDate(slot.Date))
	assert.Equal(t, "09:00", slot.Time.String())
}

func TestOccupancyOmitsClientData(t *testing.T) {
	f := newToolsFixture()
	f.book(t, "1020304050")

	result := f.session("s").Dispatch(context.Background(), ToolOccupancy, map[string]any{"date": testMonday})
	lines, ok := result["bookings"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, lines, 1)
	assert.Equal(t, "Dra. Gómez", lines[0]["provider"])
	assert.Equal(t, "09:30", lines[0]["time"])
	for _, v := range lines[0] {
		assert.NotContains(t, v, "Ana")
		assert.NotContains(t, v, "1020304050")
	}
}

func TestDispatchDeniedCarriesNoBookingContent(t *testing.T) {
	f := newToolsFixture()
	rec := f.book(t, "1020304050")

	result := f.session("intruder").Dispatch(context.Background(), ToolGetBookingInfo, map[string]any{
		"confirmation_code": rec.ConfirmationCode,
	})
	assert.Equal(t, map[string]any{"error": AccessDeniedMessage}, result)
}

func TestListClientBookingsRequiresValidatedClient(t *testing.T) {
	f := newToolsFixture()
	ctx := context.Background()
	rec := f.book(t, "1020304050")

	stranger := f.session("stranger")
	_, err := stranger.ListClientBookings(ctx, "1020304050")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Len(t, eventsOf(t, f.trail, "stranger", audit.EventAccessDenied), 1)

	_, err = stranger.ListClientBookings(ctx, " ")
	assert.ErrorIs(t, err, ErrLookupKeyRequired)

	owner := f.session("owner")
	_, err = owner.GetBookingInfo(ctx, rec.ConfirmationCode, "1020304050")
	require.NoError(t, err)
	result := owner.Dispatch(ctx, ToolClientBookings, map[string]any{"client_id": float64(1020304050)})
	bookings, ok := result["bookings"].([]map[string]any)
	require.True(t, ok, "%v", result)
	require.Len(t, bookings, 1)
	assert.Equal(t, rec.ConfirmationCode, bookings[0]["confirmation_code"])
}

func TestDispatchUnknownTool(t *testing.T) {
	f := newToolsFixture()
	result := f.session("s").Dispatch(context.Background(), "drop_tables", nil)
	assert.Contains(t, result["error"], "unknown tool")
}

func TestDispatchBookAppointment(t *testing.T) {
	f := newToolsFixture()
	result := f.session("s").Dispatch(context.Background(), ToolBookAppointment, map[string]any{
		"provider":    "DR002",
		"client_name": "Luis Mora",
		"client_id":   float64(4455),
		"date":        testMonday,
		"time":        "14:20",
	})
	view, ok := result["booking"].(map[string]any)
	require.True(t, ok, "result: %v", result)
	assert.Equal(t, "Dr. Pérez", view["provider"])
	assert.Equal(t, "14:20", view["time"])
	assert.Equal(t, "confirmed", view["status"])

	rec, err := f.svc.GetBookingByClientID(context.Background(), "4455")
	require.NoError(t, err)
	assert.Equal(t, "Luis Mora", rec.ClientName)
}

func TestToolCallsAreAudited(t *testing.T) {
	f := newToolsFixture()
	tools := f.session("s")
	_, _ = tools.SearchProviders(context.Background(), "optometria")
	_, _, _ = tools.FindSlots(context.Background(), "DR002", "not-a-date")

	calls := eventsOf(t, f.trail, "s", audit.EventToolCall)
	require.Len(t, calls, 2)
	assert.Equal(t, "search_providers", calls[0].Metadata["tool"])
	assert.Equal(t, "ok", calls[0].Metadata["outcome"])
	assert.NotEqual(t, "ok", calls[1].Metadata["outcome"])
}
