package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jconeo117/receptionist-agent/internal/apperr"
	"github.com/jconeo117/receptionist-agent/internal/observability/metrics"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

var bookingTracer = otel.Tracer("receptionist.internal.booking")

// MaxSearchDays bounds how far FirstAvailable looks ahead.
const MaxSearchDays = 60

// Confirmation code lengths tried in order when a shorter code collides.
var codeLengths = []int{4, 6, 8}

// CreateRequest carries what a caller supplies to book a slot.
type CreateRequest struct {
	ProviderID   string
	ClientName   string
	Date         time.Time
	Time         TimeOfDay
	CustomFields map[string]string
}

// Service runs availability and ledger operations for one tenant.
type Service struct {
	tenantID string
	adapter  DataAdapter
	metrics  *metrics.ReceptionistMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates a booking service over the tenant's adapter.
func NewService(tenantID string, adapter DataAdapter, m *metrics.ReceptionistMetrics, logger *logging.Logger) *Service {
	if adapter == nil {
		panic("booking: data adapter required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		tenantID: tenantID,
		adapter:  adapter,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// TenantID returns the tenant the service is scoped to.
func (s *Service) TenantID() string { return s.tenantID }

func (s *Service) ListProviders(ctx context.Context) ([]ServiceProvider, error) {
	return s.adapter.ListProviders(ctx)
}

func (s *Service) SearchProviders(ctx context.Context, query string) ([]ServiceProvider, error) {
	return s.adapter.SearchProviders(ctx, query)
}

// Provider resolves a provider by id, case-insensitively.
func (s *Service) Provider(ctx context.Context, providerID string) (ServiceProvider, error) {
	providers, err := s.adapter.ListProviders(ctx)
	if err != nil {
		return ServiceProvider{}, err
	}
	if p, ok := newDirectory(providers).byID(providerID); ok {
		return p, nil
	}
	return ServiceProvider{}, ErrProviderNotFound
}

// ListAvailableSlots enumerates every slot of the provider on date. The result
// is empty when the provider does not work that weekday.
func (s *Service) ListAvailableSlots(ctx context.Context, providerID string, date time.Time) ([]TimeSlot, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.list_slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("receptionist.tenant_id", s.tenantID),
		attribute.String("receptionist.provider_id", providerID),
	)

	provider, err := s.Provider(ctx, providerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	day := civilDate(date)
	slots := []TimeSlot{}
	if !provider.WorksOn(day) {
		return slots, nil
	}
	for _, at := range provider.Slots() {
		taken, err := s.adapter.Exists(ctx, day, at, provider.ID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		slots = append(slots, TimeSlot{Date: day, Time: at, Available: !taken})
	}
	return slots, nil
}

// FirstAvailable scans up to days calendar days (at most MaxSearchDays)
// starting at from and returns the earliest free slot. Slots earlier than
// from on its own day are skipped.
func (s *Service) FirstAvailable(ctx context.Context, providerID string, from time.Time, days int) (TimeSlot, bool, error) {
	days = min(max(days, 1), MaxSearchDays)
	start := civilDate(from)
	cutoff := NewTimeOfDay(from.Hour(), from.Minute())
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		slots, err := s.ListAvailableSlots(ctx, providerID, day)
		if err != nil {
			return TimeSlot{}, false, err
		}
		for _, slot := range slots {
			if i == 0 && slot.Time < cutoff {
				continue
			}
			if slot.Available {
				return slot, true, nil
			}
		}
	}
	return TimeSlot{}, false, nil
}

// CreateBooking re-validates the slot and claims it through the adapter.
func (s *Service) CreateBooking(ctx context.Context, req CreateRequest) (*Record, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("receptionist.tenant_id", s.tenantID),
		attribute.String("receptionist.provider_id", req.ProviderID),
	)

	record, err := s.create(ctx, req)
	s.metrics.ObserveBooking(s.tenantID, "create", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("receptionist.booking_id", record.ID))
	s.logger.Info("booking created", "tenant_id", s.tenantID, "booking_id", record.ID, "provider_id", record.ProviderID)
	return record, nil
}

func (s *Service) create(ctx context.Context, req CreateRequest) (*Record, error) {
	clientName := strings.TrimSpace(req.ClientName)
	if clientName == "" {
		return nil, ErrClientNameRequired
	}
	provider, err := s.Provider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	day := civilDate(req.Date)
	if !provider.WorksOn(day) {
		return nil, ErrNotWorkingDay
	}
	if !provider.OnGrid(req.Time) {
		return nil, ErrOutsideWorkingHours
	}
	taken, err := s.adapter.Exists(ctx, day, req.Time, provider.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotTaken
	}

	id := uuid.NewString()
	record := &Record{
		ID:           id,
		TenantID:     s.tenantID,
		ClientName:   clientName,
		ProviderID:   provider.ID,
		ProviderName: provider.Name,
		Date:         day,
		Time:         req.Time,
		Status:       StatusConfirmed,
		CustomFields: copyFields(req.CustomFields),
		CreatedAt:    s.now(),
	}
	for _, n := range codeLengths {
		record.ConfirmationCode = confirmationCode(id, n)
		err = s.adapter.CreateBooking(ctx, record)
		if !errors.Is(err, errCodeTaken) {
			break
		}
	}
	if errors.Is(err, errCodeTaken) {
		return nil, fmt.Errorf("booking: exhausted confirmation codes for %s: %w", id, apperr.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// CancelBooking soft-deletes the booking behind code, freeing its slot.
// Cancelling an already cancelled booking is a no-op.
func (s *Service) CancelBooking(ctx context.Context, code string) (*Record, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("receptionist.tenant_id", s.tenantID))

	record, err := s.cancel(ctx, code)
	s.metrics.ObserveBooking(s.tenantID, "cancel", outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("booking cancelled", "tenant_id", s.tenantID, "booking_id", record.ID)
	return record, nil
}

func (s *Service) cancel(ctx context.Context, code string) (*Record, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrBookingNotFound
	}
	record, err := s.adapter.GetBookingByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !record.Active() {
		return record, nil
	}
	now := s.now()
	record.Status = StatusCancelled
	record.UpdatedAt = &now
	if err := s.adapter.UpdateBooking(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// GetBooking returns the booking behind a confirmation code.
func (s *Service) GetBooking(ctx context.Context, code string) (*Record, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrBookingNotFound
	}
	return s.adapter.GetBookingByCode(ctx, code)
}

// GetBookingByClientID returns the client's most recent active booking.
func (s *Service) GetBookingByClientID(ctx context.Context, clientID string) (*Record, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, ErrBookingNotFound
	}
	return s.adapter.GetBookingByClientID(ctx, clientID)
}

func (s *Service) GetBookingsByClientID(ctx context.Context, clientID string) ([]*Record, error) {
	if strings.TrimSpace(clientID) == "" {
		return []*Record{}, nil
	}
	return s.adapter.GetBookingsByClientID(ctx, clientID)
}

// Occupancy lists the active bookings of a day without any client data.
func (s *Service) Occupancy(ctx context.Context, date time.Time) ([]OccupancyLine, error) {
	records, err := s.adapter.GetBookingsByDate(ctx, civilDate(date))
	if err != nil {
		return nil, err
	}
	lines := make([]OccupancyLine, 0, len(records))
	for _, r := range records {
		if !r.Active() {
			continue
		}
		lines = append(lines, OccupancyLine{ProviderName: r.ProviderName, Time: r.Time, Status: r.Status})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].Time == lines[j].Time {
			return lines[i].ProviderName < lines[j].ProviderName
		}
		return lines[i].Time < lines[j].Time
	})
	return lines, nil
}

func confirmationCode(id string, n int) string {
	raw := strings.ReplaceAll(id, "-", "")
	if n > len(raw) {
		n = len(raw)
	}
	return "CITA-" + strings.ToUpper(raw[:n])
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrInvalidArgument):
		return "invalid"
	default:
		return "error"
	}
}
