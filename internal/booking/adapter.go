// Package booking implements the per-tenant provider directory, slot
// availability engine and booking ledger.
package booking

import (
	"context"
	"time"
)

// DataAdapter is the per-tenant storage capability set. Variants are chosen
// once per tenant by AdapterFactory.
type DataAdapter interface {
	ListProviders(ctx context.Context) ([]ServiceProvider, error)
	SearchProviders(ctx context.Context, query string) ([]ServiceProvider, error)
	// Exists reports whether a non-cancelled booking holds the slot.
	Exists(ctx context.Context, date time.Time, at TimeOfDay, providerID string) (bool, error)
	// CreateBooking claims the slot atomically, failing with ErrSlotTaken when held.
	CreateBooking(ctx context.Context, record *Record) error
	GetBookingByCode(ctx context.Context, code string) (*Record, error)
	GetBookingsByDate(ctx context.Context, date time.Time) ([]*Record, error)
	// GetBookingByClientID returns the most recent non-cancelled booking of the client.
	GetBookingByClientID(ctx context.Context, clientID string) (*Record, error)
	GetBookingsByClientID(ctx context.Context, clientID string) ([]*Record, error)
	UpdateBooking(ctx context.Context, record *Record) error
	// DeleteBooking hard-deletes a booking. Reserved for data-management tooling.
	DeleteBooking(ctx context.Context, id string) error
}
