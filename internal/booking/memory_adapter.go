package booking

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryAdapter keeps bookings in a process-local arena. The slot index and
// the insert share one lock so CreateBooking is a single compare-and-set.
type MemoryAdapter struct {
	tenantID string
	dir      directory

	mu       sync.RWMutex
	bookings map[string]*Record // by id
	slots    map[string]string  // slotKey -> id, active bookings only
	codes    map[string]string  // upper(code) -> id
}

// NewMemoryAdapter creates an empty adapter over the given provider roster.
func NewMemoryAdapter(tenantID string, providers []ServiceProvider) *MemoryAdapter {
	return &MemoryAdapter{
		tenantID: tenantID,
		dir:      newDirectory(providers),
		bookings: make(map[string]*Record),
		slots:    make(map[string]string),
		codes:    make(map[string]string),
	}
}

func (a *MemoryAdapter) ListProviders(ctx context.Context) ([]ServiceProvider, error) {
	return a.dir.list(), nil
}

func (a *MemoryAdapter) SearchProviders(ctx context.Context, query string) ([]ServiceProvider, error) {
	return a.dir.search(query), nil
}

func (a *MemoryAdapter) Exists(ctx context.Context, date time.Time, at TimeOfDay, providerID string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.slots[slotKey(providerID, date, at)]
	return ok, nil
}

func (a *MemoryAdapter) CreateBooking(ctx context.Context, record *Record) error {
	if record == nil {
		return ErrBookingNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	key := slotKey(record.ProviderID, record.Date, record.Time)
	if record.Active() {
		if _, taken := a.slots[key]; taken {
			return ErrSlotTaken
		}
	}
	code := strings.ToUpper(record.ConfirmationCode)
	if _, taken := a.codes[code]; taken {
		return errCodeTaken
	}

	stored := record.Clone()
	stored.Date = civilDate(stored.Date)
	a.bookings[stored.ID] = stored
	a.codes[code] = stored.ID
	if stored.Active() {
		a.slots[key] = stored.ID
	}
	return nil
}

func (a *MemoryAdapter) GetBookingByCode(ctx context.Context, code string) (*Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.codes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return a.bookings[id].Clone(), nil
}

func (a *MemoryAdapter) GetBookingsByDate(ctx context.Context, date time.Time) ([]*Record, error) {
	day := civilDate(date)
	return a.collect(func(r *Record) bool { return r.Date.Equal(day) }), nil
}

func (a *MemoryAdapter) GetBookingByClientID(ctx context.Context, clientID string) (*Record, error) {
	matches := a.collect(func(r *Record) bool {
		return r.Active() && strings.EqualFold(r.ClientID(), strings.TrimSpace(clientID))
	})
	if len(matches) == 0 {
		return nil, ErrBookingNotFound
	}
	return matches[len(matches)-1], nil
}

func (a *MemoryAdapter) GetBookingsByClientID(ctx context.Context, clientID string) ([]*Record, error) {
	return a.collect(func(r *Record) bool {
		return strings.EqualFold(r.ClientID(), strings.TrimSpace(clientID))
	}), nil
}

func (a *MemoryAdapter) UpdateBooking(ctx context.Context, record *Record) error {
	if record == nil {
		return ErrBookingNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	current, ok := a.bookings[record.ID]
	if !ok {
		return ErrBookingNotFound
	}
	oldKey := slotKey(current.ProviderID, current.Date, current.Time)
	newKey := slotKey(record.ProviderID, record.Date, record.Time)
	if record.Active() {
		if holder, taken := a.slots[newKey]; taken && holder != record.ID {
			return ErrSlotTaken
		}
	}

	if current.Active() {
		delete(a.slots, oldKey)
	}
	stored := record.Clone()
	stored.Date = civilDate(stored.Date)
	stored.ConfirmationCode = current.ConfirmationCode
	a.bookings[stored.ID] = stored
	if stored.Active() {
		a.slots[newKey] = stored.ID
	}
	return nil
}

func (a *MemoryAdapter) DeleteBooking(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, ok := a.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	if current.Active() {
		delete(a.slots, slotKey(current.ProviderID, current.Date, current.Time))
	}
	delete(a.codes, strings.ToUpper(current.ConfirmationCode))
	delete(a.bookings, id)
	return nil
}

// collect returns copies of the matching bookings ordered by creation time.
func (a *MemoryAdapter) collect(match func(*Record) bool) []*Record {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*Record, 0)
	for _, r := range a.bookings {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
