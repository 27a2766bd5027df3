package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryTrail keeps entries in an append-only slice.
type MemoryTrail struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

func NewMemoryTrail() *MemoryTrail {
	return &MemoryTrail{now: func() time.Time { return time.Now().UTC() }}
}

func (t *MemoryTrail) Append(ctx context.Context, entry Entry) (Entry, error) {
	stored := entry.clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	stored.Timestamp = t.now()
	t.entries = append(t.entries, stored)
	return stored.clone(), nil
}

func (t *MemoryTrail) QuerySession(ctx context.Context, sessionID string) ([]Entry, error) {
	out := t.filter(func(e Entry) bool { return e.SessionID == sessionID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (t *MemoryTrail) QuerySecurity(ctx context.Context, tenantID string, from, to time.Time) ([]Entry, error) {
	out := t.filter(func(e Entry) bool {
		return e.EventType.IsSecurity() &&
			tenantMatches(tenantID, e.TenantID) &&
			!e.Timestamp.Before(from) && !e.Timestamp.After(to)
	})
	sortNewestFirst(out)
	return out, nil
}

func (t *MemoryTrail) QueryRecent(ctx context.Context, tenantID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	out := t.filter(func(e Entry) bool { return tenantMatches(tenantID, e.TenantID) })
	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *MemoryTrail) filter(match func(Entry) bool) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0)
	for _, e := range t.entries {
		if match(e) {
			out = append(out, e.clone())
		}
	}
	return out
}

// sortNewestFirst orders by timestamp descending; ties keep reverse append order.
func sortNewestFirst(entries []Entry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
}
