package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock returns t0, t0+1s, t0+2s, ...
func steppingClock(t0 time.Time) func() time.Time {
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ts := t0.Add(time.Duration(n) * time.Second)
		n++
		return ts
	}
}

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func seededTrail(t *testing.T) *MemoryTrail {
	t.Helper()
	trail := NewMemoryTrail()
	trail.now = steppingClock(t0)
	ctx := context.Background()
	for _, e := range []Entry{
		{TenantID: "Clinica", SessionID: "s1", EventType: EventUserMessage, Content: "hola"},
		{TenantID: "Clinica", SessionID: "s1", EventType: EventSecurityBlock, Content: "blocked", ThreatLevel: "High"},
		{TenantID: "taller", SessionID: "s2", EventType: EventOutputFiltered, Content: "filtered"},
		{TenantID: "clinica", SessionID: "s1", EventType: EventAgentResponse, Content: "respuesta"},
	} {
		_, err := trail.Append(ctx, e)
		require.NoError(t, err)
	}
	return trail
}

func TestMemoryTrailAppendAssignsIdentity(t *testing.T) {
	trail := NewMemoryTrail()
	trail.now = steppingClock(t0)

	stored, err := trail.Append(context.Background(), Entry{
		SessionID: "s1",
		EventType: EventToolCall,
		Timestamp: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, t0, stored.Timestamp, "caller timestamps are ignored")

	kept, err := trail.Append(context.Background(), Entry{ID: "fixed", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", kept.ID)
}

func TestMemoryTrailQuerySessionAscending(t *testing.T) {
	entries, err := seededTrail(t).QuerySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, EventUserMessage, entries[0].EventType)
	assert.Equal(t, EventAgentResponse, entries[2].EventType)
}

func TestMemoryTrailQuerySecurity(t *testing.T) {
	trail := seededTrail(t)
	ctx := context.Background()

	all, err := trail.QuerySecurity(ctx, "", t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, EventOutputFiltered, all[0].EventType, "newest first")
	assert.Equal(t, EventSecurityBlock, all[1].EventType)

	clinic, err := trail.QuerySecurity(ctx, "CLINICA", t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, clinic, 1)
	assert.Equal(t, "High", clinic[0].ThreatLevel)

	window, err := trail.QuerySecurity(ctx, "", t0.Add(2*time.Second), t0.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "taller", window[0].TenantID)
}

func TestMemoryTrailQueryRecent(t *testing.T) {
	trail := seededTrail(t)
	ctx := context.Background()

	recent, err := trail.QueryRecent(ctx, "clinica", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, EventAgentResponse, recent[0].EventType)
	assert.Equal(t, EventSecurityBlock, recent[1].EventType)

	for i := 0; i < 150; i++ {
		_, err := trail.Append(ctx, Entry{TenantID: "bulk", SessionID: fmt.Sprintf("b%d", i)})
		require.NoError(t, err)
	}
	defaulted, err := trail.QueryRecent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, defaulted, DefaultRecentLimit)
}

func TestMemoryTrailEntriesAreImmutable(t *testing.T) {
	trail := NewMemoryTrail()
	md := map[string]string{"reason": "x"}
	stored, err := trail.Append(context.Background(), Entry{SessionID: "s1", Metadata: md})
	require.NoError(t, err)

	md["reason"] = "mutated"
	stored.Metadata["reason"] = "mutated too"

	entries, err := trail.QuerySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].Metadata["reason"])

	entries[0].Metadata["reason"] = "again"
	again, _ := trail.QuerySession(context.Background(), "s1")
	assert.Equal(t, "x", again[0].Metadata["reason"])
}

func TestMemoryTrailConcurrentAppends(t *testing.T) {
	trail := NewMemoryTrail()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = trail.Append(context.Background(), Entry{SessionID: "s", EventType: EventToolCall})
		}()
	}
	wg.Wait()

	entries, err := trail.QuerySession(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, entries, 100)
}
