// Package audit records an append-only trail of guard decisions, filtered
// replies and booking operations.
package audit

import (
	"context"
	"strings"
	"time"
)

// EventType classifies an audit entry.
type EventType string

const (
	EventUserMessage      EventType = "UserMessage"
	EventAgentResponse    EventType = "AgentResponse"
	EventSecurityBlock    EventType = "SecurityBlock"
	EventOutputFiltered   EventType = "OutputFiltered"
	EventToolCall         EventType = "ToolCall"
	EventBookingCreated   EventType = "BookingCreated"
	EventBookingCancelled EventType = "BookingCancelled"
	EventAccessDenied     EventType = "AccessDenied"
)

// DefaultRecentLimit applies when QueryRecent gets a non-positive limit.
const DefaultRecentLimit = 100

// IsSecurity reports whether the event type belongs to the security view.
func (t EventType) IsSecurity() bool {
	return t == EventSecurityBlock || t == EventOutputFiltered
}

// Entry is one immutable audit record. Timestamp is assigned by the trail.
type Entry struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenant_id"`
	SessionID   string            `json:"session_id"`
	Timestamp   time.Time         `json:"timestamp"`
	EventType   EventType         `json:"event_type"`
	Content     string            `json:"content"`
	ThreatLevel string            `json:"threat_level,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (e Entry) clone() Entry {
	if e.Metadata != nil {
		md := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		e.Metadata = md
	}
	return e
}

// Trail is the audit sink. Append is safe for concurrent use; reads observe
// appended entries eventually.
type Trail interface {
	// Append stores the entry, assigning an id when blank and always stamping
	// the timestamp. It returns the stored copy.
	Append(ctx context.Context, entry Entry) (Entry, error)
	// QuerySession returns the entries of a session in ascending time order.
	QuerySession(ctx context.Context, sessionID string) ([]Entry, error)
	// QuerySecurity returns SecurityBlock and OutputFiltered entries in
	// [from, to], newest first. A blank tenantID matches every tenant.
	QuerySecurity(ctx context.Context, tenantID string, from, to time.Time) ([]Entry, error)
	// QueryRecent returns up to limit entries, newest first.
	QueryRecent(ctx context.Context, tenantID string, limit int) ([]Entry, error)
}

func tenantMatches(filter, tenantID string) bool {
	filter = strings.TrimSpace(filter)
	return filter == "" || strings.EqualFold(filter, tenantID)
}
