package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const entryColumns = `id, tenant_id, session_id, event_type, content, threat_level, metadata, created_at`

// SQLTrail stores entries in the audit_entries table.
type SQLTrail struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLTrail creates a trail over an open database handle.
func NewSQLTrail(db *sql.DB) *SQLTrail {
	if db == nil {
		panic("audit: sql db required")
	}
	return &SQLTrail{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLTrail) Append(ctx context.Context, entry Entry) (Entry, error) {
	stored := entry.clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Timestamp = s.now()

	metadata, err := json.Marshal(stored.Metadata)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: marshal metadata: %w", err)
	}

	query := `
		INSERT INTO audit_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		stored.ID,
		stored.TenantID,
		stored.SessionID,
		string(stored.EventType),
		stored.Content,
		nullString(stored.ThreatLevel),
		metadata,
		stored.Timestamp,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: failed to append entry: %w", err)
	}
	return stored, nil
}

func (s *SQLTrail) QuerySession(ctx context.Context, sessionID string) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_entries WHERE session_id = $1 ORDER BY created_at ASC`
	return s.query(ctx, query, sessionID)
}

func (s *SQLTrail) QuerySecurity(ctx context.Context, tenantID string, from, to time.Time) ([]Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM audit_entries
		WHERE event_type IN ($1, $2) AND created_at >= $3 AND created_at <= $4
	`
	args := []interface{}{string(EventSecurityBlock), string(EventOutputFiltered), from, to}
	if t := strings.TrimSpace(tenantID); t != "" {
		query += " AND lower(tenant_id) = lower($5)"
		args = append(args, t)
	}
	query += " ORDER BY created_at DESC"
	return s.query(ctx, query, args...)
}

func (s *SQLTrail) QueryRecent(ctx context.Context, tenantID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	query := `SELECT ` + entryColumns + ` FROM audit_entries`
	var args []interface{}
	if t := strings.TrimSpace(tenantID); t != "" {
		query += " WHERE lower(tenant_id) = lower($1)"
		args = append(args, t)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)
	return s.query(ctx, query, args...)
}

func (s *SQLTrail) query(ctx context.Context, query string, args ...interface{}) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e         Entry
			eventType string
			threat    sql.NullString
			metadata  []byte
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.SessionID, &eventType, &e.Content, &threat, &metadata, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("audit: failed to scan entry: %w", err)
		}
		e.EventType = EventType(eventType)
		e.ThreatLevel = threat.String
		if len(metadata) > 0 && string(metadata) != "null" {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("audit: failed to decode metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to iterate entries: %w", err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
