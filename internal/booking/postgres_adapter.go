package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation    = "23505"
	codeUniqueIndex    = "bookings_tenant_code_idx"
	bookingColumns     = `id, tenant_id, confirmation_code, client_name, provider_id, provider_name, scheduled_date, scheduled_time, status, custom_fields, created_at, updated_at`
	activeSlotConflict = `ON CONFLICT (tenant_id, provider_id, scheduled_date, scheduled_time) WHERE status <> 'cancelled' DO NOTHING`
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresAdapter stores bookings in the bookings table. The partial unique
// index on active slots turns CreateBooking into a compare-and-set.
type PostgresAdapter struct {
	tenantID string
	dir      directory
	db       rowQuerier
}

// NewPostgresAdapter creates an adapter scoped to one tenant.
func NewPostgresAdapter(pool *pgxpool.Pool, tenantID string, providers []ServiceProvider) *PostgresAdapter {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return newPostgresAdapterWithQuerier(pool, tenantID, providers)
}

func newPostgresAdapterWithQuerier(db rowQuerier, tenantID string, providers []ServiceProvider) *PostgresAdapter {
	if db == nil {
		panic("booking: querier required")
	}
	return &PostgresAdapter{tenantID: tenantID, dir: newDirectory(providers), db: db}
}

func (a *PostgresAdapter) ListProviders(ctx context.Context) ([]ServiceProvider, error) {
	return a.dir.list(), nil
}

func (a *PostgresAdapter) SearchProviders(ctx context.Context, query string) ([]ServiceProvider, error) {
	return a.dir.search(query), nil
}

func (a *PostgresAdapter) Exists(ctx context.Context, date time.Time, at TimeOfDay, providerID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE tenant_id = $1 AND provider_id = $2 AND scheduled_date = $3 AND scheduled_time = $4
			AND status <> 'cancelled'
		)
	`
	var exists bool
	if err := a.db.QueryRow(ctx, query, a.tenantID, providerID, civilDate(date), at.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("booking: check slot: %w", err)
	}
	return exists, nil
}

func (a *PostgresAdapter) CreateBooking(ctx context.Context, record *Record) error {
	if record == nil {
		return ErrBookingNotFound
	}
	fields, err := json.Marshal(nonNilFields(record.CustomFields))
	if err != nil {
		return fmt.Errorf("booking: marshal custom fields: %w", err)
	}
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		` + activeSlotConflict
	ct, err := a.db.Exec(ctx, query,
		record.ID, a.tenantID, record.ConfirmationCode, record.ClientName,
		record.ProviderID, record.ProviderName, civilDate(record.Date), record.Time.String(),
		string(record.Status), fields, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == codeUniqueIndex {
			return errCodeTaken
		}
		return fmt.Errorf("booking: insert: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrSlotTaken
	}
	return nil
}

func (a *PostgresAdapter) GetBookingByCode(ctx context.Context, code string) (*Record, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE tenant_id = $1 AND upper(confirmation_code) = upper($2)`
	return a.queryOne(ctx, query, a.tenantID, strings.TrimSpace(code))
}

func (a *PostgresAdapter) GetBookingsByDate(ctx context.Context, date time.Time) ([]*Record, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE tenant_id = $1 AND scheduled_date = $2 ORDER BY scheduled_time, created_at`
	return a.queryMany(ctx, query, a.tenantID, civilDate(date))
}

func (a *PostgresAdapter) GetBookingByClientID(ctx context.Context, clientID string) (*Record, error) {
	query := `
		SELECT ` + bookingColumns + ` FROM bookings
		WHERE tenant_id = $1 AND lower(custom_fields->>'clientId') = lower($2) AND status <> 'cancelled'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return a.queryOne(ctx, query, a.tenantID, strings.TrimSpace(clientID))
}

func (a *PostgresAdapter) GetBookingsByClientID(ctx context.Context, clientID string) ([]*Record, error) {
	query := `
		SELECT ` + bookingColumns + ` FROM bookings
		WHERE tenant_id = $1 AND lower(custom_fields->>'clientId') = lower($2)
		ORDER BY created_at
	`
	return a.queryMany(ctx, query, a.tenantID, strings.TrimSpace(clientID))
}

func (a *PostgresAdapter) UpdateBooking(ctx context.Context, record *Record) error {
	if record == nil {
		return ErrBookingNotFound
	}
	fields, err := json.Marshal(nonNilFields(record.CustomFields))
	if err != nil {
		return fmt.Errorf("booking: marshal custom fields: %w", err)
	}
	query := `
		UPDATE bookings
		SET client_name = $3, provider_id = $4, provider_name = $5, scheduled_date = $6,
			scheduled_time = $7, status = $8, custom_fields = $9, updated_at = $10
		WHERE tenant_id = $1 AND id = $2
	`
	ct, err := a.db.Exec(ctx, query,
		a.tenantID, record.ID, record.ClientName, record.ProviderID, record.ProviderName,
		civilDate(record.Date), record.Time.String(), string(record.Status), fields, record.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSlotTaken
		}
		return fmt.Errorf("booking: update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (a *PostgresAdapter) DeleteBooking(ctx context.Context, id string) error {
	ct, err := a.db.Exec(ctx, `DELETE FROM bookings WHERE tenant_id = $1 AND id = $2`, a.tenantID, id)
	if err != nil {
		return fmt.Errorf("booking: delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (a *PostgresAdapter) queryOne(ctx context.Context, query string, args ...any) (*Record, error) {
	rec, err := scanRecord(a.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: load: %w", err)
	}
	return rec, nil
}

func (a *PostgresAdapter) queryMany(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("booking: query: %w", err)
	}
	defer rows.Close()

	out := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: rows: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec       Record
		clock     string
		status    string
		fields    []byte
		updatedAt *time.Time
	)
	if err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.ConfirmationCode, &rec.ClientName,
		&rec.ProviderID, &rec.ProviderName, &rec.Date, &clock,
		&status, &fields, &rec.CreatedAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	at, err := ParseTime(clock)
	if err != nil {
		return nil, err
	}
	rec.Time = at
	rec.Date = civilDate(rec.Date)
	rec.Status = Status(status)
	rec.UpdatedAt = updatedAt
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &rec.CustomFields); err != nil {
			return nil, fmt.Errorf("decode custom fields: %w", err)
		}
	}
	return &rec, nil
}

func nonNilFields(fields map[string]string) map[string]string {
	if fields == nil {
		return map[string]string{}
	}
	return fields
}
