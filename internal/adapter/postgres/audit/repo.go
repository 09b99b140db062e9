// Package audit implements the Audit repository using PostgreSQL.
// It provides append-only operations for record audit entries; the table
// itself rejects UPDATE and DELETE.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/recordreview-backend/internal/adapter/postgres"
	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// Repo provides audit log persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new audit repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

const insertSQL = `
INSERT INTO audit_log (id, record_id, actor, action, field_names, old_value, new_value, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const listByRecordSQL = `
SELECT id, record_id, actor, action, field_names, old_value, new_value, created_at
FROM audit_log
WHERE record_id = $1
ORDER BY created_at DESC, id
LIMIT $2`

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Append validates and inserts one entry. A zero ID or CreatedAt is filled in.
func (r *Repo) Append(ctx context.Context, entry domain.AuditEntry) error {
	if err := validate(entry); err != nil {
		return err
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.FieldNames == nil {
		entry.FieldNames = []string{}
	}

	oldJSON, err := marshalValue(entry.OldValue)
	if err != nil {
		return fmt.Errorf("audit_entry marshal old value: %w", err)
	}
	newJSON, err := marshalValue(entry.NewValue)
	if err != nil {
		return fmt.Errorf("audit_entry marshal new value: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	_, err = q.Exec(ctx, insertSQL,
		entry.ID, entry.RecordID, entry.Actor, string(entry.Action),
		entry.FieldNames, oldJSON, newJSON, entry.CreatedAt,
	)
	if err != nil {
		return postgres.MapError(err, "audit_entry", entry.ID)
	}
	return nil
}

func validate(e domain.AuditEntry) error {
	var errs []domain.FieldError
	if e.RecordID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "record_id", Message: "required"})
	}
	if e.Actor == "" {
		errs = append(errs, domain.FieldError{Field: "actor", Message: "required"})
	}
	if !e.Action.IsValid() {
		errs = append(errs, domain.FieldError{Field: "action", Message: "invalid"})
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

// marshalValue returns nil for an empty map so the column stays NULL.
func marshalValue(v map[string]any) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

type entryRow struct {
	ID         uuid.UUID `db:"id"`
	RecordID   uuid.UUID `db:"record_id"`
	Actor      string    `db:"actor"`
	Action     string    `db:"action"`
	FieldNames []string  `db:"field_names"`
	OldValue   []byte    `db:"old_value"`
	NewValue   []byte    `db:"new_value"`
	CreatedAt  time.Time `db:"created_at"`
}

// ListByRecord returns the history of one record, newest first.
func (r *Repo) ListByRecord(ctx context.Context, recordID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	var rows []entryRow
	q := postgres.QuerierFromCtx(ctx, r.db)
	if err := pgxscan.Select(ctx, q, &rows, listByRecordSQL, recordID, limit); err != nil {
		return nil, fmt.Errorf("list audit entries for record %s: %w", recordID, err)
	}

	entries := make([]domain.AuditEntry, len(rows))
	for i, row := range rows {
		e, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}

func (row entryRow) toDomain() (domain.AuditEntry, error) {
	e := domain.AuditEntry{
		ID:         row.ID,
		RecordID:   row.RecordID,
		Actor:      row.Actor,
		Action:     domain.AuditAction(row.Action),
		FieldNames: row.FieldNames,
		CreatedAt:  row.CreatedAt,
	}
	if len(row.OldValue) > 0 {
		if err := json.Unmarshal(row.OldValue, &e.OldValue); err != nil {
			return domain.AuditEntry{}, fmt.Errorf("audit_entry %s unmarshal old value: %w", row.ID, err)
		}
	}
	if len(row.NewValue) > 0 {
		if err := json.Unmarshal(row.NewValue, &e.NewValue); err != nil {
			return domain.AuditEntry{}, fmt.Errorf("audit_entry %s unmarshal new value: %w", row.ID, err)
		}
	}
	return e, nil
}
