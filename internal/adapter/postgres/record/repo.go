// Package record implements the Record repository using PostgreSQL.
// Every state transition is a single conditional UPDATE; callers learn
// whether it applied from the returned flag instead of pre-reading.
package record

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	postgres "github.com/heartmarshall/recordreview-backend/internal/adapter/postgres"
	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// Repo provides record persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new record repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var columns = []string{
	"id",
	"property_address_ct", "property_address_token",
	"borrower_name_ct", "borrower_name_token",
	"parcel_id_ct", "parcel_id_token",
	"loan_amount", "sale_price", "down_payment", "transaction_date",
	"status", "assigned_to", "entered_by",
	"locked_by", "locked_at",
	"reviewed_by", "reviewed_at",
	"batch_id", "document_path", "document_name",
	"created_at", "updated_at",
}

var (
	recordColumns   = strings.Join(columns, ", ")
	qualifiedCols   = qualify("r", columns)
	returningClause = "RETURNING " + recordColumns
)

func qualify(alias string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}

// ---------------------------------------------------------------------------
// Raw SQL for statements squirrel cannot express cleanly
// ---------------------------------------------------------------------------

const insertSQL = `
INSERT INTO records (
    id,
    property_address_ct, property_address_token,
    borrower_name_ct, borrower_name_token,
    parcel_id_ct, parcel_id_token,
    loan_amount, sale_price, down_payment, transaction_date,
    status, assigned_to, entered_by,
    batch_id, document_path, document_name,
    embedding, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $19)
`

// The CTE locks the row and captures the lease being replaced so the audit
// entry can record it even when it was an expired lease of another operator.
var acquireSQL = `
WITH prev AS (
    SELECT id, locked_by, locked_at FROM records WHERE id = $1 FOR UPDATE
)
UPDATE records r
SET locked_by = $2, locked_at = $3, updated_at = $3
FROM prev
WHERE r.id = prev.id
  AND r.status = 'PENDING'
  AND r.assigned_to = $2
  AND (r.locked_by IS NULL OR r.locked_by = $2 OR r.locked_at < $4)
RETURNING ` + qualifiedCols + `, prev.locked_by AS prev_locked_by, prev.locked_at AS prev_locked_at`

var releaseSQL = `
UPDATE records
SET locked_by = NULL, locked_at = NULL, updated_at = $3
WHERE id = $1
  AND locked_by IS NOT NULL
  AND (locked_by = $2 OR assigned_to = $2)
` + returningClause

var forceReleaseSQL = `
UPDATE records
SET locked_by = NULL, locked_at = NULL, updated_at = $4
WHERE id = $1 AND locked_by = $2 AND locked_at = $3
` + returningClause

var reviewSQL = `
UPDATE records
SET status = $3, reviewed_by = $2, reviewed_at = $4,
    locked_by = NULL, locked_at = NULL, updated_at = $4
WHERE id = $1
  AND assigned_to = $2
  AND (locked_by IS NULL OR locked_by = $2 OR locked_at < $5)
` + returningClause

var assignSQL = `
UPDATE records
SET assigned_to = $2, locked_by = NULL, locked_at = NULL, updated_at = $3
WHERE id = $1
` + returningClause

var getForUpdateSQL = `SELECT ` + recordColumns + ` FROM records WHERE id = $1 FOR UPDATE`

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new record together with its embedding.
func (r *Repo) Create(ctx context.Context, rec *domain.Record, emb domain.Embedding) (*domain.Record, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	_, err := q.Exec(ctx, insertSQL,
		rec.ID,
		rec.PropertyAddress.Ciphertext, rec.PropertyAddress.Token,
		rec.BorrowerName.Ciphertext, rec.BorrowerName.Token,
		rec.ParcelID.Ciphertext, rec.ParcelID.Token,
		rec.LoanAmount, rec.SalePrice, rec.DownPayment, rec.TransactionDate,
		string(rec.Status), rec.AssignedTo, rec.EnteredBy,
		rec.BatchID, rec.DocumentPath, rec.DocumentName,
		pgvector.NewVector(emb), rec.CreatedAt,
	)
	if err != nil {
		return nil, postgres.MapError(err, "record", rec.ID)
	}

	return r.GetByID(ctx, rec.ID)
}

// AcquireLock grants holder the lease when the record is PENDING, assigned to
// holder, and either unlocked, already held by holder, or held by a lease
// older than staleBefore. applied is false when the condition did not hold.
// prev is the lease that was replaced, nil if the record was unlocked.
func (r *Repo) AcquireLock(ctx context.Context, id uuid.UUID, holder string, now, staleBefore time.Time) (rec *domain.Record, prev *domain.Lock, applied bool, err error) {
	var row struct {
		recordRow
		PrevLockedBy *string    `db:"prev_locked_by"`
		PrevLockedAt *time.Time `db:"prev_locked_at"`
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	if err := pgxscan.Get(ctx, q, &row, acquireSQL, id, holder, now, staleBefore); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, postgres.MapError(err, "record", id)
	}

	return row.toDomain(), toLock(row.PrevLockedBy, row.PrevLockedAt), true, nil
}

// ReleaseLock clears the lease if one exists and caller is its holder or the
// record's assignee. applied is false when there was nothing to release.
func (r *Repo) ReleaseLock(ctx context.Context, id uuid.UUID, caller string, now time.Time) (*domain.Record, bool, error) {
	return r.execReturning(ctx, id, releaseSQL, id, caller, now)
}

// ForceReleaseLock clears the lease only if it is still exactly observed, so a
// lease renewed after observation is left intact.
func (r *Repo) ForceReleaseLock(ctx context.Context, id uuid.UUID, observed domain.Lock, now time.Time) (*domain.Record, bool, error) {
	return r.execReturning(ctx, id, forceReleaseSQL, id, observed.Holder, observed.AcquiredAt, now)
}

// Review moves the record to status, stamps the reviewer and clears any lease.
// It does not apply when the record is assigned elsewhere or another
// operator holds a live lease.
func (r *Repo) Review(ctx context.Context, id uuid.UUID, reviewer string, status domain.RecordStatus, now, staleBefore time.Time) (*domain.Record, bool, error) {
	return r.execReturning(ctx, id, reviewSQL, id, reviewer, string(status), now, staleBefore)
}

// Assign sets assigned_to (nil unassigns) and clears any lease.
func (r *Repo) Assign(ctx context.Context, id uuid.UUID, assignee *string, now time.Time) (*domain.Record, error) {
	rec, applied, err := r.execReturning(ctx, id, assignSQL, id, assignee, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

// UpdateFields applies params when the record is PENDING, assigned to editor,
// and not held by a live lease of another operator.
func (r *Repo) UpdateFields(ctx context.Context, id uuid.UUID, editor string, params domain.RecordUpdateParams, now, staleBefore time.Time) (*domain.Record, bool, error) {
	b := psql.Update("records").Set("updated_at", now)

	if f := params.PropertyAddress; f != nil {
		b = b.Set("property_address_ct", f.Ciphertext).Set("property_address_token", f.Token)
	}
	if f := params.BorrowerName; f != nil {
		b = b.Set("borrower_name_ct", f.Ciphertext).Set("borrower_name_token", f.Token)
	}
	if f := params.ParcelID; f != nil {
		b = b.Set("parcel_id_ct", f.Ciphertext).Set("parcel_id_token", f.Token)
	}
	if params.LoanAmount != nil {
		b = b.Set("loan_amount", *params.LoanAmount)
	}
	if params.SalePrice != nil {
		b = b.Set("sale_price", *params.SalePrice)
	}
	if params.DownPayment != nil {
		b = b.Set("down_payment", *params.DownPayment)
	}
	if params.TransactionDate != nil {
		b = b.Set("transaction_date", *params.TransactionDate)
	}
	if params.Embedding != nil {
		b = b.Set("embedding", pgvector.NewVector(params.Embedding))
	}

	b = b.Where(squirrel.Eq{
		"id":          id,
		"status":      string(domain.RecordStatusPending),
		"assigned_to": editor,
	}).Where(squirrel.Or{
		squirrel.Eq{"locked_by": nil},
		squirrel.Eq{"locked_by": editor},
		squirrel.Lt{"locked_at": staleBefore},
	}).Suffix(returningClause)

	sql, args, err := b.ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build update record: %w", err)
	}

	return r.execReturning(ctx, id, sql, args...)
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a record by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	sql, args, err := psql.Select(columns...).From("records").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get record: %w", err)
	}
	return r.getOne(ctx, id, sql, args...)
}

// GetByIDForUpdate returns a record and row-locks it until the surrounding
// transaction ends. Must be called inside TxManager.RunInTx; outside one the
// row lock would be released immediately, so the call is rejected.
func (r *Repo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	if !postgres.InTx(ctx) {
		return nil, fmt.Errorf("get record %s for update: no transaction in context", id)
	}
	return r.getOne(ctx, id, getForUpdateSQL, id)
}

// ListExpiredLocks returns locked records whose lease started before
// staleBefore, oldest first.
func (r *Repo) ListExpiredLocks(ctx context.Context, staleBefore time.Time, limit int) ([]domain.Record, error) {
	b := psql.Select(columns...).
		From("records").
		Where(squirrel.NotEq{"locked_by": nil}).
		Where(squirrel.Lt{"locked_at": staleBefore}).
		OrderBy("locked_at ASC", "id ASC").
		Limit(uint64(limit))

	return r.selectMany(ctx, b)
}

// ListAssigned returns records assigned to assignee, optionally filtered by
// status, newest first, together with the total count.
func (r *Repo) ListAssigned(ctx context.Context, assignee string, statuses []domain.RecordStatus, limit, offset int) ([]domain.Record, int, error) {
	where := squirrel.And{squirrel.Eq{"assigned_to": assignee}}
	if len(statuses) > 0 {
		where = append(where, squirrel.Eq{"status": statusStrings(statuses)})
	}

	b := psql.Select(columns...).
		From("records").
		Where(where).
		OrderBy("created_at DESC", "id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	recs, err := r.selectMany(ctx, b)
	if err != nil {
		return nil, 0, err
	}

	total, err := r.count(ctx, where)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (r *Repo) getOne(ctx context.Context, id uuid.UUID, sql string, args ...any) (*domain.Record, error) {
	var row recordRow
	q := postgres.QuerierFromCtx(ctx, r.db)
	if err := pgxscan.Get(ctx, q, &row, sql, args...); err != nil {
		return nil, mapScanError(err, id)
	}
	return row.toDomain(), nil
}

// execReturning runs a conditional write ending in RETURNING. No row means the
// condition did not hold.
func (r *Repo) execReturning(ctx context.Context, id uuid.UUID, sql string, args ...any) (*domain.Record, bool, error) {
	var row recordRow
	q := postgres.QuerierFromCtx(ctx, r.db)
	if err := pgxscan.Get(ctx, q, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, false, nil
		}
		return nil, false, postgres.MapError(err, "record", id)
	}
	return row.toDomain(), true, nil
}

func (r *Repo) selectMany(ctx context.Context, b squirrel.SelectBuilder) ([]domain.Record, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select records: %w", err)
	}

	var rows []recordRow
	q := postgres.QuerierFromCtx(ctx, r.db)
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}

	out := make([]domain.Record, len(rows))
	for i := range rows {
		out[i] = *rows[i].toDomain()
	}
	return out, nil
}

func (r *Repo) count(ctx context.Context, where squirrel.Sqlizer) (int, error) {
	sql, args, err := psql.Select("count(*)").From("records").Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count records: %w", err)
	}

	var total int
	q := postgres.QuerierFromCtx(ctx, r.db)
	if err := q.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return total, nil
}

func mapScanError(err error, id uuid.UUID) error {
	if pgxscan.NotFound(err) {
		err = pgx.ErrNoRows
	}
	return postgres.MapError(err, "record", id)
}

func statusStrings(statuses []domain.RecordStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
