// Package operator stores the operators known to the workload balancer and
// their derived assignment counters.
package operator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	postgres "github.com/heartmarshall/recordreview-backend/internal/adapter/postgres"
	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// Repo provides operator persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new operator repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

const upsertSQL = `
INSERT INTO operators (username, role)
VALUES ($1, $2)
ON CONFLICT (username) DO UPDATE SET role = EXCLUDED.role`

// The self-join keeps the pre-update counter visible to RETURNING.
const reconcileSQL = `
WITH actual AS (
    SELECT assigned_to AS username, count(*) AS n
    FROM records
    WHERE assigned_to IS NOT NULL
    GROUP BY assigned_to
)
UPDATE operators o
SET assigned_count = COALESCE(a.n, 0)
FROM operators prev
LEFT JOIN actual a ON a.username = prev.username
WHERE o.username = prev.username
  AND o.assigned_count <> COALESCE(a.n, 0)
RETURNING o.username, prev.assigned_count, o.assigned_count`

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Upsert registers an operator or updates its role. The counter is untouched.
func (r *Repo) Upsert(ctx context.Context, username string, role domain.Role) error {
	q := postgres.QuerierFromCtx(ctx, r.db)
	if _, err := q.Exec(ctx, upsertSQL, username, string(role)); err != nil {
		return postgres.MapError(err, "operator", username)
	}
	return nil
}

// AdjustAssigned adds delta to the operator's counter, never going below zero.
// Call it in the same transaction as the assigned_to change it mirrors.
func (r *Repo) AdjustAssigned(ctx context.Context, username string, delta int) error {
	sql, args, err := psql.Update("operators").
		Set("assigned_count", squirrel.Expr("GREATEST(assigned_count + ?, 0)", delta)).
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build adjust operator: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "operator", username)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("operator %s: %w", username, domain.ErrNotFound)
	}
	return nil
}

// Reconcile recomputes every counter from the records table and returns the
// counters that had drifted.
func (r *Repo) Reconcile(ctx context.Context) ([]domain.CounterDrift, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)
	rows, err := q.Query(ctx, reconcileSQL)
	if err != nil {
		return nil, fmt.Errorf("reconcile operators: %w", err)
	}
	defer rows.Close()

	var drifts []domain.CounterDrift
	for rows.Next() {
		var d domain.CounterDrift
		if err := rows.Scan(&d.Username, &d.Stored, &d.Actual); err != nil {
			return nil, fmt.Errorf("scan drift: %w", err)
		}
		drifts = append(drifts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reconcile operators: %w", err)
	}
	return drifts, nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByUsername returns a single operator.
func (r *Repo) GetByUsername(ctx context.Context, username string) (*domain.Operator, error) {
	sql, args, err := selectOperators().Where(squirrel.Eq{"username": username}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get operator: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	op, err := scanOperator(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, postgres.MapError(err, "operator", username)
	}
	return op, nil
}

// LeastLoaded returns the operator of role with the smallest counter, ties
// broken by lowest username, skipping exclude. It returns nil, nil when no
// operator qualifies.
func (r *Repo) LeastLoaded(ctx context.Context, role domain.Role, exclude []string) (*domain.Operator, error) {
	b := selectOperators().Where(squirrel.Eq{"role": string(role)})
	if len(exclude) > 0 {
		b = b.Where(squirrel.NotEq{"username": exclude})
	}
	sql, args, err := b.OrderBy("assigned_count ASC", "username ASC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build least loaded: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	op, err := scanOperator(q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("least loaded %s: %w", role, err)
	}
	return op, nil
}

func selectOperators() squirrel.SelectBuilder {
	return psql.Select("username", "role", "assigned_count", "created_at").From("operators")
}

func scanOperator(row pgx.Row) (*domain.Operator, error) {
	var (
		op        domain.Operator
		role      string
		createdAt time.Time
	)
	if err := row.Scan(&op.Username, &role, &op.AssignedCount, &createdAt); err != nil {
		return nil, err
	}
	op.Role = domain.Role(role)
	op.CreatedAt = createdAt
	return &op, nil
}
