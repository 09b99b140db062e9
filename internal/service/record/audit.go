package record

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// appendAudit writes entry after the mutation it describes is durable.
// Failures are logged without payload and counted; they never undo the
// mutation.
func (s *Service) appendAudit(ctx context.Context, entry domain.AuditEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock()
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.metrics.IncAuditAppendFailure()
		s.log.ErrorContext(ctx, "audit append failed",
			slog.String("record_id", entry.RecordID.String()),
			slog.String("action", string(entry.Action)),
			slog.String("actor", entry.Actor),
			slog.String("error", err.Error()),
		)
	}
}

// changeSet accumulates the fields a mutation changed.
type changeSet struct {
	fields []string
	old    map[string]any
	new    map[string]any
}

func newChangeSet() *changeSet {
	return &changeSet{old: map[string]any{}, new: map[string]any{}}
}

func (c *changeSet) add(field string, oldV, newV any) {
	c.fields = append(c.fields, field)
	c.old[field] = oldV
	c.new[field] = newV
}

func (c *changeSet) empty() bool { return len(c.fields) == 0 }

func (c *changeSet) entry(recordID uuid.UUID, actor string, action domain.AuditAction) domain.AuditEntry {
	return domain.AuditEntry{
		RecordID:   recordID,
		Actor:      actor,
		Action:     action,
		FieldNames: c.fields,
		OldValue:   c.old,
		NewValue:   c.new,
	}
}

// lockChanges records the lock columns that differ between before and after.
func (c *changeSet) lockChanges(before, after *domain.Lock) {
	var oldHolder, newHolder *string
	var oldAt, newAt *time.Time
	if before != nil {
		oldHolder, oldAt = &before.Holder, &before.AcquiredAt
	}
	if after != nil {
		newHolder, newAt = &after.Holder, &after.AcquiredAt
	}
	if !equalStr(oldHolder, newHolder) {
		c.add(domain.FieldLockedBy, strValue(oldHolder), strValue(newHolder))
	}
	if !equalTime(oldAt, newAt) {
		c.add(domain.FieldLockedAt, timeValue(oldAt), timeValue(newAt))
	}
}

// LockChanges returns the audit entry describing a lease transition.
func LockChanges(recordID uuid.UUID, actor string, before, after *domain.Lock) domain.AuditEntry {
	c := newChangeSet()
	c.lockChanges(before, after)
	return c.entry(recordID, actor, domain.AuditActionEdit)
}

// AssignmentChange returns the audit entry describing a reassignment.
func AssignmentChange(recordID uuid.UUID, actor string, before, after *string) domain.AuditEntry {
	c := newChangeSet()
	c.add(domain.FieldAssignedTo, strValue(before), strValue(after))
	return c.entry(recordID, actor, domain.AuditActionEdit)
}

func equalStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func strValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func timeValue(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC().Format(time.RFC3339Nano)
}

func dateValue(t time.Time) string {
	return t.Format(time.DateOnly)
}
