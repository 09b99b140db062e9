package record

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// AssignRecord hands a record to target, clearing any lease. The old and new
// assignees' load counters move in the same transaction as assigned_to.
func (s *Service) AssignRecord(ctx context.Context, id uuid.UUID, target string, caller domain.Identity) (*RecordView, error) {
	if err := validateCaller(caller); err != nil {
		return nil, err
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, domain.NewValidationError("target", "required")
	}

	var before, after *domain.Record
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		before, err = s.records.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if before.IsAssignedTo(target) {
			after = before
			return nil
		}

		if _, err := s.operators.GetByUsername(txCtx, target); err != nil {
			return fmt.Errorf("assignee %s: %w", target, err)
		}

		after, err = s.records.Assign(txCtx, id, &target, s.clock())
		if err != nil {
			return fmt.Errorf("assign record: %w", err)
		}
		return MoveAssignment(txCtx, s.operators, before.AssignedTo, &target)
	})
	if err != nil {
		return nil, err
	}

	if after != before {
		s.cache.Invalidate(ctx, id)

		c := newChangeSet()
		c.add(domain.FieldAssignedTo, strValue(before.AssignedTo), target)
		c.lockChanges(before.Lock, after.Lock)
		s.appendAudit(ctx, c.entry(id, caller.Username, domain.AuditActionEdit))

		s.log.InfoContext(ctx, "record assigned",
			slog.String("record_id", id.String()),
			slog.String("assignee", target),
			slog.String("by", caller.Username),
		)
	}

	return s.toView(ctx, after)
}
