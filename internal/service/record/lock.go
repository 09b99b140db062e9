package record

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// Acquire grants caller the editing lease on a record. Re-acquiring an own
// lease renews it; an expired lease of anyone is superseded.
func (s *Service) Acquire(ctx context.Context, id uuid.UUID, caller domain.Identity) (*RecordView, error) {
	if err := validateCaller(caller); err != nil {
		return nil, err
	}

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if err := s.acquirePrecondition(rec, caller, now); err != nil {
		return nil, err
	}

	updated, prev, applied, err := s.records.AcquireLock(ctx, id, caller.Username, now, s.staleBefore(now))
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !applied {
		// The row changed between the read and the conditional write.
		return nil, s.classifyAcquireMiss(ctx, id, caller)
	}

	s.cache.Invalidate(ctx, id)
	s.appendAudit(ctx, LockChanges(id, caller.Username, prev, updated.Lock))

	attrs := []any{slog.String("record_id", id.String()), slog.String("holder", caller.Username)}
	if prev != nil && prev.Holder != caller.Username {
		attrs = append(attrs, slog.String("superseded", prev.Holder))
	}
	s.log.InfoContext(ctx, "lock acquired", attrs...)

	return s.toView(ctx, updated)
}

func (s *Service) acquirePrecondition(rec *domain.Record, caller domain.Identity, now time.Time) error {
	if err := guardAssigned(rec, caller); err != nil {
		return err
	}
	if rec.Status != domain.RecordStatusPending {
		return fmt.Errorf("record %s is %s: %w", rec.ID, rec.Status, domain.ErrNotEditable)
	}
	if rec.LockedByOther(caller.Username, now, s.cfg.LockTTL) {
		s.metrics.IncLockConflict("already_locked")
		return fmt.Errorf("record %s: %w", rec.ID, domain.ErrAlreadyLocked)
	}
	return nil
}

// classifyAcquireMiss re-reads the record after a conditional write did not
// apply. A record that now looks acquirable lost a race to a concurrent
// winner, which is reported as AlreadyLocked.
func (s *Service) classifyAcquireMiss(ctx context.Context, id uuid.UUID, caller domain.Identity) error {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.acquirePrecondition(rec, caller, s.clock()); err != nil {
		return err
	}
	s.metrics.IncLockConflict("already_locked")
	return fmt.Errorf("record %s: %w", id, domain.ErrAlreadyLocked)
}

// Release clears the lease on a record. The caller must be the holder or the
// assignee. Releasing an unlocked record succeeds without a mutation.
func (s *Service) Release(ctx context.Context, id uuid.UUID, caller domain.Identity) (*RecordView, error) {
	if err := validateCaller(caller); err != nil {
		return nil, err
	}

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	isHolder := rec.Lock != nil && rec.Lock.Holder == caller.Username
	if !isHolder && !rec.IsAssignedTo(caller.Username) {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotAssigned)
	}
	if rec.Lock == nil {
		return s.toView(ctx, rec)
	}

	updated, applied, err := s.records.ReleaseLock(ctx, id, caller.Username, s.clock())
	if err != nil {
		return nil, fmt.Errorf("release lock: %w", err)
	}
	if !applied {
		// Someone else cleared or reassigned it first; report current state.
		current, getErr := s.records.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current.Lock != nil {
			return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotAssigned)
		}
		return s.toView(ctx, current)
	}

	s.cache.Invalidate(ctx, id)
	s.appendAudit(ctx, LockChanges(id, caller.Username, rec.Lock, nil))

	s.log.InfoContext(ctx, "lock released",
		slog.String("record_id", id.String()),
		slog.String("by", caller.Username),
		slog.String("mode", string(domain.ReleaseManual)),
	)

	return s.toView(ctx, updated)
}

// ForceRelease clears a lease without an ownership check, only if it is still
// exactly observed. applied is false when the lease changed meanwhile. It is
// meant for the reclamation sweep, which runs it inside its own transaction
// and therefore appends the audit entry and invalidates the cache itself
// after commit.
func (s *Service) ForceRelease(ctx context.Context, id uuid.UUID, observed domain.Lock) (*domain.Record, bool, error) {
	if observed.Holder == "" || observed.AcquiredAt.IsZero() {
		return nil, false, domain.NewValidationError("observed", "lock required")
	}

	rec, applied, err := s.records.ForceReleaseLock(ctx, id, observed, s.clock())
	if err != nil {
		return nil, false, fmt.Errorf("force release lock: %w", err)
	}
	if applied {
		s.log.InfoContext(ctx, "lock released",
			slog.String("record_id", id.String()),
			slog.String("holder", observed.Holder),
			slog.String("mode", string(domain.ReleaseForced)),
		)
	}
	return rec, applied, nil
}
