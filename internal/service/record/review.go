package record

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// Review records caller's decision on a record and releases any lease. A
// reviewed record may be reviewed again; it is not editable afterwards.
func (s *Service) Review(ctx context.Context, id uuid.UUID, status domain.RecordStatus, caller domain.Identity) (*RecordView, error) {
	if err := validateCaller(caller); err != nil {
		return nil, err
	}
	if !status.IsReviewOutcome() {
		return nil, fmt.Errorf("status %q: %w", status, domain.ErrInvalidStatus)
	}

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if err := s.check(reviewPrecondition, rec, caller, now); err != nil {
		return nil, err
	}

	updated, applied, err := s.records.Review(ctx, id, caller.Username, status, now, s.staleBefore(now))
	if err != nil {
		return nil, fmt.Errorf("review record: %w", err)
	}
	if !applied {
		return nil, s.classifyMiss(ctx, id, caller, reviewPrecondition)
	}

	s.cache.Invalidate(ctx, id)

	c := newChangeSet()
	if rec.Status != updated.Status {
		c.add(domain.FieldStatus, string(rec.Status), string(updated.Status))
	}
	if !equalStr(rec.ReviewedBy, updated.ReviewedBy) {
		c.add("reviewed_by", strValue(rec.ReviewedBy), strValue(updated.ReviewedBy))
	}
	c.add("reviewed_at", timeValue(rec.ReviewedAt), timeValue(updated.ReviewedAt))
	c.lockChanges(rec.Lock, updated.Lock)
	s.appendAudit(ctx, c.entry(id, caller.Username, domain.ReviewAction(status)))

	s.log.InfoContext(ctx, "record reviewed",
		slog.String("record_id", id.String()),
		slog.String("status", string(status)),
		slog.String("by", caller.Username),
	)

	return s.toView(ctx, updated)
}
