package record

import (
	"context"
	"fmt"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

var defaultQueueStatuses = []domain.RecordStatus{domain.RecordStatusPending, domain.RecordStatusFlagged}

// ListAssigned returns a page of an operator's queue, newest first. Agents
// always get their own queue; admins must name the assignee.
func (s *Service) ListAssigned(ctx context.Context, input ListAssignedInput, caller domain.Identity) (*ListResult, error) {
	if err := validateCaller(caller); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	assignee := caller.Username
	if input.Assignee != nil && *input.Assignee != caller.Username {
		if caller.Role != domain.RoleAdmin {
			return nil, fmt.Errorf("queue of %s: %w", *input.Assignee, domain.ErrForbidden)
		}
		assignee = *input.Assignee
	}

	statuses := input.Statuses
	if len(statuses) == 0 {
		statuses = defaultQueueStatuses
	}
	limit := s.clampLimit(input.Limit)

	recs, total, err := s.records.ListAssigned(ctx, assignee, statuses, limit, input.Offset)
	if err != nil {
		return nil, fmt.Errorf("list assigned: %w", err)
	}

	views, err := s.toViews(ctx, recs)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Total:   total,
		Records: views,
		HasMore: input.Offset+len(recs) < total,
	}, nil
}

// clampLimit applies the default and maximum page sizes.
func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultSearchLimit
	}
	if limit > s.cfg.MaxSearchLimit {
		return s.cfg.MaxSearchLimit
	}
	return limit
}
