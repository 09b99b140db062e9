package record

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// History returns a record's audit entries, newest first.
func (s *Service) History(ctx context.Context, id uuid.UUID, limit int, caller domain.Identity) ([]domain.AuditEntry, error) {
	if err := validateCaller(caller); err != nil {
		return nil, err
	}

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardVisible(rec, caller); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	entries, err := s.audit.ListByRecord(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}
