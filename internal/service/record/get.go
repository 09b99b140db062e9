package record

import (
	"context"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// GetRecord returns the decrypted record if caller may view it.
func (s *Service) GetRecord(ctx context.Context, id uuid.UUID, caller domain.Identity) (*RecordView, error) {
	if err := validateCaller(caller); err != nil {
		return nil, err
	}

	rec, err := s.cachedRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardVisible(rec, caller); err != nil {
		return nil, err
	}
	return s.toView(ctx, rec)
}

// cachedRecord reads through the record cache. Mutations never use it: they
// re-read the row so their preconditions see committed state. A row read
// while a mutation commits is not cached once that mutation invalidates.
func (s *Service) cachedRecord(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	rec, gen, ok := s.cache.Get(ctx, id)
	if ok {
		return rec, nil
	}
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, rec, gen)
	return rec, nil
}
