package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// UpdateFields applies a partial edit to a PENDING record assigned to caller.
// The embedding is recomputed only when a sensitive plaintext changed; if
// that fails the edit fails. Unchanged input is a no-op without audit.
func (s *Service) UpdateFields(ctx context.Context, input UpdateFieldsInput, caller domain.Identity) (*RecordView, error) {
	if err := validateCaller(caller); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	id := input.RecordID
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if err := s.check(editPrecondition, rec, caller, now); err != nil {
		return nil, err
	}

	current, err := s.decryptFields(ctx, rec)
	if err != nil {
		return nil, err
	}

	params, changes, next, err := s.buildUpdate(rec, current, input)
	if err != nil {
		return nil, err
	}
	if changes.empty() {
		return s.toView(ctx, rec)
	}

	if next != current {
		params.Embedding, err = s.embed(ctx, next.embeddingText())
		if err != nil {
			return nil, err
		}
	}

	updated, applied, err := s.records.UpdateFields(ctx, id, caller.Username, params, now, s.staleBefore(now))
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	if !applied {
		return nil, s.classifyMiss(ctx, id, caller, editPrecondition)
	}

	s.cache.Invalidate(ctx, id)
	s.appendAudit(ctx, changes.entry(id, caller.Username, domain.AuditActionEdit))

	s.log.InfoContext(ctx, "record updated",
		slog.String("record_id", id.String()),
		slog.String("by", caller.Username),
		slog.Any("fields", changes.fields),
	)

	return s.toView(ctx, updated)
}

// buildUpdate diffs input against the current state. It returns the store
// parameters, the audit change set and the resulting plaintext.
func (s *Service) buildUpdate(rec *domain.Record, current plaintext, input UpdateFieldsInput) (domain.RecordUpdateParams, *changeSet, plaintext, error) {
	var params domain.RecordUpdateParams
	changes := newChangeSet()
	next := current

	sensitive := []struct {
		name   string
		in     *string
		cur    string
		stored domain.EncryptedField
		dst    **domain.EncryptedField
		plain  *string
	}{
		{domain.FieldPropertyAddress, input.PropertyAddress, current.PropertyAddress, rec.PropertyAddress, &params.PropertyAddress, &next.PropertyAddress},
		{domain.FieldBorrowerName, input.BorrowerName, current.BorrowerName, rec.BorrowerName, &params.BorrowerName, &next.BorrowerName},
		{domain.FieldParcelID, input.ParcelID, current.ParcelID, rec.ParcelID, &params.ParcelID, &next.ParcelID},
	}
	for _, f := range sensitive {
		if f.in == nil {
			continue
		}
		v := strings.TrimSpace(*f.in)
		if v == f.cur {
			continue
		}
		enc, err := s.codec.Encrypt(v)
		if err != nil {
			return params, nil, next, fmt.Errorf("encrypt %s: %w", f.name, err)
		}
		*f.dst = &enc
		*f.plain = v
		changes.add(f.name, f.stored.Ciphertext, enc.Ciphertext)
	}

	amounts := []struct {
		name string
		in   *float64
		cur  float64
		dst  **float64
	}{
		{"loan_amount", input.LoanAmount, rec.LoanAmount, &params.LoanAmount},
		{"sale_price", input.SalePrice, rec.SalePrice, &params.SalePrice},
		{"down_payment", input.DownPayment, rec.DownPayment, &params.DownPayment},
	}
	for _, a := range amounts {
		if a.in == nil || *a.in == a.cur {
			continue
		}
		v := *a.in
		*a.dst = &v
		changes.add(a.name, a.cur, v)
	}

	if d := input.TransactionDate; d != nil && dateValue(*d) != dateValue(rec.TransactionDate) {
		v := *d
		params.TransactionDate = &v
		changes.add("transaction_date", dateValue(rec.TransactionDate), dateValue(v))
	}

	return params, changes, next, nil
}

type precondition func(rec *domain.Record, caller domain.Identity, now time.Time, ttl time.Duration) error

// check runs cond and counts lease conflicts.
func (s *Service) check(cond precondition, rec *domain.Record, caller domain.Identity, now time.Time) error {
	err := cond(rec, caller, now, s.cfg.LockTTL)
	if errors.Is(err, domain.ErrLocked) {
		s.metrics.IncLockConflict("locked")
	}
	return err
}

// classifyMiss re-reads a record after a conditional edit or review did not
// apply and reports the precondition that now fails. If none does, the write
// lost a race to another operator's lease.
func (s *Service) classifyMiss(ctx context.Context, id uuid.UUID, caller domain.Identity, cond precondition) error {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.check(cond, rec, caller, s.clock()); err != nil {
		return err
	}
	s.metrics.IncLockConflict("locked")
	return fmt.Errorf("record %s: %w", id, domain.ErrLocked)
}
