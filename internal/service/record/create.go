package record

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// CreateRecord encrypts the sensitive fields, embeds their plaintext and
// stores a new PENDING record entered by caller. When an assignee is given the
// operator's load counter moves in the same transaction.
func (s *Service) CreateRecord(ctx context.Context, input CreateRecordInput, caller domain.Identity) (*RecordView, error) {
	if err := validateCaller(caller); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	plain := plaintext{
		PropertyAddress: strings.TrimSpace(input.PropertyAddress),
		BorrowerName:    strings.TrimSpace(input.BorrowerName),
		ParcelID:        strings.TrimSpace(input.ParcelID),
	}

	emb, err := s.embed(ctx, plain.embeddingText())
	if err != nil {
		return nil, err
	}

	addr, err := s.codec.Encrypt(plain.PropertyAddress)
	if err != nil {
		return nil, fmt.Errorf("encrypt %s: %w", domain.FieldPropertyAddress, err)
	}
	name, err := s.codec.Encrypt(plain.BorrowerName)
	if err != nil {
		return nil, fmt.Errorf("encrypt %s: %w", domain.FieldBorrowerName, err)
	}
	parcel, err := s.codec.Encrypt(plain.ParcelID)
	if err != nil {
		return nil, fmt.Errorf("encrypt %s: %w", domain.FieldParcelID, err)
	}

	now := s.clock()
	rec := &domain.Record{
		ID:              uuid.New(),
		PropertyAddress: addr,
		BorrowerName:    name,
		ParcelID:        parcel,
		LoanAmount:      input.LoanAmount,
		SalePrice:       input.SalePrice,
		DownPayment:     input.DownPayment,
		TransactionDate: input.TransactionDate,
		Status:          domain.RecordStatusPending,
		EnteredBy:       caller.Username,
		BatchID:         input.BatchID,
		DocumentPath:    input.DocumentPath,
		DocumentName:    input.DocumentName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if input.AssignedTo != nil {
		assignee := strings.TrimSpace(*input.AssignedTo)
		rec.AssignedTo = &assignee
	}

	var created *domain.Record
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var createErr error
		created, createErr = s.records.Create(txCtx, rec, emb)
		if createErr != nil {
			return fmt.Errorf("create record: %w", createErr)
		}
		if rec.AssignedTo != nil {
			if adjErr := s.operators.AdjustAssigned(txCtx, *rec.AssignedTo, 1); adjErr != nil {
				return fmt.Errorf("adjust assigned count: %w", adjErr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, createEntry(created, caller.Username))

	s.log.InfoContext(ctx, "record created",
		slog.String("record_id", created.ID.String()),
		slog.String("entered_by", caller.Username),
	)

	return s.toView(ctx, created)
}

// createEntry lists every populated field; sensitive values as ciphertext.
func createEntry(rec *domain.Record, actor string) domain.AuditEntry {
	c := newChangeSet()
	c.add(domain.FieldPropertyAddress, nil, rec.PropertyAddress.Ciphertext)
	c.add(domain.FieldBorrowerName, nil, rec.BorrowerName.Ciphertext)
	c.add(domain.FieldParcelID, nil, rec.ParcelID.Ciphertext)
	c.add("loan_amount", nil, rec.LoanAmount)
	c.add("sale_price", nil, rec.SalePrice)
	c.add("down_payment", nil, rec.DownPayment)
	c.add("transaction_date", nil, dateValue(rec.TransactionDate))
	c.add(domain.FieldStatus, nil, string(rec.Status))
	if rec.AssignedTo != nil {
		c.add(domain.FieldAssignedTo, nil, *rec.AssignedTo)
	}

	e := c.entry(rec.ID, actor, domain.AuditActionCreate)
	e.OldValue = nil
	return e
}
