package record

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// RecordView is a record with its sensitive fields decrypted.
type RecordView struct {
	ID              uuid.UUID
	PropertyAddress string
	BorrowerName    string
	ParcelID        string
	LoanAmount      float64
	SalePrice       float64
	DownPayment     float64
	TransactionDate time.Time
	Status          domain.RecordStatus
	AssignedTo      *string
	EnteredBy       string
	LockedBy        *string
	LockedAt        *time.Time
	ReviewedBy      *string
	ReviewedAt      *time.Time
	BatchID         *uuid.UUID
	DocumentPath    *string
	DocumentName    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SearchResult is one page of decrypted records.
type SearchResult struct {
	Total   int
	Records []RecordView
	HasMore bool
}

// ListResult is one page of an operator's queue.
type ListResult = SearchResult

// plaintext holds the three decrypted sensitive values of a record.
type plaintext struct {
	PropertyAddress string
	BorrowerName    string
	ParcelID        string
}

// embeddingText is the text a record's embedding is computed from.
func (p plaintext) embeddingText() string {
	return p.PropertyAddress + " " + p.BorrowerName + " " + p.ParcelID
}

// decryptFields decrypts all sensitive fields of rec. A failure is logged at
// ERROR, counted, and returned; it is never skipped.
func (s *Service) decryptFields(ctx context.Context, rec *domain.Record) (plaintext, error) {
	var p plaintext
	fields := []struct {
		name string
		src  domain.EncryptedField
		dst  *string
	}{
		{domain.FieldPropertyAddress, rec.PropertyAddress, &p.PropertyAddress},
		{domain.FieldBorrowerName, rec.BorrowerName, &p.BorrowerName},
		{domain.FieldParcelID, rec.ParcelID, &p.ParcelID},
	}
	for _, f := range fields {
		v, err := s.codec.Decrypt(f.src.Ciphertext)
		if err != nil {
			s.metrics.IncDecryptionFailure()
			s.log.ErrorContext(ctx, "field decryption failed",
				slog.String("record_id", rec.ID.String()),
				slog.String("field", f.name),
				slog.String("error", err.Error()),
			)
			return plaintext{}, fmt.Errorf("record %s field %s: %w", rec.ID, f.name, err)
		}
		*f.dst = v
	}
	return p, nil
}

func (s *Service) toView(ctx context.Context, rec *domain.Record) (*RecordView, error) {
	p, err := s.decryptFields(ctx, rec)
	if err != nil {
		return nil, err
	}

	v := &RecordView{
		ID:              rec.ID,
		PropertyAddress: p.PropertyAddress,
		BorrowerName:    p.BorrowerName,
		ParcelID:        p.ParcelID,
		LoanAmount:      rec.LoanAmount,
		SalePrice:       rec.SalePrice,
		DownPayment:     rec.DownPayment,
		TransactionDate: rec.TransactionDate,
		Status:          rec.Status,
		AssignedTo:      rec.AssignedTo,
		EnteredBy:       rec.EnteredBy,
		ReviewedBy:      rec.ReviewedBy,
		ReviewedAt:      rec.ReviewedAt,
		BatchID:         rec.BatchID,
		DocumentPath:    rec.DocumentPath,
		DocumentName:    rec.DocumentName,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
	if rec.Lock != nil {
		holder, at := rec.Lock.Holder, rec.Lock.AcquiredAt
		v.LockedBy, v.LockedAt = &holder, &at
	}
	return v, nil
}

func (s *Service) toViews(ctx context.Context, recs []domain.Record) ([]RecordView, error) {
	out := make([]RecordView, 0, len(recs))
	for i := range recs {
		v, err := s.toView(ctx, &recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}
