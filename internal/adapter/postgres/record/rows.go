package record

import (
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// recordRow mirrors the records table for scany scanning. The embedding
// column is never read back.
type recordRow struct {
	ID                   uuid.UUID  `db:"id"`
	PropertyAddressCT    string     `db:"property_address_ct"`
	PropertyAddressToken string     `db:"property_address_token"`
	BorrowerNameCT       string     `db:"borrower_name_ct"`
	BorrowerNameToken    string     `db:"borrower_name_token"`
	ParcelIDCT           string     `db:"parcel_id_ct"`
	ParcelIDToken        string     `db:"parcel_id_token"`
	LoanAmount           float64    `db:"loan_amount"`
	SalePrice            float64    `db:"sale_price"`
	DownPayment          float64    `db:"down_payment"`
	TransactionDate      time.Time  `db:"transaction_date"`
	Status               string     `db:"status"`
	AssignedTo           *string    `db:"assigned_to"`
	EnteredBy            string     `db:"entered_by"`
	LockedBy             *string    `db:"locked_by"`
	LockedAt             *time.Time `db:"locked_at"`
	ReviewedBy           *string    `db:"reviewed_by"`
	ReviewedAt           *time.Time `db:"reviewed_at"`
	BatchID              *uuid.UUID `db:"batch_id"`
	DocumentPath         *string    `db:"document_path"`
	DocumentName         *string    `db:"document_name"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

func (r recordRow) toDomain() *domain.Record {
	return &domain.Record{
		ID:              r.ID,
		PropertyAddress: domain.EncryptedField{Ciphertext: r.PropertyAddressCT, Token: r.PropertyAddressToken},
		BorrowerName:    domain.EncryptedField{Ciphertext: r.BorrowerNameCT, Token: r.BorrowerNameToken},
		ParcelID:        domain.EncryptedField{Ciphertext: r.ParcelIDCT, Token: r.ParcelIDToken},
		LoanAmount:      r.LoanAmount,
		SalePrice:       r.SalePrice,
		DownPayment:     r.DownPayment,
		TransactionDate: r.TransactionDate,
		Status:          domain.RecordStatus(r.Status),
		AssignedTo:      r.AssignedTo,
		EnteredBy:       r.EnteredBy,
		Lock:            toLock(r.LockedBy, r.LockedAt),
		ReviewedBy:      r.ReviewedBy,
		ReviewedAt:      r.ReviewedAt,
		BatchID:         r.BatchID,
		DocumentPath:    r.DocumentPath,
		DocumentName:    r.DocumentName,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// toLock returns nil unless both lease columns are set.
func toLock(holder *string, at *time.Time) *domain.Lock {
	if holder == nil || at == nil {
		return nil
	}
	return &domain.Lock{Holder: *holder, AcquiredAt: *at}
}
