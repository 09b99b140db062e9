package recordcache

import (
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

type cachedField struct {
	Ciphertext string `json:"ct"`
	Token      string `json:"tok"`
}

type cachedLock struct {
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
}

type cachedRecord struct {
	ID              uuid.UUID   `json:"id"`
	PropertyAddress cachedField `json:"property_address"`
	BorrowerName    cachedField `json:"borrower_name"`
	ParcelID        cachedField `json:"parcel_id"`
	LoanAmount      float64     `json:"loan_amount"`
	SalePrice       float64     `json:"sale_price"`
	DownPayment     float64     `json:"down_payment"`
	TransactionDate time.Time   `json:"transaction_date"`
	Status          string      `json:"status"`
	AssignedTo      *string     `json:"assigned_to,omitempty"`
	EnteredBy       string      `json:"entered_by"`
	Lock            *cachedLock `json:"lock,omitempty"`
	ReviewedBy      *string     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time  `json:"reviewed_at,omitempty"`
	BatchID         *uuid.UUID  `json:"batch_id,omitempty"`
	DocumentPath    *string     `json:"document_path,omitempty"`
	DocumentName    *string     `json:"document_name,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func fromDomain(r *domain.Record) cachedRecord {
	e := cachedRecord{
		ID:              r.ID,
		PropertyAddress: cachedField(r.PropertyAddress),
		BorrowerName:    cachedField(r.BorrowerName),
		ParcelID:        cachedField(r.ParcelID),
		LoanAmount:      r.LoanAmount,
		SalePrice:       r.SalePrice,
		DownPayment:     r.DownPayment,
		TransactionDate: r.TransactionDate,
		Status:          string(r.Status),
		AssignedTo:      r.AssignedTo,
		EnteredBy:       r.EnteredBy,
		ReviewedBy:      r.ReviewedBy,
		ReviewedAt:      r.ReviewedAt,
		BatchID:         r.BatchID,
		DocumentPath:    r.DocumentPath,
		DocumentName:    r.DocumentName,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.Lock != nil {
		e.Lock = &cachedLock{Holder: r.Lock.Holder, AcquiredAt: r.Lock.AcquiredAt}
	}
	return e
}

func (e cachedRecord) toDomain() *domain.Record {
	r := &domain.Record{
		ID:              e.ID,
		PropertyAddress: domain.EncryptedField(e.PropertyAddress),
		BorrowerName:    domain.EncryptedField(e.BorrowerName),
		ParcelID:        domain.EncryptedField(e.ParcelID),
		LoanAmount:      e.LoanAmount,
		SalePrice:       e.SalePrice,
		DownPayment:     e.DownPayment,
		TransactionDate: e.TransactionDate,
		Status:          domain.RecordStatus(e.Status),
		AssignedTo:      e.AssignedTo,
		EnteredBy:       e.EnteredBy,
		ReviewedBy:      e.ReviewedBy,
		ReviewedAt:      e.ReviewedAt,
		BatchID:         e.BatchID,
		DocumentPath:    e.DocumentPath,
		DocumentName:    e.DocumentName,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
	if e.Lock != nil {
		r.Lock = &domain.Lock{Holder: e.Lock.Holder, AcquiredAt: e.Lock.AcquiredAt}
	}
	return r
}
