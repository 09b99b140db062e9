package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingDimensions is the fixed dimensionality of record embeddings.
const EmbeddingDimensions = 384

// SystemActor is the audit actor used for scheduler-driven mutations.
const SystemActor = "system"

// Names of the sensitive record fields, as they appear in audit entries.
const (
	FieldPropertyAddress = "property_address"
	FieldBorrowerName    = "borrower_name"
	FieldParcelID        = "parcel_id"
	FieldAssignedTo      = "assigned_to"
	FieldLockedBy        = "locked_by"
	FieldLockedAt        = "locked_at"
	FieldStatus          = "status"
)

// EncryptedField is the at-rest form of a sensitive value: an authenticated
// ciphertext plus a deterministic keyed token used for equality search.
type EncryptedField struct {
	Ciphertext string
	Token      string
}

// IsZero reports whether the field carries no value.
func (f EncryptedField) IsZero() bool {
	return f.Ciphertext == "" && f.Token == ""
}

// Lock is a time-bounded exclusive editing right on a record.
// Holder and AcquiredAt are always set or cleared together.
type Lock struct {
	Holder     string
	AcquiredAt time.Time
}

// IsExpired reports whether the lease is older than ttl at now.
func (l Lock) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(l.AcquiredAt) > ttl
}

// Record is a single property/loan row awaiting human review.
type Record struct {
	ID uuid.UUID

	PropertyAddress EncryptedField
	BorrowerName    EncryptedField
	ParcelID        EncryptedField

	LoanAmount      float64
	SalePrice       float64
	DownPayment     float64
	TransactionDate time.Time

	Status     RecordStatus
	AssignedTo *string
	EnteredBy  string
	Lock       *Lock

	ReviewedBy *string
	ReviewedAt *time.Time

	BatchID      *uuid.UUID
	DocumentPath *string
	DocumentName *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAssignedTo reports whether the record is assigned to username.
func (r *Record) IsAssignedTo(username string) bool {
	return r.AssignedTo != nil && *r.AssignedTo == username
}

// LiveLock returns the lock if it exists and has not expired at now.
func (r *Record) LiveLock(now time.Time, ttl time.Duration) (Lock, bool) {
	if r.Lock == nil || r.Lock.IsExpired(now, ttl) {
		return Lock{}, false
	}
	return *r.Lock, true
}

// LockedByOther reports whether a live lock is held by someone other than username.
func (r *Record) LockedByOther(username string, now time.Time, ttl time.Duration) bool {
	l, ok := r.LiveLock(now, ttl)
	return ok && l.Holder != username
}

// Identity is the already-authenticated caller of a record operation.
type Identity struct {
	Username string
	Role     Role
}

// Embedding is a fixed-length semantic vector.
type Embedding []float32

// RecordUpdateParams holds the optional field changes of an edit.
// A nil pointer leaves the column untouched. Embedding is non-nil only when a
// sensitive plaintext changed.
type RecordUpdateParams struct {
	PropertyAddress *EncryptedField
	BorrowerName    *EncryptedField
	ParcelID        *EncryptedField
	LoanAmount      *float64
	SalePrice       *float64
	DownPayment     *float64
	TransactionDate *time.Time
	Embedding       Embedding
}

// IsEmpty reports whether no field is being changed.
func (p RecordUpdateParams) IsEmpty() bool {
	return p.PropertyAddress == nil && p.BorrowerName == nil && p.ParcelID == nil &&
		p.LoanAmount == nil && p.SalePrice == nil && p.DownPayment == nil &&
		p.TransactionDate == nil && p.Embedding == nil
}
