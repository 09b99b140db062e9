package record

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// CreateRecordInput holds the plaintext fields of a new record.
type CreateRecordInput struct {
	PropertyAddress string
	BorrowerName    string
	ParcelID        string
	LoanAmount      float64
	SalePrice       float64
	DownPayment     float64
	TransactionDate time.Time
	AssignedTo      *string
	BatchID         *uuid.UUID
	DocumentPath    *string
	DocumentName    *string
}

// Validate checks all fields and collects all errors.
func (i CreateRecordInput) Validate() error {
	var errs []domain.FieldError

	errs = requireText(errs, domain.FieldPropertyAddress, i.PropertyAddress)
	errs = requireText(errs, domain.FieldBorrowerName, i.BorrowerName)
	errs = requireText(errs, domain.FieldParcelID, i.ParcelID)
	errs = nonNegative(errs, "loan_amount", i.LoanAmount)
	errs = nonNegative(errs, "sale_price", i.SalePrice)
	errs = nonNegative(errs, "down_payment", i.DownPayment)

	if i.TransactionDate.IsZero() {
		errs = append(errs, domain.FieldError{Field: "transaction_date", Message: "required"})
	}
	if i.AssignedTo != nil && strings.TrimSpace(*i.AssignedTo) == "" {
		errs = append(errs, domain.FieldError{Field: domain.FieldAssignedTo, Message: "must not be blank"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// UpdateFieldsInput holds a partial edit. A nil field is left unchanged.
type UpdateFieldsInput struct {
	RecordID        uuid.UUID
	PropertyAddress *string
	BorrowerName    *string
	ParcelID        *string
	LoanAmount      *float64
	SalePrice       *float64
	DownPayment     *float64
	TransactionDate *time.Time
}

// Validate checks all fields and collects all errors.
func (i UpdateFieldsInput) Validate() error {
	var errs []domain.FieldError

	if i.RecordID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "record_id", Message: "required"})
	}
	if i.PropertyAddress == nil && i.BorrowerName == nil && i.ParcelID == nil &&
		i.LoanAmount == nil && i.SalePrice == nil && i.DownPayment == nil && i.TransactionDate == nil {
		errs = append(errs, domain.FieldError{Field: "input", Message: "at least one field must be provided"})
	}
	if i.PropertyAddress != nil {
		errs = requireText(errs, domain.FieldPropertyAddress, *i.PropertyAddress)
	}
	if i.BorrowerName != nil {
		errs = requireText(errs, domain.FieldBorrowerName, *i.BorrowerName)
	}
	if i.ParcelID != nil {
		errs = requireText(errs, domain.FieldParcelID, *i.ParcelID)
	}
	if i.LoanAmount != nil {
		errs = nonNegative(errs, "loan_amount", *i.LoanAmount)
	}
	if i.SalePrice != nil {
		errs = nonNegative(errs, "sale_price", *i.SalePrice)
	}
	if i.DownPayment != nil {
		errs = nonNegative(errs, "down_payment", *i.DownPayment)
	}
	if i.TransactionDate != nil && i.TransactionDate.IsZero() {
		errs = append(errs, domain.FieldError{Field: "transaction_date", Message: "must not be zero"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// SearchInput holds the parameters of an exact-match search.
type SearchInput struct {
	Term   string
	Field  domain.SearchField // empty = all
	Limit  int                // 0 = default
	Offset int
}

// Validate checks the field filter and paging.
func (i SearchInput) Validate() error {
	var errs []domain.FieldError

	if i.Field != "" && !i.Field.IsValid() {
		errs = append(errs, domain.FieldError{Field: "field", Message: "must be address, name, parcel or all"})
	}
	if i.Limit < 0 {
		errs = append(errs, domain.FieldError{Field: "limit", Message: "must be >= 0"})
	}
	if i.Offset < 0 {
		errs = append(errs, domain.FieldError{Field: "offset", Message: "must be >= 0"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// ListAssignedInput selects a page of an operator's queue.
// Assignee is only honoured for admins; agents always see their own queue.
type ListAssignedInput struct {
	Assignee *string
	Statuses []domain.RecordStatus // empty = PENDING and FLAGGED
	Limit    int
	Offset   int
}

// Validate checks statuses and paging.
func (i ListAssignedInput) Validate() error {
	var errs []domain.FieldError

	for _, st := range i.Statuses {
		if !st.IsValid() {
			errs = append(errs, domain.FieldError{Field: "statuses", Message: "unknown status " + string(st)})
		}
	}
	if i.Limit < 0 {
		errs = append(errs, domain.FieldError{Field: "limit", Message: "must be >= 0"})
	}
	if i.Offset < 0 {
		errs = append(errs, domain.FieldError{Field: "offset", Message: "must be >= 0"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

func requireText(errs []domain.FieldError, field, v string) []domain.FieldError {
	if strings.TrimSpace(v) == "" {
		return append(errs, domain.FieldError{Field: field, Message: "required"})
	}
	return errs
}

func nonNegative(errs []domain.FieldError, field string, v float64) []domain.FieldError {
	if v < 0 {
		return append(errs, domain.FieldError{Field: field, Message: "must be >= 0"})
	}
	return errs
}
