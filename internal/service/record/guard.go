package record

import (
	"fmt"
	"time"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

func validateCaller(caller domain.Identity) error {
	if caller.Username == "" {
		return domain.NewValidationError("caller", "required")
	}
	if !caller.Role.IsValid() {
		return fmt.Errorf("role %q: %w", caller.Role, domain.ErrForbidden)
	}
	return nil
}

// guardAssigned rejects callers other than the record's assignee.
func guardAssigned(rec *domain.Record, caller domain.Identity) error {
	if !rec.IsAssignedTo(caller.Username) {
		return fmt.Errorf("record %s: %w", rec.ID, domain.ErrNotAssigned)
	}
	return nil
}

// guardVisible applies the role visibility predicate.
func guardVisible(rec *domain.Record, caller domain.Identity) error {
	if !domain.CanView(caller.Role, caller.Username, rec) {
		return fmt.Errorf("record %s: %w", rec.ID, domain.ErrForbidden)
	}
	return nil
}

// scope returns the assignee filter search and listing apply for caller:
// agents see only their own records, admins see everything.
func scope(caller domain.Identity) *string {
	if caller.Role == domain.RoleAdmin {
		return nil
	}
	u := caller.Username
	return &u
}

// editPrecondition reports why caller cannot edit rec at now, or nil.
// A submitted record is not editable whoever asks, so status is checked first.
func editPrecondition(rec *domain.Record, caller domain.Identity, now time.Time, ttl time.Duration) error {
	if rec.Status != domain.RecordStatusPending {
		return fmt.Errorf("record %s is %s: %w", rec.ID, rec.Status, domain.ErrNotEditable)
	}
	return reviewPrecondition(rec, caller, now, ttl)
}

// reviewPrecondition reports why caller cannot review rec at now, or nil.
func reviewPrecondition(rec *domain.Record, caller domain.Identity, now time.Time, ttl time.Duration) error {
	if err := guardAssigned(rec, caller); err != nil {
		return err
	}
	if rec.LockedByOther(caller.Username, now, ttl) {
		return fmt.Errorf("record %s: %w", rec.ID, domain.ErrLocked)
	}
	return nil
}
