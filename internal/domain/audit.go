package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an immutable record of one mutation.
// Sensitive values in OldValue/NewValue are stored as ciphertext only.
type AuditEntry struct {
	ID         uuid.UUID
	RecordID   uuid.UUID
	Actor      string
	Action     AuditAction
	FieldNames []string
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
