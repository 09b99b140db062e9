package domain

// RecordStatus is the review state of a record.
type RecordStatus string

const (
	RecordStatusPending  RecordStatus = "PENDING"
	RecordStatusVerified RecordStatus = "VERIFIED"
	RecordStatusFlagged  RecordStatus = "FLAGGED"
)

func (s RecordStatus) String() string { return string(s) }

func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordStatusPending, RecordStatusVerified, RecordStatusFlagged:
		return true
	}
	return false
}

// IsReviewOutcome reports whether s is a terminal review decision.
func (s RecordStatus) IsReviewOutcome() bool {
	return s == RecordStatusVerified || s == RecordStatusFlagged
}

// Role is the operator role supplied by the identity collaborator.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleAgent Role = "AGENT"
)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleAgent:
		return true
	}
	return false
}

// AuditAction is the kind of mutation recorded in the audit trail.
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionEdit   AuditAction = "EDIT"
	AuditActionVerify AuditAction = "VERIFY"
	AuditActionFlag   AuditAction = "FLAG"
)

func (a AuditAction) String() string { return string(a) }

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionCreate, AuditActionEdit, AuditActionVerify, AuditActionFlag:
		return true
	}
	return false
}

// ReviewAction maps a review outcome to its audit action.
func ReviewAction(s RecordStatus) AuditAction {
	if s == RecordStatusFlagged {
		return AuditActionFlag
	}
	return AuditActionVerify
}

// ReleaseMode distinguishes an operator's own release from a scheduler revocation.
type ReleaseMode string

const (
	ReleaseManual ReleaseMode = "MANUAL"
	ReleaseForced ReleaseMode = "FORCED"
)

func (m ReleaseMode) String() string { return string(m) }

// SearchField selects which sensitive field an exact search matches against.
type SearchField string

const (
	SearchFieldAddress SearchField = "address"
	SearchFieldName    SearchField = "name"
	SearchFieldParcel  SearchField = "parcel"
	SearchFieldAll     SearchField = "all"
)

func (f SearchField) String() string { return string(f) }

func (f SearchField) IsValid() bool {
	switch f {
	case SearchFieldAddress, SearchFieldName, SearchFieldParcel, SearchFieldAll:
		return true
	}
	return false
}
