package domain

// CanView is the role visibility predicate shared by reads and searches:
// admins see every record, agents only the records assigned to them.
func CanView(role Role, username string, rec *Record) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleAgent:
		return rec.IsAssignedTo(username)
	}
	return false
}
