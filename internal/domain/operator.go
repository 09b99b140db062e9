package domain

import "time"

// Operator is a human reviewer known to the workload balancer.
// AssignedCount mirrors the number of records whose assigned_to equals Username.
type Operator struct {
	Username      string
	Role          Role
	AssignedCount int
	CreatedAt     time.Time
}

// CounterDrift is an operator whose stored AssignedCount disagreed with the
// number of records actually assigned to it.
type CounterDrift struct {
	Username string
	Stored   int
	Actual   int
}
