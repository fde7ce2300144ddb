package escalation

import "time"

// Record is one immutable audit entry written when a case is escalated.
// Rows are append-only: never updated, never deleted, read back in
// insertion order.
type Record struct {
	ID               string
	CaseID           string
	EscalatedBy      string
	EscalatedTo      *string
	PreviousStatus   string
	NewStatus        string
	PreviousPriority string
	NewPriority      string
	Reason           string
	CreatedAt        time.Time
}
