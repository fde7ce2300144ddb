package fraudcase

import "time"

// Status represents the lifecycle state of a fraud case.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusEscalated  Status = "escalated"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Priority represents the urgency assigned to a fraud case.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Case mirrors the fraud_cases table. TxID is the externally supplied
// transaction reference, globally unique and immutable in spirit;
// CreatedBy never changes after insert.
type Case struct {
	ID          string
	TxID        string
	Description string
	Status      Status
	Priority    Priority
	AssignedTo  *string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidStatus reports whether s is one of the five known statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusEscalated, StatusResolved, StatusClosed:
		return true
	default:
		return false
	}
}

// ValidPriority reports whether p is one of the four known priorities.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}
