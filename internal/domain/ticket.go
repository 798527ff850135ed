package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusProgress TicketStatus = "progress"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusClosed   TicketStatus = "closed"
)

// TicketStatuses lists every valid status.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether the status is a known value.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency, ordered low to critical.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

var priorityRank = map[TicketPriority]int{
	TicketPriorityLow:      0,
	TicketPriorityMedium:   1,
	TicketPriorityHigh:     2,
	TicketPriorityCritical: 3,
}

// Valid reports whether the priority is a known value.
func (p TicketPriority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Rank returns the severity order of the priority, -1 for unknown values.
func (p TicketPriority) Rank() int {
	rank, ok := priorityRank[p]
	if !ok {
		return -1
	}
	return rank
}

// TicketType distinguishes issues, service requests and questions.
type TicketType string

const (
	TicketTypeIssue    TicketType = "issue"
	TicketTypeRequest  TicketType = "request"
	TicketTypeQuestion TicketType = "question"
)

// Valid reports whether the type is a known value.
func (t TicketType) Valid() bool {
	switch t {
	case TicketTypeIssue, TicketTypeRequest, TicketTypeQuestion:
		return true
	}
	return false
}

// TicketCategories is the fixed category taxonomy.
var TicketCategories = []string{
	"Hardware",
	"Software",
	"Network",
	"Access Request",
	"Account Issues",
	"Email",
	"Printer",
	"Other",
}

// ValidCategory reports whether the category is part of the taxonomy.
func ValidCategory(category string) bool {
	for _, c := range TicketCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Ticket is the aggregate for support requests. The user* fields are a
// denormalized snapshot of the creator taken at creation time and are
// never refreshed afterwards.
type Ticket struct {
	ID             string
	TicketNumber   string
	Title          string
	Description    string
	Category       string
	Type           TicketType
	Priority       TicketPriority
	Status         TicketStatus
	IsPremium      bool
	PaymentID      *string
	UpgradedAt     *time.Time
	UserID         string
	UserName       string
	UserEmail      string
	UserDepartment string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
