package domain

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	apperrors "github.com/spec-kit/support-portal/pkg/util"
)

// TicketInput describes the fields a creator supplies for a new ticket.
type TicketInput struct {
	Title       string
	Description string
	Category    string
	Type        TicketType
	Priority    TicketPriority
}

// GenerateTicketNumber builds a human-readable ticket key: the last six
// digits of the millisecond timestamp plus a zero-padded three-digit
// random suffix. Collisions are only probabilistically excluded.
func GenerateTicketNumber(now time.Time) string {
	millis := fmt.Sprintf("%d", now.UnixMilli())
	if len(millis) > 6 {
		millis = millis[len(millis)-6:]
	}
	return fmt.Sprintf("TKT-%s%03d", millis, rand.Intn(1000))
}

// NewTicket validates input and assembles a ticket in its initial state.
// Title, description and category are required; type defaults to issue
// and priority to low.
func NewTicket(input TicketInput, creator *User, now time.Time) (*Ticket, error) {
	missing := map[string]any{}
	if strings.TrimSpace(input.Title) == "" {
		missing["title"] = "required"
	}
	if strings.TrimSpace(input.Description) == "" {
		missing["description"] = "required"
	}
	if strings.TrimSpace(input.Category) == "" {
		missing["category"] = "required"
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("title, description and category are required", missing)
	}
	if !ValidCategory(input.Category) {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}

	ticketType := input.Type
	if ticketType == "" {
		ticketType = TicketTypeIssue
	}
	if !ticketType.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": input.Type})
	}

	priority := input.Priority
	if priority == "" {
		priority = TicketPriorityLow
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	return &Ticket{
		TicketNumber:   GenerateTicketNumber(now),
		Title:          strings.TrimSpace(input.Title),
		Description:    strings.TrimSpace(input.Description),
		Category:       input.Category,
		Type:           ticketType,
		Priority:       priority,
		Status:         TicketStatusOpen,
		IsPremium:      false,
		UserID:         creator.ID,
		UserName:       creator.Name,
		UserEmail:      creator.Email,
		UserDepartment: creator.Department,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ApplyStatus sets a new status on the ticket. Only admins may change
// status. Any status may follow any other; the permissive policy is
// deliberate and isolated here so it can be tightened without touching
// call sites.
func ApplyStatus(ticket *Ticket, newStatus TicketStatus, actorRole Role, now time.Time) error {
	if actorRole != RoleAdmin {
		return apperrors.NewForbidden("only admins may change ticket status")
	}
	if !newStatus.Valid() {
		return apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}
	ticket.Status = newStatus
	ticket.UpdatedAt = now
	return nil
}

// ApplyPremiumUpgrade marks the ticket premium after a payment
// confirmation. Only the ticket owner may upgrade, and the transition is
// one-way: an already-premium ticket is rejected with its payment record
// untouched.
func ApplyPremiumUpgrade(ticket *Ticket, paymentID, actorID string, now time.Time) error {
	if ticket.UserID != actorID {
		return apperrors.NewForbidden("only the ticket owner may upgrade")
	}
	if ticket.IsPremium {
		return apperrors.NewAlreadyPremium(ticket.TicketNumber)
	}
	upgradedAt := now
	ticket.IsPremium = true
	ticket.PaymentID = &paymentID
	ticket.UpgradedAt = &upgradedAt
	ticket.UpdatedAt = now
	return nil
}
