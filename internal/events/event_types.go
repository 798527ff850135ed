package events

import (
	"time"

	"github.com/spec-kit/support-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPremiumUpgraded EventType = "ticket_premium_upgraded"
)

// TicketEventTypes lists every event that mutates the ticket collection.
// Live-query subscriptions refresh on each of these.
var TicketEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketPremiumUpgraded,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	Category     string                `json:"category"`
	Type         domain.TicketType     `json:"ticket_type"`
	Priority     domain.TicketPriority `json:"priority"`
	Title        string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketPremiumUpgradedPayload payload.
type TicketPremiumUpgradedPayload struct {
	TicketNumber string    `json:"ticket_number"`
	PaymentID    string    `json:"payment_id"`
	OrderID      string    `json:"order_id"`
	UpgradedAt   time.Time `json:"upgraded_at"`
}
