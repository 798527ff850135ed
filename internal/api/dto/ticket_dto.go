package dto

import (
	"time"

	"github.com/spec-kit/support-portal/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Type        domain.TicketType     `json:"type"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID             string                `json:"id"`
	TicketNumber   string                `json:"ticket_number"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Category       string                `json:"category"`
	Type           domain.TicketType     `json:"type"`
	Priority       domain.TicketPriority `json:"priority"`
	Status         domain.TicketStatus   `json:"status"`
	IsPremium      bool                  `json:"is_premium"`
	PaymentID      *string               `json:"payment_id,omitempty"`
	UpgradedAt     *time.Time            `json:"upgraded_at,omitempty"`
	UserID         string                `json:"user_id"`
	UserName       string                `json:"user_name"`
	UserEmail      string                `json:"user_email"`
	UserDepartment string                `json:"user_department"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// TicketFromDomain maps a domain ticket to its response shape.
func TicketFromDomain(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:             ticket.ID,
		TicketNumber:   ticket.TicketNumber,
		Title:          ticket.Title,
		Description:    ticket.Description,
		Category:       ticket.Category,
		Type:           ticket.Type,
		Priority:       ticket.Priority,
		Status:         ticket.Status,
		IsPremium:      ticket.IsPremium,
		PaymentID:      ticket.PaymentID,
		UpgradedAt:     ticket.UpgradedAt,
		UserID:         ticket.UserID,
		UserName:       ticket.UserName,
		UserEmail:      ticket.UserEmail,
		UserDepartment: ticket.UserDepartment,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
}

// TicketsFromDomain maps a snapshot.
func TicketsFromDomain(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, TicketFromDomain(&tickets[i]))
	}
	return items
}
