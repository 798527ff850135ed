package payment

import (
	"context"
	"time"

	"github.com/spec-kit/support-portal/internal/domain"
)

// OrderStatus is the gateway-side state of an order.
const OrderStatusCreated = "created"

// Order is the gateway order backing one premium upgrade. Amount is in
// minor currency units.
type Order struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Receipt   string    `json:"receipt"`
	CreatedAt time.Time `json:"created_at"`
}

// CardDetails is what the card-entry form submits. The simulated
// provider checks shape only and never stores these.
type CardDetails struct {
	Number   string
	Holder   string
	ExpiryMM int
	ExpiryYY int
	CVV      string
}

// Confirmation is the gateway's proof of a successful payment.
type Confirmation struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Signature string `json:"signature"`
}

// Provider abstracts the payment gateway so a real integration can
// replace the simulated one without touching the upgrade transition.
type Provider interface {
	// Name identifies the provider variant.
	Name() string
	// CreateOrder produces an order for the ticket's premium upgrade fee.
	CreateOrder(ctx context.Context, ticket *domain.Ticket) (*Order, error)
	// Collect runs the card capture for an order and returns the
	// confirmation on success.
	Collect(ctx context.Context, order *Order, card CardDetails) (*Confirmation, error)
	// Verify checks a confirmation before it is applied to a ticket.
	Verify(confirmation Confirmation) error
}
