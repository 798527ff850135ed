package payment

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/spec-kit/support-portal/internal/config"
	"github.com/spec-kit/support-portal/internal/domain"
	apperrors "github.com/spec-kit/support-portal/pkg/util"
)

// StripeProvider is the real-gateway variant. Card capture happens in
// the gateway's own widget; this adapter only creates payment intents
// and verifies confirmations against them.
type StripeProvider struct {
	amount   int64
	currency string
}

// NewStripeProvider configures the global stripe client and returns the
// provider.
func NewStripeProvider(cfg config.PaymentConfig) *StripeProvider {
	stripe.Key = cfg.StripeKey
	return &StripeProvider{amount: cfg.AmountMinor, currency: cfg.Currency}
}

// Name identifies the provider variant.
func (p *StripeProvider) Name() string { return "stripe" }

// CreateOrder opens a payment intent for the upgrade fee.
func (p *StripeProvider) CreateOrder(ctx context.Context, ticket *domain.Ticket) (*Order, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.amount),
		Currency: stripe.String(p.currency),
	}
	params.Context = ctx
	params.AddMetadata("ticket_id", ticket.ID)
	params.AddMetadata("ticket_number", ticket.TicketNumber)

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, apperrors.NewPaymentError("gateway order creation failed", err)
	}
	return &Order{
		ID:        intent.ID,
		TicketID:  ticket.ID,
		Amount:    intent.Amount,
		Currency:  string(intent.Currency),
		Status:    OrderStatusCreated,
		Receipt:   "receipt_" + ticket.TicketNumber,
		CreatedAt: time.Unix(intent.Created, 0),
	}, nil
}

// Collect is not served locally; the gateway widget captures the card
// and hands the confirmation back to the client.
func (p *StripeProvider) Collect(ctx context.Context, order *Order, card CardDetails) (*Confirmation, error) {
	return nil, apperrors.NewPaymentError("card capture is handled by the gateway widget", nil)
}

// Verify checks that the referenced payment intent succeeded.
func (p *StripeProvider) Verify(confirmation Confirmation) error {
	if confirmation.PaymentID == "" || confirmation.OrderID == "" {
		return apperrors.NewPaymentError("incomplete payment confirmation", nil)
	}
	intent, err := paymentintent.Get(confirmation.OrderID, nil)
	if err != nil {
		return apperrors.NewPaymentError("gateway verification failed", err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return apperrors.NewPaymentError("payment not completed", nil)
	}
	return nil
}
