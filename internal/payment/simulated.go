package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/support-portal/internal/config"
	"github.com/spec-kit/support-portal/internal/domain"
	apperrors "github.com/spec-kit/support-portal/pkg/util"
)

// SimulatedProvider is a stand-in gateway. Orders and confirmations are
// fabricated locally after an artificial delay; card capture succeeds
// unconditionally once the card fields pass shape checks. It is not a
// production payment integration.
type SimulatedProvider struct {
	amount   int64
	currency string
	delay    time.Duration
	now      func() time.Time
}

// NewSimulatedProvider builds the provider from payment config.
func NewSimulatedProvider(cfg config.PaymentConfig) *SimulatedProvider {
	return &SimulatedProvider{
		amount:   cfg.AmountMinor,
		currency: cfg.Currency,
		delay:    cfg.SimulatedDelay,
		now:      time.Now,
	}
}

// Name identifies the provider variant.
func (p *SimulatedProvider) Name() string { return "simulated" }

// CreateOrder fabricates an order after the configured delay.
func (p *SimulatedProvider) CreateOrder(ctx context.Context, ticket *domain.Ticket) (*Order, error) {
	if err := p.wait(ctx); err != nil {
		return nil, apperrors.NewPaymentError("order creation canceled", err)
	}
	now := p.now()
	return &Order{
		ID:        fmt.Sprintf("order_%d", now.UnixMilli()),
		TicketID:  ticket.ID,
		Amount:    p.amount,
		Currency:  p.currency,
		Status:    OrderStatusCreated,
		Receipt:   "receipt_" + ticket.TicketNumber,
		CreatedAt: now,
	}, nil
}

// Collect validates card shape, waits the artificial processing delay
// and fabricates a successful confirmation.
func (p *SimulatedProvider) Collect(ctx context.Context, order *Order, card CardDetails) (*Confirmation, error) {
	if err := validateCardShape(card); err != nil {
		return nil, err
	}
	if err := p.wait(ctx); err != nil {
		return nil, apperrors.NewPaymentError("payment canceled", err)
	}
	now := p.now().UnixMilli()
	return &Confirmation{
		PaymentID: fmt.Sprintf("pay_%d", now),
		OrderID:   order.ID,
		Signature: fmt.Sprintf("sig_%d", now),
	}, nil
}

// Verify accepts any non-empty confirmation; the simulated gateway has
// no real failure mode.
func (p *SimulatedProvider) Verify(confirmation Confirmation) error {
	if confirmation.PaymentID == "" || confirmation.OrderID == "" || confirmation.Signature == "" {
		return apperrors.NewPaymentError("incomplete payment confirmation", nil)
	}
	return nil
}

func (p *SimulatedProvider) wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func validateCardShape(card CardDetails) error {
	digits := strings.ReplaceAll(strings.ReplaceAll(card.Number, " ", ""), "-", "")
	if len(digits) < 12 || len(digits) > 19 || !allDigits(digits) {
		return apperrors.NewValidationError("invalid card number", nil)
	}
	if strings.TrimSpace(card.Holder) == "" {
		return apperrors.NewValidationError("card holder required", nil)
	}
	if card.ExpiryMM < 1 || card.ExpiryMM > 12 {
		return apperrors.NewValidationError("invalid card expiry month", nil)
	}
	if len(card.CVV) < 3 || len(card.CVV) > 4 || !allDigits(card.CVV) {
		return apperrors.NewValidationError("invalid card cvv", nil)
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
