package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-portal/internal/domain"
	"github.com/spec-kit/support-portal/internal/payment"
	apperrors "github.com/spec-kit/support-portal/pkg/util"
)

// PaymentService orchestrates the premium upgrade flow against the
// configured payment provider. Cancellation or failure at any stage
// leaves the ticket untouched.
type PaymentService struct {
	provider payment.Provider
	tickets  *TicketService
	logger   *zap.Logger
}

// NewPaymentService constructs the service.
func NewPaymentService(provider payment.Provider, tickets *TicketService, logger *zap.Logger) *PaymentService {
	return &PaymentService{provider: provider, tickets: tickets, logger: logger}
}

// ProviderName reports the active provider variant.
func (s *PaymentService) ProviderName() string {
	return s.provider.Name()
}

// CreateUpgradeOrder opens a gateway order for the ticket's upgrade
// fee. Rejected early when the caller does not own the ticket or it is
// already premium.
func (s *PaymentService) CreateUpgradeOrder(ctx context.Context, actor *domain.User, ticketID string) (*payment.Order, error) {
	ticket, err := s.tickets.GetForViewer(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != actor.ID {
		return nil, apperrors.NewForbidden("only the ticket owner may upgrade")
	}
	if ticket.IsPremium {
		return nil, apperrors.NewAlreadyPremium(ticket.TicketNumber)
	}

	order, err := s.provider.CreateOrder(ctx, ticket)
	if err != nil {
		s.logger.Warn("payment order creation failed",
			zap.String("ticket_id", ticketID),
			zap.String("provider", s.provider.Name()),
			zap.Error(err))
		return nil, err
	}
	s.logger.Info("payment order created",
		zap.String("order_id", order.ID),
		zap.String("ticket_id", ticketID),
		zap.Int64("amount", order.Amount),
		zap.String("currency", order.Currency))
	return order, nil
}

// ConfirmWithCard runs the provider's card capture for an order and, on
// success, applies the premium upgrade.
func (s *PaymentService) ConfirmWithCard(ctx context.Context, actor *domain.User, ticketID, orderID string, card payment.CardDetails) (*domain.Ticket, error) {
	order := &payment.Order{ID: orderID, TicketID: ticketID}
	confirmation, err := s.provider.Collect(ctx, order, card)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, ticketID, *confirmation)
}

// ConfirmWithConfirmation accepts a confirmation produced by an
// external gateway widget and applies the premium upgrade after
// verification.
func (s *PaymentService) ConfirmWithConfirmation(ctx context.Context, actor *domain.User, ticketID string, confirmation payment.Confirmation) (*domain.Ticket, error) {
	return s.apply(ctx, actor, ticketID, confirmation)
}

func (s *PaymentService) apply(ctx context.Context, actor *domain.User, ticketID string, confirmation payment.Confirmation) (*domain.Ticket, error) {
	if err := s.provider.Verify(confirmation); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.UpgradeToPremium(ctx, actor, ticketID, confirmation)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket upgraded to premium",
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("payment_id", confirmation.PaymentID))
	return ticket, nil
}
