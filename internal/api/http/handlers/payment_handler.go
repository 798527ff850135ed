package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-portal/internal/api/dto"
	"github.com/spec-kit/support-portal/internal/auth"
	"github.com/spec-kit/support-portal/internal/payment"
	"github.com/spec-kit/support-portal/internal/service"
	apperrors "github.com/spec-kit/support-portal/pkg/util"
)

// PaymentHandler drives the premium upgrade flow.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler constructs handler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: paymentService}
}

// CreateOrder POST /tickets/:id/upgrade/order.
func (h *PaymentHandler) CreateOrder(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	order, err := h.payments.CreateUpgradeOrder(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"order":    order,
			"provider": h.payments.ProviderName(),
		},
	})
}

// Confirm POST /tickets/:id/upgrade/confirm. Accepts card details for
// the simulated capture, or a ready confirmation from an external
// gateway widget.
func (h *PaymentHandler) Confirm(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ConfirmUpgradeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticketID := c.Params("id")
	switch {
	case req.Confirmation != nil:
		confirmation := payment.Confirmation{
			PaymentID: req.Confirmation.PaymentID,
			OrderID:   req.Confirmation.OrderID,
			Signature: req.Confirmation.Signature,
		}
		ticket, err := h.payments.ConfirmWithConfirmation(c.UserContext(), principal.User, ticketID, confirmation)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
	case req.Card != nil:
		if req.OrderID == "" {
			return apperrors.NewValidationError("order_id required", nil)
		}
		ticket, err := h.payments.ConfirmWithCard(c.UserContext(), principal.User, ticketID, req.OrderID, req.Card.ToCardDetails())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
	default:
		return apperrors.NewValidationError("card or confirmation required", nil)
	}
}
