package dto

import "github.com/spec-kit/support-portal/internal/payment"

// CardRequest describes card-entry form input for the simulated
// gateway path.
type CardRequest struct {
	Number      string `json:"number"`
	Holder      string `json:"holder"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CVV         string `json:"cvv"`
}

// ToCardDetails maps the request to provider card details.
func (r CardRequest) ToCardDetails() payment.CardDetails {
	return payment.CardDetails{
		Number:   r.Number,
		Holder:   r.Holder,
		ExpiryMM: r.ExpiryMonth,
		ExpiryYY: r.ExpiryYear,
		CVV:      r.CVV,
	}
}

// ConfirmationRequest is a gateway confirmation produced by an external
// payment widget.
type ConfirmationRequest struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Signature string `json:"signature"`
}

// ConfirmUpgradeRequest carries either card details (simulated capture)
// or a ready confirmation (external widget).
type ConfirmUpgradeRequest struct {
	OrderID      string               `json:"order_id"`
	Card         *CardRequest         `json:"card,omitempty"`
	Confirmation *ConfirmationRequest `json:"confirmation,omitempty"`
}
