package payment

import (
	"time"

	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/shopspring/decimal"
)

// Payment represents a captured fare transaction. It is owned by the payment
// processing subsystem; the export core reads it and writes back the receipt
// number and numbering period once assigned.
type Payment struct {
	// Unique identifier for this payment transaction
	ID string `db:"id" json:"id"`
	// The ride_id links this payment to the ride it settles, when one exists
	RideID *string `db:"ride_id" json:"ride_id,omitempty"`
	// The amount field is the tax-inclusive captured value in the given currency
	Amount decimal.Decimal `db:"amount" json:"amount"`
	// The currency field uses a three-letter ISO code (EUR, USD, etc.)
	Currency string `db:"currency" json:"currency"`
	// The method field records how the fare was collected (cash, card, terminal)
	Method types.PaymentMethod `db:"method" json:"method"`
	// The payment_status shows the current state of this payment
	PaymentStatus types.PaymentStatus `db:"payment_status" json:"payment_status"`
	// The captured_at timestamp is when the transaction was captured
	CapturedAt time.Time `db:"captured_at" json:"captured_at"`
	// The receipt_number is assigned once by the numbering service (optional)
	ReceiptNumber *string `db:"receipt_number" json:"receipt_number,omitempty"`
	// The number_period is the YYYYMM period the receipt number was issued under (optional)
	NumberPeriod *string `db:"number_period" json:"number_period,omitempty"`

	types.BaseModel
}

// Validate validates the payment
func (p *Payment) Validate() error {
	if p.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must not be negative").
			Mark(ierr.ErrValidation)
	}
	if err := p.Method.Validate(); err != nil {
		return ierr.NewError("invalid payment method").
			WithHint("Payment method is invalid").
			Mark(ierr.ErrValidation)
	}
	if err := p.PaymentStatus.Validate(); err != nil {
		return ierr.NewError("invalid payment status").
			WithHint("Payment status is invalid").
			Mark(ierr.ErrValidation)
	}
	if p.CapturedAt.IsZero() {
		return ierr.NewError("invalid captured_at").
			WithHint("Captured timestamp is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsNumbered reports whether a receipt number has been assigned
func (p *Payment) IsNumbered() bool {
	return p.ReceiptNumber != nil && *p.ReceiptNumber != ""
}
