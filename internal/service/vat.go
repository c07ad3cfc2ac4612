package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// VAT rate cutover. Rides ending before the cutover use the old rate, on or
// after it the new one.
var (
	vatCutover = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	vatRateOld = decimal.NewFromFloat(0.10)
	vatRateNew = decimal.NewFromFloat(0.14)
	decimalOne = decimal.NewFromInt(1)
)

// VatCalculator resolves applicable VAT rates and derives base/tax/total
// splits in exact decimal arithmetic. Rounding to 2 decimal places happens
// only at the serialization boundary, never here.
type VatCalculator interface {
	// RateFor returns the VAT rate in effect on the service date. A missing
	// service date falls back to the rate in effect now; this permissive
	// default is a confirmed business-policy decision, not an accident.
	RateFor(serviceDate *time.Time) decimal.Decimal

	// ComputeAmounts derives the base/tax/total split for one payment
	ComputeAmounts(in AmountParams) Amounts
}

// AmountParams is the input of one split computation. The ride-level figures
// are either all present or ignored as a group.
type AmountParams struct {
	RideSubtotal  *decimal.Decimal
	RideTax       *decimal.Decimal
	RideTotal     *decimal.Decimal
	PaymentAmount decimal.Decimal
	Rate          decimal.Decimal
}

// Amounts is an exact base/tax/total split
type Amounts struct {
	Base  decimal.Decimal
	Tax   decimal.Decimal
	Total decimal.Decimal
}

type vatCalculator struct{}

// NewVatCalculator creates a VatCalculator
func NewVatCalculator() VatCalculator {
	return &vatCalculator{}
}

func (c *vatCalculator) RateFor(serviceDate *time.Time) decimal.Decimal {
	at := time.Now().UTC()
	if serviceDate != nil && !serviceDate.IsZero() {
		at = serviceDate.UTC()
	}
	if at.Before(vatCutover) {
		return vatRateOld
	}
	return vatRateNew
}

func (c *vatCalculator) ComputeAmounts(in AmountParams) Amounts {
	// The ride computation is authoritative when complete: it used the exact
	// rate in effect at ride completion
	if in.RideSubtotal != nil && in.RideTax != nil && in.RideTotal != nil {
		return Amounts{
			Base:  *in.RideSubtotal,
			Tax:   *in.RideTax,
			Total: *in.RideTotal,
		}
	}

	// Payment amount is tax-inclusive
	total := in.PaymentAmount
	base := total.Div(decimalOne.Add(in.Rate))
	return Amounts{
		Base:  base,
		Tax:   total.Sub(base),
		Total: total,
	}
}
