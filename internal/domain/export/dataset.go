package export

import (
	"time"

	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/shopspring/decimal"
)

// PaymentRow is the flattened per-payment projection used both for summary
// aggregation and for document rendering. Money stays an exact decimal here;
// it is formatted to 2-decimal strings only at the serialization boundary.
type PaymentRow struct {
	PaymentID     string
	ReceiptNumber *string
	CapturedAt    time.Time
	ServiceDate   *time.Time
	Method        types.PaymentMethod
	Currency      string
	VatRate       decimal.Decimal
	Base          decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	RideID        *string
	DriverName    *string
}

// VatBucket accumulates totals for one VAT rate, optionally split by payment
// method. Method is empty in the by-rate summary.
type VatBucket struct {
	Rate   decimal.Decimal
	Method types.PaymentMethod
	Count  int
	Base   decimal.Decimal
	Tax    decimal.Decimal
	Total  decimal.Decimal
}

// RideWithoutPayment flags a completed ride whose payment is missing or not PAID
type RideWithoutPayment struct {
	RideID     string
	EndedAt    *time.Time
	DriverName string
	FareTotal  *decimal.Decimal
}

// PaymentWithoutRide flags a paid payment lacking a usable ride link
type PaymentWithoutRide struct {
	PaymentID  string
	CapturedAt time.Time
	Amount     decimal.Decimal
	Method     types.PaymentMethod
}

// Exceptions is the data-integrity block of an export run
type Exceptions struct {
	RidesWithoutPayments []RideWithoutPayment
	PaymentsWithoutRide  []PaymentWithoutRide
	Warnings             []string
}

// Dataset is the computed content of one export window
type Dataset struct {
	Rows                   []*PaymentRow
	SummaryByRate          []*VatBucket
	SummaryByRateAndMethod []*VatBucket
	Exceptions             Exceptions
}
