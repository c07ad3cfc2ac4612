package ride

import (
	"time"

	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/shopspring/decimal"
)

// Ride provides the service date and, when present, the authoritative fare
// breakdown computed at ride completion. The export core prefers these
// figures over re-deriving amounts from the payment total because the ride
// computation used the exact VAT rate in effect when the ride ended.
type Ride struct {
	ID         string `db:"id" json:"id"`
	DriverID   string `db:"driver_id" json:"driver_id"`
	DriverName string `db:"driver_name" json:"driver_name"`

	RideStatus types.RideStatus `db:"ride_status" json:"ride_status"`

	StartedAt time.Time  `db:"started_at" json:"started_at"`
	EndedAt   *time.Time `db:"ended_at" json:"ended_at,omitempty"`

	// Authoritative fare breakdown, all three present or all absent
	FareSubtotal *decimal.Decimal `db:"fare_subtotal" json:"fare_subtotal,omitempty"`
	FareTax      *decimal.Decimal `db:"fare_tax" json:"fare_tax,omitempty"`
	FareTotal    *decimal.Decimal `db:"fare_total" json:"fare_total,omitempty"`

	types.BaseModel
}

// Validate validates the ride
func (r *Ride) Validate() error {
	if err := r.RideStatus.Validate(); err != nil {
		return ierr.NewError("invalid ride status").
			WithHint("Ride status is invalid").
			Mark(ierr.ErrValidation)
	}
	if r.RideStatus == types.RideStatusCompleted && r.EndedAt == nil {
		return ierr.NewError("completed ride without ended_at").
			WithHint("Completed rides must carry an end timestamp").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// HasFareBreakdown reports whether the ride carries the full authoritative
// subtotal/tax/total triple
func (r *Ride) HasFareBreakdown() bool {
	return r.FareSubtotal != nil && r.FareTax != nil && r.FareTotal != nil
}
