package payment

import (
	"context"
	"time"
)

// Repository defines the interface for payment persistence
type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)

	// ListPaidInWindow returns PAID payments captured in [from, to) for the
	// tenant in context, ordered by (captured_at asc, id asc). This ordering
	// is the deterministic receipt assignment order and must not change.
	ListPaidInWindow(ctx context.Context, from, to time.Time) ([]*Payment, error)

	// ListByRideIDs returns all payments linked to the given rides
	ListByRideIDs(ctx context.Context, rideIDs []string) ([]*Payment, error)

	// UpdateReceiptNumber persists receipt_number and number_period for a
	// payment. Called only inside the allocation transaction.
	UpdateReceiptNumber(ctx context.Context, payment *Payment) error
}
