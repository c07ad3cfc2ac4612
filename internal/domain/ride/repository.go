package ride

import (
	"context"
	"time"
)

// Repository defines the interface for ride persistence
type Repository interface {
	Create(ctx context.Context, ride *Ride) error
	Get(ctx context.Context, id string) (*Ride, error)

	// ListByIDs returns the rides with the given ids for the tenant in context
	ListByIDs(ctx context.Context, ids []string) ([]*Ride, error)

	// ListCompletedInWindow returns COMPLETED rides whose ended_at falls in
	// [from, to) for the tenant in context, ordered by (ended_at asc, id asc)
	ListCompletedInWindow(ctx context.Context, from, to time.Time) ([]*Ride, error)
}
