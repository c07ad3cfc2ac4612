package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/cabfleet/cabfleet/internal/domain/ride"
	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/samber/lo"
)

// InMemoryRideStore implements ride.Repository
type InMemoryRideStore struct {
	*InMemoryStore[*ride.Ride]
}

// NewInMemoryRideStore creates a new in-memory ride store
func NewInMemoryRideStore() *InMemoryRideStore {
	return &InMemoryRideStore{
		InMemoryStore: NewInMemoryStore[*ride.Ride](),
	}
}

func copyRide(r *ride.Ride) *ride.Ride {
	if r == nil {
		return nil
	}
	cp := *r
	if r.EndedAt != nil {
		cp.EndedAt = lo.ToPtr(*r.EndedAt)
	}
	if r.FareSubtotal != nil {
		cp.FareSubtotal = lo.ToPtr(*r.FareSubtotal)
	}
	if r.FareTax != nil {
		cp.FareTax = lo.ToPtr(*r.FareTax)
	}
	if r.FareTotal != nil {
		cp.FareTotal = lo.ToPtr(*r.FareTotal)
	}
	return &cp
}

func (s *InMemoryRideStore) Create(ctx context.Context, r *ride.Ride) error {
	if r == nil {
		return fmt.Errorf("ride cannot be nil")
	}
	return s.InMemoryStore.Create(ctx, r.ID, copyRide(r))
}

func (s *InMemoryRideStore) Get(ctx context.Context, id string) (*ride.Ride, error) {
	r, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("ride not found").
			WithHint("Ride not found").
			Mark(ierr.ErrNotFound)
	}
	return copyRide(r), nil
}

func (s *InMemoryRideStore) ListByIDs(ctx context.Context, ids []string) ([]*ride.Ride, error) {
	tenantID := types.GetTenantID(ctx)
	wanted := lo.SliceToMap(ids, func(id string) (string, bool) { return id, true })

	items, err := s.InMemoryStore.List(ctx,
		func(_ context.Context, r *ride.Ride) bool {
			return r.TenantID == tenantID && wanted[r.ID]
		},
		rideEndOrder,
	)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(r *ride.Ride, _ int) *ride.Ride {
		return copyRide(r)
	}), nil
}

func (s *InMemoryRideStore) ListCompletedInWindow(ctx context.Context, from, to time.Time) ([]*ride.Ride, error) {
	tenantID := types.GetTenantID(ctx)

	items, err := s.InMemoryStore.List(ctx,
		func(_ context.Context, r *ride.Ride) bool {
			return r.TenantID == tenantID &&
				r.RideStatus == types.RideStatusCompleted &&
				r.EndedAt != nil &&
				!r.EndedAt.Before(from) && r.EndedAt.Before(to)
		},
		rideEndOrder,
	)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(r *ride.Ride, _ int) *ride.Ride {
		return copyRide(r)
	}), nil
}

func rideEndOrder(i, j *ride.Ride) bool {
	ti := lo.FromPtr(i.EndedAt)
	tj := lo.FromPtr(j.EndedAt)
	if !ti.Equal(tj) {
		return ti.Before(tj)
	}
	return i.ID < j.ID
}
