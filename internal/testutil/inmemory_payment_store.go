package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/cabfleet/cabfleet/internal/domain/payment"
	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/samber/lo"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

// NewInMemoryPaymentStore creates a new in-memory payment store
func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
	}
}

func copyPayment(p *payment.Payment) *payment.Payment {
	if p == nil {
		return nil
	}
	cp := *p
	if p.RideID != nil {
		cp.RideID = lo.ToPtr(*p.RideID)
	}
	if p.ReceiptNumber != nil {
		cp.ReceiptNumber = lo.ToPtr(*p.ReceiptNumber)
	}
	if p.NumberPeriod != nil {
		cp.NumberPeriod = lo.ToPtr(*p.NumberPeriod)
	}
	return &cp
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return fmt.Errorf("payment cannot be nil")
	}
	return s.InMemoryStore.Create(ctx, p.ID, copyPayment(p))
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("payment not found").
			WithHint("Payment not found").
			Mark(ierr.ErrNotFound)
	}
	return copyPayment(p), nil
}

func (s *InMemoryPaymentStore) ListPaidInWindow(ctx context.Context, from, to time.Time) ([]*payment.Payment, error) {
	tenantID := types.GetTenantID(ctx)

	items, err := s.InMemoryStore.List(ctx,
		func(_ context.Context, p *payment.Payment) bool {
			return p.TenantID == tenantID &&
				p.PaymentStatus == types.PaymentStatusPaid &&
				!p.CapturedAt.Before(from) && p.CapturedAt.Before(to)
		},
		paymentCaptureOrder,
	)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(p *payment.Payment, _ int) *payment.Payment {
		return copyPayment(p)
	}), nil
}

func (s *InMemoryPaymentStore) ListByRideIDs(ctx context.Context, rideIDs []string) ([]*payment.Payment, error) {
	tenantID := types.GetTenantID(ctx)
	wanted := lo.SliceToMap(rideIDs, func(id string) (string, bool) { return id, true })

	items, err := s.InMemoryStore.List(ctx,
		func(_ context.Context, p *payment.Payment) bool {
			return p.TenantID == tenantID && p.RideID != nil && wanted[*p.RideID]
		},
		paymentCaptureOrder,
	)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(p *payment.Payment, _ int) *payment.Payment {
		return copyPayment(p)
	}), nil
}

func (s *InMemoryPaymentStore) UpdateReceiptNumber(ctx context.Context, p *payment.Payment) error {
	existing, err := s.InMemoryStore.Get(ctx, p.ID)
	if err != nil {
		return ierr.NewError("payment not found").
			WithHint("Payment not found while persisting receipt number").
			Mark(ierr.ErrNotFound)
	}
	updated := copyPayment(existing)
	updated.ReceiptNumber = p.ReceiptNumber
	updated.NumberPeriod = p.NumberPeriod
	updated.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, p.ID, updated)
}

func paymentCaptureOrder(i, j *payment.Payment) bool {
	if !i.CapturedAt.Equal(j.CapturedAt) {
		return i.CapturedAt.Before(j.CapturedAt)
	}
	return i.ID < j.ID
}
