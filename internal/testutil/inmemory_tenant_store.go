package testutil

import (
	"context"
	"fmt"

	"github.com/cabfleet/cabfleet/internal/domain/tenant"
	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/samber/lo"
)

// InMemoryTenantStore implements tenant.Repository
type InMemoryTenantStore struct {
	*InMemoryStore[*tenant.Tenant]
}

// NewInMemoryTenantStore creates a new in-memory tenant store
func NewInMemoryTenantStore() *InMemoryTenantStore {
	return &InMemoryTenantStore{
		InMemoryStore: NewInMemoryStore[*tenant.Tenant](),
	}
}

func copyTenant(t *tenant.Tenant) *tenant.Tenant {
	if t == nil {
		return nil
	}
	cp := *t
	if t.VatNumber != nil {
		cp.VatNumber = lo.ToPtr(*t.VatNumber)
	}
	return &cp
}

func (s *InMemoryTenantStore) Create(ctx context.Context, t *tenant.Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant cannot be nil")
	}
	return s.InMemoryStore.Create(ctx, t.ID, copyTenant(t))
}

func (s *InMemoryTenantStore) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	t, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("tenant not found").
			WithHint("Tenant not found").
			Mark(ierr.ErrNotFound)
	}
	return copyTenant(t), nil
}
