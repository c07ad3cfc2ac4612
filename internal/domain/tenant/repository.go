package tenant

import (
	"context"
)

// Repository defines the interface for tenant persistence
type Repository interface {
	Create(ctx context.Context, tenant *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)
}
