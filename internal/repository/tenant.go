package repository

import (
	"context"

	"github.com/cabfleet/cabfleet/internal/domain/tenant"
	"github.com/cabfleet/cabfleet/internal/logger"
	"github.com/cabfleet/cabfleet/internal/postgres"
	"github.com/jmoiron/sqlx"
)

type tenantRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewTenantRepository creates a new postgres-backed tenant repository
func NewTenantRepository(client postgres.IClient, logger *logger.Logger) tenant.Repository {
	return &tenantRepository{client: client, logger: logger}
}

func (r *tenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, business_id, vat_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		t.ID, t.Name, t.BusinessID, t.VatNumber, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return wrapDBError(err, "Failed to create tenant")
	}
	return nil
}

func (r *tenantRepository) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	query := `
		SELECT id, name, business_id, vat_number, created_at, updated_at
		FROM tenants
		WHERE id = $1`

	var t tenant.Tenant
	if err := sqlx.GetContext(ctx, r.client.Querier(ctx), &t, query, id); err != nil {
		return nil, wrapDBError(err, "Tenant not found")
	}
	return &t, nil
}
