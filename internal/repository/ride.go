package repository

import (
	"context"
	"time"

	"github.com/cabfleet/cabfleet/internal/domain/ride"
	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/logger"
	"github.com/cabfleet/cabfleet/internal/postgres"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/jmoiron/sqlx"
)

type rideRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewRideRepository creates a new postgres-backed ride repository
func NewRideRepository(client postgres.IClient, logger *logger.Logger) ride.Repository {
	return &rideRepository{client: client, logger: logger}
}

const rideColumns = `
	id, driver_id, driver_name, ride_status, started_at, ended_at,
	fare_subtotal, fare_tax, fare_total,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *rideRepository) Create(ctx context.Context, rd *ride.Ride) error {
	if err := rd.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		rd.ID, rd.DriverID, rd.DriverName, rd.RideStatus, rd.StartedAt, rd.EndedAt,
		rd.FareSubtotal, rd.FareTax, rd.FareTotal,
		rd.TenantID, rd.Status, rd.CreatedAt, rd.UpdatedAt, rd.CreatedBy, rd.UpdatedBy,
	)
	if err != nil {
		return wrapDBError(err, "Failed to create ride")
	}
	return nil
}

func (r *rideRepository) Get(ctx context.Context, id string) (*ride.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE id = $1 AND tenant_id = $2 AND status != $3`

	var rd ride.Ride
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &rd, query,
		id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		return nil, wrapDBError(err, "Ride not found")
	}
	return &rd, nil
}

func (r *rideRepository) ListByIDs(ctx context.Context, ids []string) ([]*ride.Ride, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT `+rideColumns+`
		FROM rides
		WHERE tenant_id = ? AND id IN (?) AND status != ?`,
		types.GetTenantID(ctx), ids, types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build rides query").
			Mark(ierr.ErrSystem)
	}

	q := r.client.Querier(ctx)
	query = q.Rebind(query)

	var rides []*ride.Ride
	if err := sqlx.SelectContext(ctx, q, &rides, query, args...); err != nil {
		return nil, wrapDBError(err, "Failed to list rides")
	}
	return rides, nil
}

func (r *rideRepository) ListCompletedInWindow(ctx context.Context, from, to time.Time) ([]*ride.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE tenant_id = $1
		  AND ride_status = $2
		  AND ended_at >= $3 AND ended_at < $4
		  AND status != $5
		ORDER BY ended_at ASC, id ASC`

	var rides []*ride.Ride
	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &rides, query,
		types.GetTenantID(ctx), types.RideStatusCompleted, from, to, types.StatusDeleted)
	if err != nil {
		return nil, wrapDBError(err, "Failed to list completed rides")
	}
	return rides, nil
}
