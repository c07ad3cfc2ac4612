package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cabfleet/cabfleet/internal/domain/numbering"
	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/logger"
	"github.com/cabfleet/cabfleet/internal/postgres"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/jmoiron/sqlx"
)

type numberingRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewNumberingRepository creates a new postgres-backed number sequence repository
func NewNumberingRepository(client postgres.IClient, logger *logger.Logger) numbering.Repository {
	return &numberingRepository{client: client, logger: logger}
}

func (r *numberingRepository) GetCurrent(ctx context.Context, documentType types.DocumentType, period string) (int64, error) {
	query := `
		SELECT current
		FROM number_sequences
		WHERE tenant_id = $1 AND document_type = $2 AND period = $3`

	var current int64
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &current, query,
		types.GetTenantID(ctx), documentType, period)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, wrapDBError(err, "Failed to read number sequence")
	}
	return current, nil
}

func (r *numberingRepository) GetOrCreateForUpdate(ctx context.Context, documentType types.DocumentType, period string) (*numbering.NumberSequence, error) {
	if r.client.TxFromContext(ctx) == nil {
		return nil, ierr.NewError("sequence lock requested outside a transaction").
			WithHint("Number sequences can only be acquired inside a transaction").
			Mark(ierr.ErrInvalidOperation)
	}

	tenantID := types.GetTenantID(ctx)
	now := time.Now().UTC()

	// Create the row lazily. ON CONFLICT DO NOTHING keeps concurrent first
	// allocations for the same key from failing; the unique index on
	// (tenant_id, document_type, period) guards against duplicates either way.
	insert := `
		INSERT INTO number_sequences (id, tenant_id, document_type, period, current, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)
		ON CONFLICT (tenant_id, document_type, period) DO NOTHING`

	_, err := r.client.Querier(ctx).ExecContext(ctx, insert,
		types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SEQUENCE),
		tenantID, documentType, period, now)
	if err != nil {
		return nil, wrapDBError(err, "Failed to initialize number sequence")
	}

	// Row lock serializes concurrent allocators for the same key only
	query := `
		SELECT id, tenant_id, document_type, period, current, created_at, updated_at
		FROM number_sequences
		WHERE tenant_id = $1 AND document_type = $2 AND period = $3
		FOR UPDATE`

	var seq numbering.NumberSequence
	err = sqlx.GetContext(ctx, r.client.Querier(ctx), &seq, query,
		tenantID, documentType, period)
	if err != nil {
		return nil, wrapDBError(err, "Failed to lock number sequence")
	}

	return &seq, nil
}

func (r *numberingRepository) Save(ctx context.Context, seq *numbering.NumberSequence) error {
	if r.client.TxFromContext(ctx) == nil {
		return ierr.NewError("sequence save requested outside a transaction").
			WithHint("Number sequences can only be saved inside a transaction").
			Mark(ierr.ErrInvalidOperation)
	}

	query := `
		UPDATE number_sequences
		SET current = $1, updated_at = $2
		WHERE id = $3 AND tenant_id = $4 AND current <= $1`

	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		seq.Current, time.Now().UTC(), seq.ID, types.GetTenantID(ctx))
	if err != nil {
		return wrapDBError(err, "Failed to persist number sequence")
	}

	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		// current <= $1 rejected the write: another allocator advanced the
		// counter past us, which serializable isolation should have prevented
		return ierr.NewError("number sequence moved backwards").
			WithHint("Concurrent numbering conflict, retry the export").
			WithReportableDetails(map[string]any{
				"sequence_id": seq.ID,
				"period":      seq.Period,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	r.logger.Infow("persisted number sequence",
		"sequence_id", seq.ID,
		"period", seq.Period,
		"current", seq.Current)
	return nil
}
