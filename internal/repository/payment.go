package repository

import (
	"context"
	"time"

	"github.com/cabfleet/cabfleet/internal/domain/payment"
	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/logger"
	"github.com/cabfleet/cabfleet/internal/postgres"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/jmoiron/sqlx"
)

type paymentRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewPaymentRepository creates a new postgres-backed payment repository
func NewPaymentRepository(client postgres.IClient, logger *logger.Logger) payment.Repository {
	return &paymentRepository{client: client, logger: logger}
}

const paymentColumns = `
	id, ride_id, amount, currency, method, payment_status, captured_at,
	receipt_number, number_period,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		p.ID, p.RideID, p.Amount, p.Currency, p.Method, p.PaymentStatus, p.CapturedAt,
		p.ReceiptNumber, p.NumberPeriod,
		p.TenantID, p.Status, p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy,
	)
	if err != nil {
		return wrapDBError(err, "Failed to create payment")
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE id = $1 AND tenant_id = $2 AND status != $3`

	var p payment.Payment
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &p, query,
		id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		return nil, wrapDBError(err, "Payment not found")
	}
	return &p, nil
}

func (r *paymentRepository) ListPaidInWindow(ctx context.Context, from, to time.Time) ([]*payment.Payment, error) {
	// Ordering here defines the receipt assignment order, keep in sync with
	// the numbering service re-verification pass
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE tenant_id = $1
		  AND payment_status = $2
		  AND captured_at >= $3 AND captured_at < $4
		  AND status != $5
		ORDER BY captured_at ASC, id ASC`

	var payments []*payment.Payment
	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &payments, query,
		types.GetTenantID(ctx), types.PaymentStatusPaid, from, to, types.StatusDeleted)
	if err != nil {
		return nil, wrapDBError(err, "Failed to list paid payments")
	}
	return payments, nil
}

func (r *paymentRepository) ListByRideIDs(ctx context.Context, rideIDs []string) ([]*payment.Payment, error) {
	if len(rideIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT `+paymentColumns+`
		FROM payments
		WHERE tenant_id = ? AND ride_id IN (?) AND status != ?
		ORDER BY captured_at ASC, id ASC`,
		types.GetTenantID(ctx), rideIDs, types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build ride payments query").
			Mark(ierr.ErrSystem)
	}

	q := r.client.Querier(ctx)
	query = q.Rebind(query)

	var payments []*payment.Payment
	if err := sqlx.SelectContext(ctx, q, &payments, query, args...); err != nil {
		return nil, wrapDBError(err, "Failed to list payments by ride")
	}
	return payments, nil
}

func (r *paymentRepository) UpdateReceiptNumber(ctx context.Context, p *payment.Payment) error {
	query := `
		UPDATE payments
		SET receipt_number = $1, number_period = $2, updated_at = $3, updated_by = $4
		WHERE id = $5 AND tenant_id = $6`

	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		p.ReceiptNumber, p.NumberPeriod, time.Now().UTC(), types.GetUserID(ctx),
		p.ID, types.GetTenantID(ctx))
	if err != nil {
		return wrapDBError(err, "Failed to persist receipt number")
	}

	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return ierr.NewError("payment disappeared during numbering").
			WithHint("Payment not found while persisting receipt number").
			WithReportableDetails(map[string]any{
				"payment_id": p.ID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
