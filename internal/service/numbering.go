package service

import (
	"context"

	"github.com/cabfleet/cabfleet/internal/api/dto"
	"github.com/cabfleet/cabfleet/internal/domain/numbering"
	"github.com/cabfleet/cabfleet/internal/domain/payment"
	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/logger"
	"github.com/cabfleet/cabfleet/internal/postgres"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
)

// allocationRetries bounds retries after serialization conflicts. The call
// is idempotent, already-numbered payments are skipped on re-entry.
const allocationRetries = 3

// NumberingService assigns gap-free sequential receipt numbers to paid
// payments, scoped per (tenant, document type, calendar month)
type NumberingService interface {
	AssignReceiptNumbers(ctx context.Context, req dto.AssignNumbersRequest) (*numbering.AssignmentSummary, error)
}

type numberingService struct {
	db          postgres.IClient
	logger      *logger.Logger
	paymentRepo payment.Repository
	seqRepo     numbering.Repository
}

// NewNumberingService creates a NumberingService
func NewNumberingService(
	db postgres.IClient,
	paymentRepo payment.Repository,
	seqRepo numbering.Repository,
	logger *logger.Logger,
) NumberingService {
	return &numberingService{
		db:          db,
		logger:      logger,
		paymentRepo: paymentRepo,
		seqRepo:     seqRepo,
	}
}

func (s *numberingService) AssignReceiptNumbers(ctx context.Context, req dto.AssignNumbersRequest) (*numbering.AssignmentSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := types.ValidateTenantContext(ctx); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Tenant context is required for numbering").
			Mark(ierr.ErrValidation)
	}

	// The sequence key is period-scoped, a window spanning two calendar
	// months has no single valid key
	period, err := types.PeriodOfWindow(req.From, req.To)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Numbering window must fall within a single calendar month").
			Mark(ierr.ErrValidation)
	}

	candidates, err := s.paymentRepo.ListPaidInWindow(ctx, req.From, req.To)
	if err != nil {
		return nil, err
	}

	// A payment already numbered under a different period means the window
	// and the stored numbering disagree, refuse to mix periods silently
	for _, p := range candidates {
		if p.IsNumbered() && p.NumberPeriod != nil && *p.NumberPeriod != period {
			return nil, ierr.NewError("payment numbered under a different period").
				WithHint("Window overlaps a foreign numbering period").
				WithReportableDetails(map[string]any{
					"payment_id":       p.ID,
					"payment_period":   *p.NumberPeriod,
					"requested_period": period,
				}).
				Mark(ierr.ErrIntegrity)
		}
	}

	needsAssignment := lo.Filter(candidates, func(p *payment.Payment, _ int) bool {
		return !p.IsNumbered()
	})
	alreadyNumbered := len(candidates) - len(needsAssignment)

	if len(needsAssignment) == 0 {
		current, err := s.seqRepo.GetCurrent(ctx, types.DocumentTypeReceipt, period)
		if err != nil {
			return nil, err
		}
		return &numbering.AssignmentSummary{
			Period:               period,
			StartingNumber:       current,
			EndingNumber:         current,
			AssignedCount:        0,
			AlreadyNumberedCount: alreadyNumbered,
			Assigned:             []numbering.AssignedNumber{},
		}, nil
	}

	var summary *numbering.AssignmentSummary
	allocate := func() error {
		var txErr error
		summary, txErr = s.allocateInTx(ctx, period, needsAssignment)
		if txErr != nil && !ierr.IsVersionConflict(txErr) {
			return backoff.Permanent(txErr)
		}
		return txErr
	}

	// Serialization conflicts from a concurrent allocator on the same key
	// are transient, the whole batch is retried
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), allocationRetries)
	if err := backoff.Retry(allocate, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}

	summary.AlreadyNumberedCount += alreadyNumbered

	s.logger.Infow("assigned receipt numbers",
		"tenant_id", types.GetTenantID(ctx),
		"period", period,
		"assigned", summary.AssignedCount,
		"already_numbered", summary.AlreadyNumberedCount,
		"starting_number", summary.StartingNumber,
		"ending_number", summary.EndingNumber)

	return summary, nil
}

// allocateInTx numbers the candidate batch inside one serializable
// transaction. The whole batch commits atomically or not at all.
func (s *numberingService) allocateInTx(ctx context.Context, period string, candidates []*payment.Payment) (*numbering.AssignmentSummary, error) {
	tenantID := types.GetTenantID(ctx)

	summary := &numbering.AssignmentSummary{
		Period:   period,
		Assigned: []numbering.AssignedNumber{},
	}

	err := s.db.WithTx(ctx, func(txCtx context.Context) error {
		seq, err := s.seqRepo.GetOrCreateForUpdate(txCtx, types.DocumentTypeReceipt, period)
		if err != nil {
			return err
		}

		counter := seq.Current
		summary.StartingNumber = counter
		summary.EndingNumber = counter

		// Candidates arrive in (captured_at asc, id asc) order; each is
		// re-read under the lock to defend against concurrent mutation
		for _, candidate := range candidates {
			p, err := s.paymentRepo.Get(txCtx, candidate.ID)
			if err != nil {
				if ierr.IsNotFound(err) {
					s.logger.Warnw("payment vanished before numbering, skipping",
						"payment_id", candidate.ID)
					continue
				}
				return err
			}

			// Hard integrity errors, never skips
			if p.TenantID != tenantID {
				return ierr.NewError("payment belongs to a different tenant").
					WithHint("Cross-tenant payment detected during numbering").
					WithReportableDetails(map[string]any{
						"payment_id": p.ID,
					}).
					Mark(ierr.ErrIntegrity)
			}
			if p.IsNumbered() {
				if p.NumberPeriod == nil || *p.NumberPeriod != period {
					return ierr.NewError("payment numbered under a different period").
						WithHint("Cross-period numbering detected").
						WithReportableDetails(map[string]any{
							"payment_id":       p.ID,
							"requested_period": period,
						}).
						Mark(ierr.ErrIntegrity)
				}
				summary.AlreadyNumberedCount++
				continue
			}

			// Transient skip: state changed between the scan and this re-read
			if p.PaymentStatus != types.PaymentStatusPaid {
				s.logger.Warnw("payment no longer paid, skipping",
					"payment_id", p.ID,
					"payment_status", p.PaymentStatus)
				continue
			}

			counter++
			receiptNumber := types.FormatReceiptNumber(period, counter)
			p.ReceiptNumber = &receiptNumber
			p.NumberPeriod = &period

			if err := s.paymentRepo.UpdateReceiptNumber(txCtx, p); err != nil {
				return err
			}

			summary.Assigned = append(summary.Assigned, numbering.AssignedNumber{
				PaymentID:     p.ID,
				ReceiptNumber: receiptNumber,
			})
		}

		if counter > seq.Current {
			summary.StartingNumber = seq.Current + 1
			seq.Current = counter
			if err := s.seqRepo.Save(txCtx, seq); err != nil {
				return err
			}
		}
		summary.EndingNumber = counter
		summary.AssignedCount = len(summary.Assigned)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return summary, nil
}
