package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/cabfleet/cabfleet/internal/api/dto"
	"github.com/cabfleet/cabfleet/internal/cache"
	"github.com/cabfleet/cabfleet/internal/domain/export"
	"github.com/cabfleet/cabfleet/internal/domain/numbering"
	"github.com/cabfleet/cabfleet/internal/domain/tenant"
	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/logger"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/samber/lo"
)

// SnapshotService orchestrates numbering and dataset building into a
// canonical, hashable export snapshot. Building twice over an unchanged,
// fully numbered dataset yields an identical hash; that is the archival
// integrity guarantee.
type SnapshotService interface {
	BuildSnapshot(ctx context.Context, req dto.CreateExportRequest) (*dto.ExportSnapshotResponse, error)
}

type snapshotService struct {
	logger     *logger.Logger
	tenantRepo tenant.Repository
	cache      cache.Cache
	numbering  NumberingService
	exportData ExportDataService
}

// NewSnapshotService creates a SnapshotService
func NewSnapshotService(
	tenantRepo tenant.Repository,
	cache cache.Cache,
	numbering NumberingService,
	exportData ExportDataService,
	logger *logger.Logger,
) SnapshotService {
	return &snapshotService{
		logger:     logger,
		tenantRepo: tenantRepo,
		cache:      cache,
		numbering:  numbering,
		exportData: exportData,
	}
}

func (s *snapshotService) BuildSnapshot(ctx context.Context, req dto.CreateExportRequest) (*dto.ExportSnapshotResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := types.ValidateTenantContext(ctx); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Tenant context is required for exports").
			Mark(ierr.ErrValidation)
	}

	t, err := s.resolveTenant(ctx)
	if err != nil {
		return nil, err
	}

	// Idempotent, safe on every export attempt including retries and previews
	summary, err := s.numbering.AssignReceiptNumbers(ctx, dto.AssignNumbersRequest{
		From: req.From,
		To:   req.To,
	})
	if err != nil {
		return nil, err
	}

	dataset, err := s.exportData.LoadPaymentsDataset(ctx, req.From, req.To)
	if err != nil {
		return nil, err
	}

	snapshot := s.assemble(ctx, req, t, summary, dataset)

	// The hash covers the canonical serialization without generated_at; the
	// timestamp is stamped after hashing so reruns over the same data keep
	// the same fingerprint
	canonical, err := json.Marshal(snapshot)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to serialize export snapshot").
			Mark(ierr.ErrSystem)
	}
	digest := sha256.Sum256(canonical)
	sha := hex.EncodeToString(digest[:])

	snapshot.Meta.GeneratedAt = time.Now().UTC().Format(time.RFC3339)

	// Per-run display reference, stays outside the hashed document like the
	// generation timestamp
	reference := types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_EXPORT)

	s.logger.Infow("built export snapshot",
		"tenant_id", types.GetTenantID(ctx),
		"reference", reference,
		"period", summary.Period,
		"payments", len(snapshot.Payments),
		"warnings", len(snapshot.Exceptions.Warnings),
		"sha256", sha)

	return &dto.ExportSnapshotResponse{
		Reference:     reference,
		SHA256:        sha,
		Snapshot:      snapshot,
		CanonicalJSON: string(canonical),
	}, nil
}

func (s *snapshotService) resolveTenant(ctx context.Context) (*tenant.Tenant, error) {
	tenantID := types.GetTenantID(ctx)
	key := cache.PrefixTenant + tenantID

	if cached, ok := s.cache.Get(ctx, key); ok {
		if t, ok := cached.(*tenant.Tenant); ok {
			return t, nil
		}
	}

	t, err := s.tenantRepo.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, t, 0)
	return t, nil
}

func (s *snapshotService) assemble(
	ctx context.Context,
	req dto.CreateExportRequest,
	t *tenant.Tenant,
	summary *numbering.AssignmentSummary,
	dataset *export.Dataset,
) *export.Snapshot {
	return &export.Snapshot{
		Meta: export.SnapshotMeta{
			Version:    export.SnapshotVersion,
			Type:       req.Type.String(),
			PeriodFrom: req.From.UTC().Format(time.RFC3339),
			PeriodTo:   req.To.UTC().Format(time.RFC3339),
			Tenant: export.SnapshotTenant{
				Name:       t.Name,
				BusinessID: t.BusinessID,
				VatNumber:  t.VatNumber,
			},
			GeneratedBy: export.SnapshotActor{
				ID:      types.GetUserID(ctx),
				Display: req.GeneratedBy,
			},
			Numbering: export.SnapshotNumbering{
				Period:               summary.Period,
				StartingNumber:       summary.StartingNumber,
				EndingNumber:         summary.EndingNumber,
				AssignedCount:        summary.AssignedCount,
				AlreadyNumberedCount: summary.AlreadyNumberedCount,
			},
		},
		Vat: export.SnapshotVat{
			ByRate:          formatBuckets(dataset.SummaryByRate),
			ByRateAndMethod: formatBuckets(dataset.SummaryByRateAndMethod),
		},
		Payments:   canonicalPayments(dataset.Rows),
		Exceptions: canonicalExceptions(dataset.Exceptions),
		Annex: export.SnapshotAnnex{
			Enabled: req.IncludeAnnex,
		},
	}
}

// canonicalPayments sorts rows by the numeric suffix of the receipt number
// (unnumbered rows last), tie-broken by captured timestamp then payment id,
// and formats money to fixed 2-decimal strings
func canonicalPayments(rows []*export.PaymentRow) []export.SnapshotPayment {
	sorted := make([]*export.PaymentRow, len(rows))
	copy(sorted, rows)

	sort.Slice(sorted, func(i, j int) bool {
		si, iOK := rowSequence(sorted[i])
		sj, jOK := rowSequence(sorted[j])
		if iOK != jOK {
			return iOK
		}
		if iOK && si != sj {
			return si < sj
		}
		if !sorted[i].CapturedAt.Equal(sorted[j].CapturedAt) {
			return sorted[i].CapturedAt.Before(sorted[j].CapturedAt)
		}
		return sorted[i].PaymentID < sorted[j].PaymentID
	})

	return lo.Map(sorted, func(row *export.PaymentRow, _ int) export.SnapshotPayment {
		var serviceDate *string
		if row.ServiceDate != nil {
			serviceDate = lo.ToPtr(row.ServiceDate.UTC().Format(time.RFC3339))
		}
		return export.SnapshotPayment{
			ReceiptNumber: row.ReceiptNumber,
			PaymentID:     row.PaymentID,
			CapturedAt:    row.CapturedAt.UTC().Format(time.RFC3339),
			ServiceDate:   serviceDate,
			VatRate:       row.VatRate.StringFixed(2),
			Base:          row.Base.StringFixed(2),
			Tax:           row.Tax.StringFixed(2),
			Total:         row.Total.StringFixed(2),
			Currency:      row.Currency,
			Method:        row.Method.String(),
			RideID:        row.RideID,
			DriverName:    row.DriverName,
		}
	})
}

func rowSequence(row *export.PaymentRow) (int64, bool) {
	if row.ReceiptNumber == nil {
		return 0, false
	}
	return types.ParseReceiptSequence(*row.ReceiptNumber)
}

func canonicalExceptions(exceptions export.Exceptions) export.SnapshotExceptions {
	rides := make([]export.RideWithoutPayment, len(exceptions.RidesWithoutPayments))
	copy(rides, exceptions.RidesWithoutPayments)
	sort.Slice(rides, func(i, j int) bool {
		ti := lo.FromPtr(rides[i].EndedAt)
		tj := lo.FromPtr(rides[j].EndedAt)
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return rides[i].RideID < rides[j].RideID
	})

	payments := make([]export.PaymentWithoutRide, len(exceptions.PaymentsWithoutRide))
	copy(payments, exceptions.PaymentsWithoutRide)
	sort.Slice(payments, func(i, j int) bool {
		if !payments[i].CapturedAt.Equal(payments[j].CapturedAt) {
			return payments[i].CapturedAt.Before(payments[j].CapturedAt)
		}
		return payments[i].PaymentID < payments[j].PaymentID
	})

	warnings := make([]string, len(exceptions.Warnings))
	copy(warnings, exceptions.Warnings)
	sort.Strings(warnings)

	return export.SnapshotExceptions{
		RidesWithoutPayments: lo.Map(rides, func(r export.RideWithoutPayment, _ int) export.SnapshotRideException {
			var endedAt *string
			if r.EndedAt != nil {
				endedAt = lo.ToPtr(r.EndedAt.UTC().Format(time.RFC3339))
			}
			var fareTotal *string
			if r.FareTotal != nil {
				fareTotal = lo.ToPtr(r.FareTotal.StringFixed(2))
			}
			return export.SnapshotRideException{
				RideID:     r.RideID,
				EndedAt:    endedAt,
				DriverName: r.DriverName,
				FareTotal:  fareTotal,
			}
		}),
		PaymentsWithoutRide: lo.Map(payments, func(p export.PaymentWithoutRide, _ int) export.SnapshotPaymentException {
			return export.SnapshotPaymentException{
				PaymentID:  p.PaymentID,
				CapturedAt: p.CapturedAt.UTC().Format(time.RFC3339),
				Amount:     p.Amount.StringFixed(2),
				Method:     p.Method.String(),
			}
		}),
		Warnings: warnings,
	}
}

// formatBuckets renders exact bucket sums as fixed 2-decimal strings with a
// stable field order per bucket
func formatBuckets(buckets []*export.VatBucket) []export.SnapshotVatBucket {
	return lo.Map(buckets, func(b *export.VatBucket, _ int) export.SnapshotVatBucket {
		return export.SnapshotVatBucket{
			Rate:   b.Rate.StringFixed(2),
			Method: b.Method.String(),
			Count:  b.Count,
			Base:   b.Base.StringFixed(2),
			Tax:    b.Tax.StringFixed(2),
			Total:  b.Total.StringFixed(2),
		}
	})
}
