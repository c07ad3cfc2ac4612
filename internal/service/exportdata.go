package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cabfleet/cabfleet/internal/domain/export"
	"github.com/cabfleet/cabfleet/internal/domain/payment"
	"github.com/cabfleet/cabfleet/internal/domain/ride"
	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/logger"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// reconciliationTolerance is the largest payment/fare delta (in currency
// units) that does not raise a warning
var reconciliationTolerance = decimal.NewFromFloat(0.01)

// ExportDataService loads the paid transactions of a window, joins ride
// context, computes VAT amounts and collects data-integrity exceptions
type ExportDataService interface {
	LoadPaymentsDataset(ctx context.Context, from, to time.Time) (*export.Dataset, error)
}

type exportDataService struct {
	logger      *logger.Logger
	paymentRepo payment.Repository
	rideRepo    ride.Repository
	vat         VatCalculator
}

// NewExportDataService creates an ExportDataService
func NewExportDataService(
	paymentRepo payment.Repository,
	rideRepo ride.Repository,
	vat VatCalculator,
	logger *logger.Logger,
) ExportDataService {
	return &exportDataService{
		logger:      logger,
		paymentRepo: paymentRepo,
		rideRepo:    rideRepo,
		vat:         vat,
	}
}

func (s *exportDataService) LoadPaymentsDataset(ctx context.Context, from, to time.Time) (*export.Dataset, error) {
	if from.IsZero() || to.IsZero() || !from.Before(to) {
		return nil, ierr.NewError("invalid export window").
			WithHint("From must be before to").
			Mark(ierr.ErrValidation)
	}

	payments, err := s.paymentRepo.ListPaidInWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}

	rideIDs := lo.FilterMap(payments, func(p *payment.Payment, _ int) (string, bool) {
		return lo.FromPtr(p.RideID), p.RideID != nil
	})
	rides, err := s.rideRepo.ListByIDs(ctx, lo.Uniq(rideIDs))
	if err != nil {
		return nil, err
	}
	ridesByID := lo.KeyBy(rides, func(r *ride.Ride) string { return r.ID })

	dataset := &export.Dataset{
		Rows: make([]*export.PaymentRow, 0, len(payments)),
		Exceptions: export.Exceptions{
			RidesWithoutPayments: []export.RideWithoutPayment{},
			PaymentsWithoutRide:  []export.PaymentWithoutRide{},
			Warnings:             []string{},
		},
	}

	byRate := map[string]*export.VatBucket{}
	byRateAndMethod := map[string]*export.VatBucket{}

	for _, p := range payments {
		var rd *ride.Ride
		if p.RideID != nil {
			rd = ridesByID[*p.RideID]
		}

		row := s.buildRow(p, rd)
		dataset.Rows = append(dataset.Rows, row)

		// Orphan payment: no ride link, or the link points at a missing row
		if rd == nil {
			dataset.Exceptions.PaymentsWithoutRide = append(dataset.Exceptions.PaymentsWithoutRide,
				export.PaymentWithoutRide{
					PaymentID:  p.ID,
					CapturedAt: p.CapturedAt,
					Amount:     p.Amount,
					Method:     p.Method,
				})
		}

		// Data drift between the captured amount and the authoritative fare
		// is surfaced, not blocking
		if rd != nil && rd.FareTotal != nil {
			delta := p.Amount.Sub(*rd.FareTotal).Abs()
			if delta.GreaterThan(reconciliationTolerance) {
				dataset.Exceptions.Warnings = append(dataset.Exceptions.Warnings,
					fmt.Sprintf("payment %s amount %s differs from ride %s fare total %s",
						p.ID, p.Amount.StringFixed(2), rd.ID, rd.FareTotal.StringFixed(2)))
			}
		}

		accumulate(byRate, bucketKey(row.VatRate, ""), row, "")
		accumulate(byRateAndMethod, bucketKey(row.VatRate, p.Method), row, p.Method)
	}

	ridesWithoutPayments, err := s.findRidesWithoutPayments(ctx, from, to)
	if err != nil {
		return nil, err
	}
	dataset.Exceptions.RidesWithoutPayments = ridesWithoutPayments

	dataset.SummaryByRate = sortedBuckets(byRate)
	dataset.SummaryByRateAndMethod = sortedBuckets(byRateAndMethod)

	return dataset, nil
}

func (s *exportDataService) buildRow(p *payment.Payment, rd *ride.Ride) *export.PaymentRow {
	var serviceDate *time.Time
	var driverName *string
	var rideID *string

	params := AmountParams{PaymentAmount: p.Amount}
	if rd != nil {
		serviceDate = rd.EndedAt
		rideID = &rd.ID
		if rd.DriverName != "" {
			driverName = &rd.DriverName
		}
		if rd.HasFareBreakdown() {
			params.RideSubtotal = rd.FareSubtotal
			params.RideTax = rd.FareTax
			params.RideTotal = rd.FareTotal
		}
	}

	rate := s.vat.RateFor(serviceDate)
	params.Rate = rate
	amounts := s.vat.ComputeAmounts(params)

	return &export.PaymentRow{
		PaymentID:     p.ID,
		ReceiptNumber: p.ReceiptNumber,
		CapturedAt:    p.CapturedAt,
		ServiceDate:   serviceDate,
		Method:        p.Method,
		Currency:      p.Currency,
		VatRate:       rate,
		Base:          amounts.Base,
		Tax:           amounts.Tax,
		Total:         amounts.Total,
		RideID:        rideID,
		DriverName:    driverName,
	}
}

// findRidesWithoutPayments flags completed rides in the window whose linked
// payment is missing or never reached PAID
func (s *exportDataService) findRidesWithoutPayments(ctx context.Context, from, to time.Time) ([]export.RideWithoutPayment, error) {
	completed, err := s.rideRepo.ListCompletedInWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(completed) == 0 {
		return []export.RideWithoutPayment{}, nil
	}

	linked, err := s.paymentRepo.ListByRideIDs(ctx, lo.Map(completed, func(r *ride.Ride, _ int) string {
		return r.ID
	}))
	if err != nil {
		return nil, err
	}

	paidRides := map[string]bool{}
	for _, p := range linked {
		if p.RideID != nil && p.PaymentStatus == types.PaymentStatusPaid {
			paidRides[*p.RideID] = true
		}
	}

	result := []export.RideWithoutPayment{}
	for _, r := range completed {
		if paidRides[r.ID] {
			continue
		}
		result = append(result, export.RideWithoutPayment{
			RideID:     r.ID,
			EndedAt:    r.EndedAt,
			DriverName: r.DriverName,
			FareTotal:  r.FareTotal,
		})
	}
	return result, nil
}

func bucketKey(rate decimal.Decimal, method types.PaymentMethod) string {
	return rate.String() + "|" + method.String()
}

// accumulate keeps exact decimal running sums, rounded strings are never
// summed
func accumulate(buckets map[string]*export.VatBucket, key string, row *export.PaymentRow, method types.PaymentMethod) {
	b, ok := buckets[key]
	if !ok {
		b = &export.VatBucket{Rate: row.VatRate, Method: method}
		buckets[key] = b
	}
	b.Count++
	b.Base = b.Base.Add(row.Base)
	b.Tax = b.Tax.Add(row.Tax)
	b.Total = b.Total.Add(row.Total)
}

func sortedBuckets(buckets map[string]*export.VatBucket) []*export.VatBucket {
	result := lo.Values(buckets)
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Rate.Equal(result[j].Rate) {
			return result[i].Rate.LessThan(result[j].Rate)
		}
		return result[i].Method < result[j].Method
	})
	return result
}
