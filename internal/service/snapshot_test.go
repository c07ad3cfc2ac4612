package service

import (
	"strings"
	"testing"
	"time"

	"github.com/cabfleet/cabfleet/internal/api/dto"
	"github.com/cabfleet/cabfleet/internal/domain/payment"
	"github.com/cabfleet/cabfleet/internal/domain/ride"
	"github.com/cabfleet/cabfleet/internal/domain/tenant"
	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/testutil"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SnapshotServiceSuite struct {
	testutil.BaseServiceTestSuite
	service SnapshotService
}

func TestSnapshotService(t *testing.T) {
	suite.Run(t, new(SnapshotServiceSuite))
}

func (s *SnapshotServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	numbering := NewNumberingService(
		s.GetDB(),
		s.GetStores().PaymentRepo,
		s.GetStores().NumberingRepo,
		s.GetLogger(),
	)
	exportData := NewExportDataService(
		s.GetStores().PaymentRepo,
		s.GetStores().RideRepo,
		NewVatCalculator(),
		s.GetLogger(),
	)
	s.service = NewSnapshotService(
		s.GetStores().TenantRepo,
		s.GetCache(),
		numbering,
		exportData,
		s.GetLogger(),
	)

	s.createTenant()
}

func (s *SnapshotServiceSuite) createTenant() {
	now := time.Now().UTC()
	s.NoError(s.GetStores().TenantRepo.Create(s.GetContext(), &tenant.Tenant{
		ID:         types.GetTenantID(s.GetContext()),
		Name:       "City Cabs Ltd",
		BusinessID: "FI-1234567-8",
		VatNumber:  lo.ToPtr("FI12345678"),
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
}

func (s *SnapshotServiceSuite) createRideWithPayment(suffix string, endedAt time.Time, total string) {
	rideID := "ride_" + suffix
	subtotal := decimal.RequireFromString(total).Div(decimal.RequireFromString("1.14")).Round(2)
	tax := decimal.RequireFromString(total).Sub(subtotal)

	s.NoError(s.GetStores().RideRepo.Create(s.GetContext(), &ride.Ride{
		ID:           rideID,
		DriverID:     "drv_" + suffix,
		DriverName:   "Driver " + suffix,
		RideStatus:   types.RideStatusCompleted,
		StartedAt:    endedAt.Add(-15 * time.Minute),
		EndedAt:      lo.ToPtr(endedAt),
		FareSubtotal: lo.ToPtr(subtotal),
		FareTax:      lo.ToPtr(tax),
		FareTotal:    lo.ToPtr(decimal.RequireFromString(total)),
		BaseModel:    types.GetDefaultBaseModel(s.GetContext()),
	}))

	s.NoError(s.GetStores().PaymentRepo.Create(s.GetContext(), &payment.Payment{
		ID:            "pay_" + suffix,
		RideID:        lo.ToPtr(rideID),
		Amount:        decimal.RequireFromString(total),
		Currency:      "EUR",
		Method:        types.PaymentMethodCard,
		PaymentStatus: types.PaymentStatusPaid,
		CapturedAt:    endedAt.Add(2 * time.Minute),
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}))
}

func (s *SnapshotServiceSuite) januaryRequest() dto.CreateExportRequest {
	return dto.CreateExportRequest{
		From:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Type:        types.ExportTypeSimplified,
		GeneratedBy: "dispatcher@citycabs.example",
	}
}

func (s *SnapshotServiceSuite) TestRepeatedBuildsProduceIdenticalHash() {
	s.createRideWithPayment("a", time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), "114.00")
	s.createRideWithPayment("b", time.Date(2025, 1, 12, 16, 30, 0, 0, time.UTC), "57.00")

	// The first build assigns numbers, so it changes the data it snapshots.
	// Every build after that runs over an unchanged, fully numbered dataset
	// and must reproduce the same fingerprint.
	first, err := s.service.BuildSnapshot(s.GetContext(), s.januaryRequest())
	s.NoError(err)
	second, err := s.service.BuildSnapshot(s.GetContext(), s.januaryRequest())
	s.NoError(err)
	third, err := s.service.BuildSnapshot(s.GetContext(), s.januaryRequest())
	s.NoError(err)

	s.Regexp("^[0-9a-f]{64}$", first.SHA256)
	s.Equal(second.SHA256, third.SHA256)
	s.Equal(second.CanonicalJSON, third.CanonicalJSON)

	// The repeat runs assigned nothing new, they only re-read
	s.Equal(0, second.Snapshot.Meta.Numbering.AssignedCount)
	s.Equal(2, second.Snapshot.Meta.Numbering.AlreadyNumberedCount)
}

func (s *SnapshotServiceSuite) TestGeneratedAtIsOutsideTheHash() {
	s.createRideWithPayment("a", time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), "114.00")

	resp, err := s.service.BuildSnapshot(s.GetContext(), s.januaryRequest())
	s.NoError(err)

	s.NotEmpty(resp.Snapshot.Meta.GeneratedAt)
	s.NotContains(resp.CanonicalJSON, "generated_at")
}

func (s *SnapshotServiceSuite) TestPaymentsOrderedByReceiptNumber() {
	// Created newest-first, the snapshot must still come out in receipt order
	s.createRideWithPayment("late", time.Date(2025, 1, 25, 10, 0, 0, 0, time.UTC), "34.20")
	s.createRideWithPayment("mid", time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC), "22.80")
	s.createRideWithPayment("early", time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), "11.40")

	resp, err := s.service.BuildSnapshot(s.GetContext(), s.januaryRequest())
	s.NoError(err)

	s.Len(resp.Snapshot.Payments, 3)
	s.Equal("202501-0001", lo.FromPtr(resp.Snapshot.Payments[0].ReceiptNumber))
	s.Equal("pay_early", resp.Snapshot.Payments[0].PaymentID)
	s.Equal("202501-0002", lo.FromPtr(resp.Snapshot.Payments[1].ReceiptNumber))
	s.Equal("pay_mid", resp.Snapshot.Payments[1].PaymentID)
	s.Equal("202501-0003", lo.FromPtr(resp.Snapshot.Payments[2].ReceiptNumber))
	s.Equal("pay_late", resp.Snapshot.Payments[2].PaymentID)
}

func (s *SnapshotServiceSuite) TestMetaCarriesTenantAndNumbering() {
	s.createRideWithPayment("a", time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), "114.00")

	resp, err := s.service.BuildSnapshot(s.GetContext(), s.januaryRequest())
	s.NoError(err)

	meta := resp.Snapshot.Meta
	s.Equal("v1", meta.Version)
	s.Equal("simplified", meta.Type)
	s.Equal("City Cabs Ltd", meta.Tenant.Name)
	s.Equal("FI-1234567-8", meta.Tenant.BusinessID)
	s.Equal("FI12345678", lo.FromPtr(meta.Tenant.VatNumber))
	s.Equal("dispatcher@citycabs.example", meta.GeneratedBy.Display)

	s.Equal("202501", meta.Numbering.Period)
	s.Equal(int64(1), meta.Numbering.StartingNumber)
	s.Equal(int64(1), meta.Numbering.EndingNumber)
	s.Equal(1, meta.Numbering.AssignedCount)
}

func (s *SnapshotServiceSuite) TestVatBlockUsesFixedDecimals() {
	s.createRideWithPayment("a", time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), "114.00")

	resp, err := s.service.BuildSnapshot(s.GetContext(), s.januaryRequest())
	s.NoError(err)

	s.Len(resp.Snapshot.Vat.ByRate, 1)
	bucket := resp.Snapshot.Vat.ByRate[0]
	s.Equal("0.14", bucket.Rate)
	s.Equal(1, bucket.Count)
	s.Equal("100.00", bucket.Base)
	s.Equal("14.00", bucket.Tax)
	s.Equal("114.00", bucket.Total)

	s.Len(resp.Snapshot.Vat.ByRateAndMethod, 1)
	s.Equal("CARD", resp.Snapshot.Vat.ByRateAndMethod[0].Method)
}

func (s *SnapshotServiceSuite) TestAnnexFlagCarriedThrough() {
	s.createRideWithPayment("a", time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), "114.00")

	req := s.januaryRequest()
	req.IncludeAnnex = true

	resp, err := s.service.BuildSnapshot(s.GetContext(), req)
	s.NoError(err)
	s.True(resp.Snapshot.Annex.Enabled)
}

func (s *SnapshotServiceSuite) TestResponseCarriesDisplayReference() {
	s.createRideWithPayment("a", time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), "114.00")

	first, err := s.service.BuildSnapshot(s.GetContext(), s.januaryRequest())
	s.NoError(err)
	second, err := s.service.BuildSnapshot(s.GetContext(), s.januaryRequest())
	s.NoError(err)

	s.NotEmpty(first.Reference)
	s.True(strings.HasPrefix(first.Reference, "EXP"))
	s.LessOrEqual(len(first.Reference), 12)

	// The reference identifies a run, not the data: it changes per build
	// while the fingerprint does not, so it must stay out of the hashed
	// document
	s.NotEqual(first.Reference, second.Reference)
	s.NotContains(first.CanonicalJSON, `"reference"`)
}

func (s *SnapshotServiceSuite) TestRejectsMissingGeneratedBy() {
	req := s.januaryRequest()
	req.GeneratedBy = ""

	resp, err := s.service.BuildSnapshot(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))
	s.Nil(resp)
}

func (s *SnapshotServiceSuite) TestRejectsUnsupportedExportType() {
	req := s.januaryRequest()
	req.Type = "full"

	resp, err := s.service.BuildSnapshot(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))
	s.Nil(resp)
}

func (s *SnapshotServiceSuite) TestFailsForUnknownTenant() {
	s.GetStores().TenantRepo.(*testutil.InMemoryTenantStore).Clear()

	resp, err := s.service.BuildSnapshot(s.GetContext(), s.januaryRequest())
	s.Error(err)
	s.True(ierr.IsNotFound(err))
	s.Nil(resp)
}

func (s *SnapshotServiceSuite) TestEmptyWindowStillHashes() {
	resp, err := s.service.BuildSnapshot(s.GetContext(), s.januaryRequest())
	s.NoError(err)

	s.Regexp("^[0-9a-f]{64}$", resp.SHA256)
	s.Empty(resp.Snapshot.Payments)
	s.Contains(resp.CanonicalJSON, `"payments":[]`)
	s.Contains(resp.CanonicalJSON, `"warnings":[]`)
}
