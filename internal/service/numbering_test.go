package service

import (
	"context"
	"testing"
	"time"

	"github.com/cabfleet/cabfleet/internal/api/dto"
	"github.com/cabfleet/cabfleet/internal/domain/numbering"
	"github.com/cabfleet/cabfleet/internal/domain/payment"
	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/testutil"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// conflictingSequenceStore fails lock acquisition a fixed number of times
// before delegating, the way a serialization failure surfaces under
// contention on the same sequence row
type conflictingSequenceStore struct {
	numbering.Repository
	conflicts int
}

func (s *conflictingSequenceStore) GetOrCreateForUpdate(ctx context.Context, documentType types.DocumentType, period string) (*numbering.NumberSequence, error) {
	if s.conflicts > 0 {
		s.conflicts--
		return nil, ierr.NewError("could not serialize access").
			WithHint("Concurrent numbering conflict, retry the export").
			Mark(ierr.ErrVersionConflict)
	}
	return s.Repository.GetOrCreateForUpdate(ctx, documentType, period)
}

type NumberingServiceSuite struct {
	testutil.BaseServiceTestSuite
	service NumberingService
}

func TestNumberingService(t *testing.T) {
	suite.Run(t, new(NumberingServiceSuite))
}

func (s *NumberingServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewNumberingService(
		s.GetDB(),
		s.GetStores().PaymentRepo,
		s.GetStores().NumberingRepo,
		s.GetLogger(),
	)
}

func (s *NumberingServiceSuite) createPaidPayment(id string, capturedAt time.Time) *payment.Payment {
	p := &payment.Payment{
		ID:            id,
		Amount:        decimal.NewFromFloat(114.00),
		Currency:      "EUR",
		Method:        types.PaymentMethodCard,
		PaymentStatus: types.PaymentStatusPaid,
		CapturedAt:    capturedAt,
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PaymentRepo.Create(s.GetContext(), p))
	return p
}

func (s *NumberingServiceSuite) januaryWindow() dto.AssignNumbersRequest {
	return dto.AssignNumbersRequest{
		From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *NumberingServiceSuite) TestAssignsSequentialNumbersInCaptureOrder() {
	// Created out of capture order on purpose
	s.createPaidPayment("pay_c", time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC))
	s.createPaidPayment("pay_a", time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC))
	s.createPaidPayment("pay_b", time.Date(2025, 1, 10, 14, 30, 0, 0, time.UTC))

	summary, err := s.service.AssignReceiptNumbers(s.GetContext(), s.januaryWindow())
	s.NoError(err)

	s.Equal("202501", summary.Period)
	s.Equal(int64(1), summary.StartingNumber)
	s.Equal(int64(3), summary.EndingNumber)
	s.Equal(3, summary.AssignedCount)
	s.Equal(0, summary.AlreadyNumberedCount)

	s.Len(summary.Assigned, 3)
	s.Equal("pay_a", summary.Assigned[0].PaymentID)
	s.Equal("202501-0001", summary.Assigned[0].ReceiptNumber)
	s.Equal("pay_b", summary.Assigned[1].PaymentID)
	s.Equal("202501-0002", summary.Assigned[1].ReceiptNumber)
	s.Equal("pay_c", summary.Assigned[2].PaymentID)
	s.Equal("202501-0003", summary.Assigned[2].ReceiptNumber)

	p, err := s.GetStores().PaymentRepo.Get(s.GetContext(), "pay_b")
	s.NoError(err)
	s.Equal("202501-0002", lo.FromPtr(p.ReceiptNumber))
	s.Equal("202501", lo.FromPtr(p.NumberPeriod))
}

func (s *NumberingServiceSuite) TestSecondRunIsNoop() {
	s.createPaidPayment("pay_1", time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC))
	s.createPaidPayment("pay_2", time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC))

	first, err := s.service.AssignReceiptNumbers(s.GetContext(), s.januaryWindow())
	s.NoError(err)
	s.Equal(2, first.AssignedCount)

	second, err := s.service.AssignReceiptNumbers(s.GetContext(), s.januaryWindow())
	s.NoError(err)

	s.Equal(0, second.AssignedCount)
	s.Equal(2, second.AlreadyNumberedCount)
	s.Equal(int64(2), second.StartingNumber)
	s.Equal(int64(2), second.EndingNumber)
	s.Empty(second.Assigned)
}

func (s *NumberingServiceSuite) TestContinuesFromStoredCounter() {
	s.createPaidPayment("pay_1", time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC))
	s.createPaidPayment("pay_2", time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC))

	_, err := s.service.AssignReceiptNumbers(s.GetContext(), dto.AssignNumbersRequest{
		From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	s.NoError(err)

	s.createPaidPayment("pay_3", time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC))
	s.createPaidPayment("pay_4", time.Date(2025, 1, 16, 8, 0, 0, 0, time.UTC))

	summary, err := s.service.AssignReceiptNumbers(s.GetContext(), s.januaryWindow())
	s.NoError(err)

	s.Equal(int64(3), summary.StartingNumber)
	s.Equal(int64(4), summary.EndingNumber)
	s.Equal(2, summary.AssignedCount)
	s.Equal(2, summary.AlreadyNumberedCount)
	s.Equal("202501-0003", summary.Assigned[0].ReceiptNumber)
	s.Equal("202501-0004", summary.Assigned[1].ReceiptNumber)
}

func (s *NumberingServiceSuite) TestIgnoresNonPaidAndForeignTenantPayments() {
	s.createPaidPayment("pay_paid", time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC))

	pending := &payment.Payment{
		ID:            "pay_pending",
		Amount:        decimal.NewFromFloat(20.00),
		Currency:      "EUR",
		Method:        types.PaymentMethodCash,
		PaymentStatus: types.PaymentStatusPending,
		CapturedAt:    time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC),
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PaymentRepo.Create(s.GetContext(), pending))

	foreign := &payment.Payment{
		ID:            "pay_foreign",
		Amount:        decimal.NewFromFloat(30.00),
		Currency:      "EUR",
		Method:        types.PaymentMethodCard,
		PaymentStatus: types.PaymentStatusPaid,
		CapturedAt:    time.Date(2025, 1, 7, 8, 0, 0, 0, time.UTC),
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	foreign.TenantID = "tenant_other"
	s.NoError(s.GetStores().PaymentRepo.Create(s.GetContext(), foreign))

	summary, err := s.service.AssignReceiptNumbers(s.GetContext(), s.januaryWindow())
	s.NoError(err)

	s.Equal(1, summary.AssignedCount)
	s.Equal("pay_paid", summary.Assigned[0].PaymentID)

	p, err := s.GetStores().PaymentRepo.Get(s.GetContext(), "pay_pending")
	s.NoError(err)
	s.Nil(p.ReceiptNumber)
}

func (s *NumberingServiceSuite) TestRejectsMultiMonthWindow() {
	summary, err := s.service.AssignReceiptNumbers(s.GetContext(), dto.AssignNumbersRequest{
		From: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
	})

	s.Error(err)
	s.True(ierr.IsValidation(err))
	s.Nil(summary)
}

func (s *NumberingServiceSuite) TestRejectsInvertedWindow() {
	summary, err := s.service.AssignReceiptNumbers(s.GetContext(), dto.AssignNumbersRequest{
		From: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	})

	s.Error(err)
	s.True(ierr.IsValidation(err))
	s.Nil(summary)
}

func (s *NumberingServiceSuite) TestRejectsCrossPeriodNumbering() {
	p := s.createPaidPayment("pay_old", time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC))
	p.ReceiptNumber = lo.ToPtr("202412-0007")
	p.NumberPeriod = lo.ToPtr("202412")
	s.NoError(s.GetStores().PaymentRepo.UpdateReceiptNumber(s.GetContext(), p))

	summary, err := s.service.AssignReceiptNumbers(s.GetContext(), s.januaryWindow())

	s.Error(err)
	s.True(ierr.IsIntegrity(err))
	s.Nil(summary)
}

func (s *NumberingServiceSuite) TestEmptyWindowReportsStoredCounter() {
	summary, err := s.service.AssignReceiptNumbers(s.GetContext(), s.januaryWindow())
	s.NoError(err)

	s.Equal("202501", summary.Period)
	s.Equal(int64(0), summary.StartingNumber)
	s.Equal(int64(0), summary.EndingNumber)
	s.Equal(0, summary.AssignedCount)
	s.Equal(0, summary.AlreadyNumberedCount)
	s.Empty(summary.Assigned)
}

func (s *NumberingServiceSuite) TestNumbersGrowPastPaddingWidth() {
	seq, err := s.GetStores().NumberingRepo.GetOrCreateForUpdate(s.GetContext(), types.DocumentTypeReceipt, "202501")
	s.NoError(err)
	seq.Current = 9999
	s.NoError(s.GetStores().NumberingRepo.Save(s.GetContext(), seq))

	s.createPaidPayment("pay_next", time.Date(2025, 1, 20, 8, 0, 0, 0, time.UTC))

	summary, err := s.service.AssignReceiptNumbers(s.GetContext(), s.januaryWindow())
	s.NoError(err)

	s.Equal(int64(10000), summary.StartingNumber)
	s.Equal(int64(10000), summary.EndingNumber)
	s.Equal("202501-10000", summary.Assigned[0].ReceiptNumber)
}

func (s *NumberingServiceSuite) TestSequencesAreIndependentPerPeriod() {
	s.createPaidPayment("pay_jan", time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC))
	s.createPaidPayment("pay_feb", time.Date(2025, 2, 5, 8, 0, 0, 0, time.UTC))

	jan, err := s.service.AssignReceiptNumbers(s.GetContext(), s.januaryWindow())
	s.NoError(err)
	s.Equal("202501-0001", jan.Assigned[0].ReceiptNumber)

	feb, err := s.service.AssignReceiptNumbers(s.GetContext(), dto.AssignNumbersRequest{
		From: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	s.NoError(err)

	s.Equal("202502", feb.Period)
	s.Equal("202502-0001", feb.Assigned[0].ReceiptNumber)
}

func (s *NumberingServiceSuite) TestInterleavedAllocatorsShareTheSequence() {
	// Two independent service instances over the same stores, the way two
	// concurrent export requests would hit the same (tenant, period) key
	other := NewNumberingService(
		s.GetDB(),
		s.GetStores().PaymentRepo,
		s.GetStores().NumberingRepo,
		s.GetLogger(),
	)

	s.createPaidPayment("pay_a", time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC))
	s.createPaidPayment("pay_b", time.Date(2025, 1, 4, 8, 0, 0, 0, time.UTC))

	first, err := s.service.AssignReceiptNumbers(s.GetContext(), dto.AssignNumbersRequest{
		From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	s.NoError(err)
	s.Equal(2, first.AssignedCount)

	s.createPaidPayment("pay_c", time.Date(2025, 1, 12, 8, 0, 0, 0, time.UTC))

	// The second allocator's window overlaps everything the first numbered
	second, err := other.AssignReceiptNumbers(s.GetContext(), s.januaryWindow())
	s.NoError(err)
	s.Equal(int64(3), second.StartingNumber)
	s.Equal(int64(3), second.EndingNumber)
	s.Equal(1, second.AssignedCount)
	s.Equal(2, second.AlreadyNumberedCount)

	// Every value 1..3 was issued exactly once across both allocators
	issued := map[string]string{}
	for _, id := range []string{"pay_a", "pay_b", "pay_c"} {
		p, err := s.GetStores().PaymentRepo.Get(s.GetContext(), id)
		s.NoError(err)
		s.NotNil(p.ReceiptNumber)
		issued[*p.ReceiptNumber] = id
	}
	s.Len(issued, 3)
	s.Contains(issued, "202501-0001")
	s.Contains(issued, "202501-0002")
	s.Contains(issued, "202501-0003")
}

func (s *NumberingServiceSuite) TestRetriesAfterSerializationConflict() {
	s.createPaidPayment("pay_1", time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC))
	s.createPaidPayment("pay_2", time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC))

	flaky := &conflictingSequenceStore{
		Repository: s.GetStores().NumberingRepo,
		conflicts:  1,
	}
	svc := NewNumberingService(s.GetDB(), s.GetStores().PaymentRepo, flaky, s.GetLogger())

	summary, err := svc.AssignReceiptNumbers(s.GetContext(), s.januaryWindow())
	s.NoError(err)

	s.Equal(0, flaky.conflicts)
	s.Equal(2, summary.AssignedCount)
	s.Equal("202501-0001", summary.Assigned[0].ReceiptNumber)
	s.Equal("202501-0002", summary.Assigned[1].ReceiptNumber)
}

func (s *NumberingServiceSuite) TestGivesUpAfterRepeatedConflicts() {
	s.createPaidPayment("pay_1", time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC))

	// One initial attempt plus allocationRetries retries, all conflicting
	flaky := &conflictingSequenceStore{
		Repository: s.GetStores().NumberingRepo,
		conflicts:  allocationRetries + 1,
	}
	svc := NewNumberingService(s.GetDB(), s.GetStores().PaymentRepo, flaky, s.GetLogger())

	summary, err := svc.AssignReceiptNumbers(s.GetContext(), s.januaryWindow())
	s.Error(err)
	s.True(ierr.IsVersionConflict(err))
	s.Nil(summary)

	// Nothing was numbered, the payment is picked up cleanly next time
	p, err := s.GetStores().PaymentRepo.Get(s.GetContext(), "pay_1")
	s.NoError(err)
	s.Nil(p.ReceiptNumber)
}
