package testutil

import (
	"context"
	"time"

	"github.com/cabfleet/cabfleet/internal/cache"
	"github.com/cabfleet/cabfleet/internal/config"
	"github.com/cabfleet/cabfleet/internal/domain/numbering"
	"github.com/cabfleet/cabfleet/internal/domain/payment"
	"github.com/cabfleet/cabfleet/internal/domain/ride"
	"github.com/cabfleet/cabfleet/internal/domain/tenant"
	"github.com/cabfleet/cabfleet/internal/logger"
	"github.com/cabfleet/cabfleet/internal/postgres"
	"github.com/cabfleet/cabfleet/internal/types"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	PaymentRepo   payment.Repository
	RideRepo      ride.Repository
	TenantRepo    tenant.Repository
	NumberingRepo numbering.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	stores Stores
	db     postgres.IClient
	cache  cache.Cache
	logger *logger.Logger
	config *config.Configuration
	now    time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelError

	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.db = NewMockPostgresClient(s.logger)
	s.cache = cache.NewInMemoryCache()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.ClearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContext()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		PaymentRepo:   NewInMemoryPaymentStore(),
		RideRepo:      NewInMemoryRideStore(),
		TenantRepo:    NewInMemoryTenantStore(),
		NumberingRepo: NewInMemorySequenceStore(),
	}
}

// ClearStores removes all items from every store
func (s *BaseServiceTestSuite) ClearStores() {
	s.stores.PaymentRepo.(*InMemoryPaymentStore).Clear()
	s.stores.RideRepo.(*InMemoryRideStore).Clear()
	s.stores.TenantRepo.(*InMemoryTenantStore).Clear()
	s.stores.NumberingRepo.(*InMemorySequenceStore).Clear()
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
