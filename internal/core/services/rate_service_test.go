package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	portssvc "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/services"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock RateRuleEvaluator ---
type MockRateEvaluator struct {
	mock.Mock
}

func (m *MockRateEvaluator) Evaluate(ctx context.Context, pair domain.CurrencyPair, chain domain.RuleChain) (domain.BidAsk, []error) {
	args := m.Called(ctx, pair, chain)
	var errs []error
	if args.Get(1) != nil {
		errs = args.Get(1).([]error)
	}
	return args.Get(0).(domain.BidAsk), errs
}

// --- Mock RateSettingsReader ---
type MockRateSettingsRepository struct {
	mock.Mock
}

func (m *MockRateSettingsRepository) FindRateSettings(ctx context.Context, storeID string) (*domain.StoreRateSettings, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StoreRateSettings), args.Error(1)
}

// funcEvaluator adapts a function, for tests that need real concurrency.
type funcEvaluator func(ctx context.Context, pair domain.CurrencyPair) (domain.BidAsk, []error)

func (f funcEvaluator) Evaluate(ctx context.Context, pair domain.CurrencyPair, _ domain.RuleChain) (domain.BidAsk, []error) {
	return f(ctx, pair)
}

var (
	btcUSD = domain.NewCurrencyPair("BTC", "USD")
	btcEUR = domain.NewCurrencyPair("BTC", "EUR")
)

func quote(v int64) domain.BidAsk {
	return domain.BidAsk{Bid: decimal.NewFromInt(v), Ask: decimal.NewFromInt(v)}
}

// --- Test Suite ---
type RateServiceTestSuite struct {
	suite.Suite
	evaluator *MockRateEvaluator
	settings  *MockRateSettingsRepository
	service   portssvc.RateSvcFacade
	chain     domain.RuleChain
}

func (suite *RateServiceTestSuite) SetupTest() {
	suite.evaluator = new(MockRateEvaluator)
	suite.settings = new(MockRateSettingsRepository)
	suite.chain = domain.RuleChain{StoreID: "store-1", Rules: []domain.RateRule{{Pattern: "*_*", Sources: []string{"static"}}}}
	suite.service = services.NewRateService(suite.evaluator, suite.settings,
		services.WithRateWorkerLimit(4),
		services.WithRateEvaluationTimeout(time.Second),
		services.WithDefaultRateSettings(domain.StoreRateSettings{DefaultPairs: []domain.CurrencyPair{btcUSD}}),
	)
}

func (suite *RateServiceTestSuite) storeSettings(defaults ...domain.CurrencyPair) *domain.StoreRateSettings {
	return &domain.StoreRateSettings{StoreID: "store-1", DefaultPairs: defaults, Rules: suite.chain}
}

func (suite *RateServiceTestSuite) TestGetRates_PartialFailure() {
	ctx := context.Background()
	suite.settings.On("FindRateSettings", ctx, "store-1").Return(suite.storeSettings(), nil).Once()
	suite.evaluator.On("Evaluate", mock.Anything, btcUSD, suite.chain).Return(quote(50000), nil).Once()
	suite.evaluator.On("Evaluate", mock.Anything, btcEUR, suite.chain).
		Return(domain.BidAsk{}, []error{fmt.Errorf("%w: kraken returned 503", apperrors.ErrUpstream)}).Once()

	results, err := suite.service.GetRates(ctx, "store-1", []string{"BTC_USD", "BTC_EUR"})

	suite.Require().NoError(err)
	suite.Require().Len(results, 2)

	suite.Equal(btcUSD, results[0].Pair)
	suite.Require().NotNil(results[0].BidAsk)
	suite.True(results[0].BidAsk.Bid.Equal(decimal.NewFromInt(50000)))
	suite.Empty(results[0].Errors)

	suite.Equal(btcEUR, results[1].Pair)
	suite.Nil(results[1].BidAsk)
	suite.Len(results[1].Errors, 1)
	suite.Contains(results[1].Errors[0], "kraken returned 503")
	suite.evaluator.AssertExpectations(suite.T())
}

func (suite *RateServiceTestSuite) TestGetRates_EmptyUsesStoreDefaults() {
	ctx := context.Background()
	suite.settings.On("FindRateSettings", ctx, "store-1").Return(suite.storeSettings(btcUSD), nil).Once()
	suite.evaluator.On("Evaluate", mock.Anything, btcUSD, suite.chain).Return(quote(1), nil).Once()

	results, err := suite.service.GetRates(ctx, "store-1", nil)

	suite.Require().NoError(err)
	suite.Require().Len(results, 1)
	suite.Equal(btcUSD, results[0].Pair)
	suite.evaluator.AssertNumberOfCalls(suite.T(), "Evaluate", 1)
}

func (suite *RateServiceTestSuite) TestGetRates_UnknownStoreUsesServiceDefaults() {
	ctx := context.Background()
	suite.settings.On("FindRateSettings", ctx, "store-x").Return(nil, apperrors.ErrNotFound).Once()
	suite.evaluator.On("Evaluate", mock.Anything, btcUSD, domain.RuleChain{}).Return(quote(2), nil).Once()

	results, err := suite.service.GetRates(ctx, "store-x", []string{})

	suite.Require().NoError(err)
	suite.Require().Len(results, 1)
	suite.Equal(btcUSD, results[0].Pair)
}

func (suite *RateServiceTestSuite) TestGetRates_SettingsFailure() {
	ctx := context.Background()
	suite.settings.On("FindRateSettings", ctx, "store-1").Return(nil, errors.New("connection refused")).Once()

	results, err := suite.service.GetRates(ctx, "store-1", []string{"BTC_USD"})

	suite.Require().Error(err)
	suite.Nil(results)
	suite.Contains(err.Error(), "connection refused")
	suite.evaluator.AssertNotCalled(suite.T(), "Evaluate", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *RateServiceTestSuite) TestGetRates_DuplicatesCollapse() {
	ctx := context.Background()
	suite.settings.On("FindRateSettings", ctx, "store-1").Return(suite.storeSettings(), nil).Once()
	suite.evaluator.On("Evaluate", mock.Anything, btcUSD, suite.chain).Return(quote(3), nil).Once()

	results, err := suite.service.GetRates(ctx, "store-1", []string{"BTC_USD", "BTC_USD", "btc/usd"})

	suite.Require().NoError(err)
	suite.Len(results, 1)
	suite.evaluator.AssertNumberOfCalls(suite.T(), "Evaluate", 1)
}

func (suite *RateServiceTestSuite) TestGetRates_InvalidPairDispatchesNothing() {
	ctx := context.Background()

	results, err := suite.service.GetRates(ctx, "store-1", []string{"BTC_USD", "XXX", "YYY"})

	suite.Require().Error(err)
	suite.Nil(results)
	suite.ErrorIs(err, apperrors.ErrValidation)
	var tokenErr *apperrors.InvalidTokenError
	suite.Require().ErrorAs(err, &tokenErr)
	suite.Equal("XXX", tokenErr.Token)
	suite.settings.AssertNotCalled(suite.T(), "FindRateSettings", mock.Anything, mock.Anything)
	suite.evaluator.AssertNotCalled(suite.T(), "Evaluate", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *RateServiceTestSuite) TestGetRates_DistinctErrorsPerCause() {
	ctx := context.Background()
	suite.settings.On("FindRateSettings", ctx, "store-1").Return(suite.storeSettings(), nil).Once()
	suite.evaluator.On("Evaluate", mock.Anything, btcEUR, suite.chain).Return(domain.BidAsk{}, []error{
		errors.New("source a: 500"),
		errors.New("source b: timeout"),
		errors.New("source a: 500"),
	}).Once()

	results, err := suite.service.GetRates(ctx, "store-1", []string{"BTC_EUR"})

	suite.Require().NoError(err)
	suite.Require().Len(results, 1)
	suite.Equal([]string{"source a: 500", "source b: timeout"}, results[0].Errors)
	suite.Nil(results[0].BidAsk)
}

func (suite *RateServiceTestSuite) TestAggregate_SlowPairFailsAlone() {
	svc := services.NewRateService(funcEvaluator(func(ctx context.Context, pair domain.CurrencyPair) (domain.BidAsk, []error) {
		if pair == btcEUR {
			// Ignores ctx on purpose: the aggregator must still honour the deadline.
			time.Sleep(time.Second)
		}
		return quote(7), nil
	}), nil)

	start := time.Now()
	results := svc.Aggregate(context.Background(), []domain.CurrencyPair{btcUSD, btcEUR}, domain.RuleChain{}, 50*time.Millisecond)

	suite.Less(time.Since(start), 900*time.Millisecond)
	suite.Require().Len(results, 2)
	suite.NotNil(results[0].BidAsk)
	suite.Empty(results[0].Errors)
	suite.Nil(results[1].BidAsk)
	suite.Require().Len(results[1].Errors, 1)
	suite.Contains(results[1].Errors[0], apperrors.ErrTimeout.Error())
}

func (suite *RateServiceTestSuite) TestAggregate_DeadlineIsSharedByQueuedPairs() {
	var started atomic.Int32
	svc := services.NewRateService(funcEvaluator(func(ctx context.Context, _ domain.CurrencyPair) (domain.BidAsk, []error) {
		started.Add(1)
		<-ctx.Done()
		return domain.BidAsk{}, []error{ctx.Err()}
	}), nil, services.WithRateWorkerLimit(2))

	pairs := make([]domain.CurrencyPair, 0, 8)
	for i := 0; i < 8; i++ {
		pairs = append(pairs, domain.NewCurrencyPair(fmt.Sprintf("A%d", i), "USD"))
	}

	start := time.Now()
	results := svc.Aggregate(context.Background(), pairs, domain.RuleChain{}, 200*time.Millisecond)
	elapsed := time.Since(start)

	// Four batches of two would take 800ms if every task got its own timeout.
	suite.Less(elapsed, 500*time.Millisecond)
	suite.Require().Len(results, 8)
	for i, r := range results {
		suite.Equal(pairs[i], r.Pair)
		suite.Nil(r.BidAsk)
		suite.Require().Len(r.Errors, 1)
		suite.Contains(r.Errors[0], apperrors.ErrTimeout.Error())
	}
	suite.LessOrEqual(started.Load(), int32(4))
}

func (suite *RateServiceTestSuite) TestAggregate_CancelledRequest() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := services.NewRateService(funcEvaluator(func(ctx context.Context, _ domain.CurrencyPair) (domain.BidAsk, []error) {
		<-ctx.Done()
		return domain.BidAsk{}, []error{ctx.Err()}
	}), nil)

	results := svc.Aggregate(ctx, []domain.CurrencyPair{btcUSD, btcEUR}, domain.RuleChain{}, time.Second)

	suite.Require().Len(results, 2)
	for _, r := range results {
		suite.Nil(r.BidAsk)
		suite.NotEmpty(r.Errors)
	}
}

func (suite *RateServiceTestSuite) TestAggregate_RespectsWorkerLimit() {
	var running, peak atomic.Int32
	var mu sync.Mutex
	seen := map[domain.CurrencyPair]int{}

	svc := services.NewRateService(funcEvaluator(func(_ context.Context, pair domain.CurrencyPair) (domain.BidAsk, []error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		mu.Lock()
		seen[pair]++
		mu.Unlock()
		return quote(1), nil
	}), nil, services.WithRateWorkerLimit(3))

	pairs := make([]domain.CurrencyPair, 0, 12)
	for i := 0; i < 12; i++ {
		pairs = append(pairs, domain.NewCurrencyPair(fmt.Sprintf("A%d", i), "USD"))
	}
	results := svc.Aggregate(context.Background(), pairs, domain.RuleChain{}, time.Second)

	suite.Len(results, 12)
	suite.LessOrEqual(peak.Load(), int32(3))
	for i, r := range results {
		suite.Equal(pairs[i], r.Pair)
		suite.Equal(1, seen[r.Pair])
		suite.NotNil(r.BidAsk)
	}
}

func TestRateServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RateServiceTestSuite))
}
