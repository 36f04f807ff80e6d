package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	portssvc "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/services"
	"github.com/btcpayserver/btcpayserver-sub006/internal/handlers"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock RateService ---
type MockRateService struct {
	mock.Mock
}

func (m *MockRateService) Aggregate(ctx context.Context, pairs []domain.CurrencyPair, chain domain.RuleChain, timeout time.Duration) []domain.RateResult {
	args := m.Called(ctx, pairs, chain, timeout)
	return args.Get(0).([]domain.RateResult)
}

func (m *MockRateService) GetRates(ctx context.Context, storeID string, rawPairs []string) ([]domain.RateResult, error) {
	args := m.Called(ctx, storeID, rawPairs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RateResult), args.Error(1)
}

// Ensure mock implements the interface
var _ portssvc.RateSvcFacade = (*MockRateService)(nil)

type RateHandlerTestSuite struct {
	suite.Suite
	router          *gin.Engine
	mockRateService *MockRateService
}

func (suite *RateHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.mockRateService = new(MockRateService)

	stores := suite.router.Group("/api/v1/stores/:storeId")
	handlers.RegisterRateRoutes(stores, suite.mockRateService)
}

func (suite *RateHandlerTestSuite) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *RateHandlerTestSuite) TestGetRates_PartialFailureKeepsOrder() {
	quote := domain.BidAsk{Bid: decimal.NewFromInt(50000), Ask: decimal.NewFromInt(50010)}
	suite.mockRateService.On("GetRates", mock.Anything, "store-1", []string{"BTC_USD", "BTC_EUR"}).Return([]domain.RateResult{
		{Pair: domain.NewCurrencyPair("BTC", "USD"), BidAsk: &quote, Errors: []string{}},
		{Pair: domain.NewCurrencyPair("BTC", "EUR"), Errors: []string{"upstream error: kraken returned 503"}},
	}, nil).Once()

	w := suite.get("/api/v1/stores/store-1/rates?currencyPair=BTC_USD,BTC_EUR")

	suite.Require().Equal(http.StatusOK, w.Code)
	suite.JSONEq(`[
		{"currencyPair":"BTC_USD","rate":"50000","bid":"50000","ask":"50010","errors":[]},
		{"currencyPair":"BTC_EUR","rate":null,"bid":null,"ask":null,"errors":["upstream error: kraken returned 503"]}
	]`, w.Body.String())
}

func (suite *RateHandlerTestSuite) TestGetRates_RepeatedParameter() {
	suite.mockRateService.On("GetRates", mock.Anything, "store-1", []string{"BTC_USD", "LTC_USD", "BTC_EUR"}).
		Return([]domain.RateResult{}, nil).Once()

	w := suite.get("/api/v1/stores/store-1/rates?currencyPair=BTC_USD,%20LTC_USD&currencyPair=BTC_EUR")

	suite.Equal(http.StatusOK, w.Code)
	suite.mockRateService.AssertExpectations(suite.T())
}

func (suite *RateHandlerTestSuite) TestGetRates_NoPairsUsesDefaults() {
	suite.mockRateService.On("GetRates", mock.Anything, "store-1", []string(nil)).
		Return([]domain.RateResult{{Pair: domain.NewCurrencyPair("BTC", "USD"), Errors: []string{"no rate rule matches BTC_USD"}}}, nil).Once()

	w := suite.get("/api/v1/stores/store-1/rates")

	suite.Require().Equal(http.StatusOK, w.Code)
	var resp []map[string]any
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Len(resp, 1)
}

func (suite *RateHandlerTestSuite) TestGetRates_InvalidPair() {
	suite.mockRateService.On("GetRates", mock.Anything, "store-1", []string{"XXX"}).
		Return(nil, apperrors.NewInvalidTokenError("XXX", "expected LEFT_RIGHT")).Once()

	w := suite.get("/api/v1/stores/store-1/rates?currencyPair=XXX")

	suite.Require().Equal(http.StatusBadRequest, w.Code)
	var resp map[string]string
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("XXX", resp["currencyPair"])
	suite.Contains(resp["error"], "XXX")
}

func (suite *RateHandlerTestSuite) TestGetRates_SettingsFailure() {
	suite.mockRateService.On("GetRates", mock.Anything, "store-1", []string{"BTC_USD"}).
		Return(nil, errors.New("connection refused")).Once()

	w := suite.get("/api/v1/stores/store-1/rates?currencyPair=BTC_USD")

	suite.Equal(http.StatusInternalServerError, w.Code)
	suite.NotContains(w.Body.String(), "connection refused")
}

func TestRateHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(RateHandlerTestSuite))
}
