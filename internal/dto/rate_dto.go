package dto

import (
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	"github.com/shopspring/decimal"
)

// StoreRateResponse is one entry of the rates endpoint. Rate, Bid and Ask are null when Errors is not empty.
type StoreRateResponse struct {
	CurrencyPair string           `json:"currencyPair" example:"BTC_USD"`
	Rate         *decimal.Decimal `json:"rate" swaggertype:"string" example:"50000"`
	Bid          *decimal.Decimal `json:"bid" swaggertype:"string" example:"50000"`
	Ask          *decimal.Decimal `json:"ask" swaggertype:"string" example:"50010"`
	Errors       []string         `json:"errors"`
}

// InvalidCurrencyPairResponse names the first token that failed to parse.
type InvalidCurrencyPairResponse struct {
	Error        string `json:"error"`
	CurrencyPair string `json:"currencyPair"`
}

// ToStoreRateResponse converts a domain.RateResult to StoreRateResponse DTO
func ToStoreRateResponse(r domain.RateResult) StoreRateResponse {
	resp := StoreRateResponse{CurrencyPair: r.Pair.String(), Errors: r.Errors}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	if r.BidAsk != nil && len(r.Errors) == 0 {
		bid, ask := r.BidAsk.Bid, r.BidAsk.Ask
		resp.Rate = &bid
		resp.Bid = &bid
		resp.Ask = &ask
	}
	return resp
}

// ToStoreRateResponses converts results, keeping their order.
func ToStoreRateResponses(results []domain.RateResult) []StoreRateResponse {
	out := make([]StoreRateResponse, 0, len(results))
	for _, r := range results {
		out = append(out, ToStoreRateResponse(r))
	}
	return out
}
