package services

import (
	"context"
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
)

// RateRuleEvaluator resolves one pair through a rule chain.
// It returns every distinct failure cause when the pair cannot be resolved.
type RateRuleEvaluator interface {
	Evaluate(ctx context.Context, pair domain.CurrencyPair, chain domain.RuleChain) (domain.BidAsk, []error)
}

// RateAggregatorSvc evaluates a set of pairs concurrently.
type RateAggregatorSvc interface {
	// Aggregate returns exactly one result per pair, in input order.
	Aggregate(ctx context.Context, pairs []domain.CurrencyPair, chain domain.RuleChain, timeout time.Duration) []domain.RateResult
}

// RateSvcFacade is the rate query entry point used by handlers.
type RateSvcFacade interface {
	RateAggregatorSvc

	// GetRates validates rawPairs, falls back to the store defaults when empty and aggregates.
	GetRates(ctx context.Context, storeID string, rawPairs []string) ([]domain.RateResult, error)
}
