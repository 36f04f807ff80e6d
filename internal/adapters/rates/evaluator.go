package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	portssvc "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/services"
	"github.com/shopspring/decimal"
)

// SourceResolver looks up rate sources by name.
type SourceResolver interface {
	Lookup(name string) (Provider, error)
}

// Evaluator resolves pairs through a store's rule chain using the configured sources.
type Evaluator struct {
	sources SourceResolver
}

func NewEvaluator(sources SourceResolver) *Evaluator {
	return &Evaluator{sources: sources}
}

// Ensure Evaluator implements the RateRuleEvaluator interface
var _ portssvc.RateRuleEvaluator = (*Evaluator)(nil)

// Evaluate applies the first rule matching pair. A result is returned only when every leg
// resolved; otherwise the collected source failures are returned.
func (e *Evaluator) Evaluate(ctx context.Context, pair domain.CurrencyPair, chain domain.RuleChain) (domain.BidAsk, []error) {
	if pair.Left == pair.Right {
		one := decimal.NewFromInt(1)
		return domain.BidAsk{Bid: one, Ask: one}, nil
	}

	rule, ok := chain.Match(pair)
	if !ok {
		return domain.BidAsk{}, []error{fmt.Errorf("%w: no rate rule matches %s", apperrors.ErrNotFound, pair)}
	}
	if len(rule.Sources) == 0 {
		return domain.BidAsk{}, []error{fmt.Errorf("%w: rate rule %s has no sources", apperrors.ErrValidation, rule.Pattern)}
	}

	legs := []domain.CurrencyPair{pair}
	if via := strings.ToUpper(strings.TrimSpace(rule.Via)); via != "" && via != pair.Left && via != pair.Right {
		legs = []domain.CurrencyPair{
			domain.NewCurrencyPair(pair.Left, via),
			domain.NewCurrencyPair(via, pair.Right),
		}
	}

	var errs []error
	quote := domain.BidAsk{Bid: decimal.NewFromInt(1), Ask: decimal.NewFromInt(1)}
	for _, leg := range legs {
		legQuote, legErrs := e.resolveLeg(ctx, leg, rule)
		if len(legErrs) > 0 {
			errs = append(errs, legErrs...)
			continue
		}
		quote = quote.Mul(legQuote)
	}
	if len(errs) > 0 {
		return domain.BidAsk{}, errs
	}

	spread := rule.Spread
	if spread.IsZero() {
		spread = chain.Spread
	}
	return quote.WithSpread(spread), nil
}

// resolveLeg tries the rule's sources in order; the first success wins.
func (e *Evaluator) resolveLeg(ctx context.Context, leg domain.CurrencyPair, rule domain.RateRule) (domain.BidAsk, []error) {
	query := leg
	if rule.Invert {
		query = leg.Inverse()
	}

	var errs []error
	for _, name := range rule.Sources {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, contextError(ctx)))
			break
		}
		provider, err := e.sources.Lookup(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		q, err := provider.Fetch(ctx, query)
		if err != nil {
			if !errors.Is(err, apperrors.ErrUpstream) && !errors.Is(err, apperrors.ErrTimeout) && !errors.Is(err, apperrors.ErrCancelled) {
				err = fmt.Errorf("%w: %s: %w", apperrors.ErrUpstream, name, err)
			}
			errs = append(errs, err)
			continue
		}
		if rule.Invert {
			q = q.Invert()
		}
		return q, nil
	}
	return domain.BidAsk{}, errs
}
