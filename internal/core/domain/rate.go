package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BidAsk is a two-sided quote.
type BidAsk struct {
	Bid decimal.Decimal `json:"bid"`
	Ask decimal.Decimal `json:"ask"`
}

// Mul multiplies both sides, used to chain cross rates.
func (b BidAsk) Mul(o BidAsk) BidAsk {
	return BidAsk{Bid: b.Bid.Mul(o.Bid), Ask: b.Ask.Mul(o.Ask)}
}

// Invert returns the quote of the inverse pair. Sides swap: the bid of the
// inverse is 1/ask. Zero sides stay zero.
func (b BidAsk) Invert() BidAsk {
	inv := func(d decimal.Decimal) decimal.Decimal {
		if d.IsZero() {
			return decimal.Zero
		}
		return decimal.NewFromInt(1).DivRound(d, 16)
	}
	return BidAsk{Bid: inv(b.Ask), Ask: inv(b.Bid)}
}

// WithSpread widens the quote by spread (0.01 = 1%) on both sides.
func (b BidAsk) WithSpread(spread decimal.Decimal) BidAsk {
	if spread.IsZero() {
		return b
	}
	one := decimal.NewFromInt(1)
	return BidAsk{Bid: b.Bid.Mul(one.Sub(spread)), Ask: b.Ask.Mul(one.Add(spread))}
}

// RateResult is the outcome of evaluating one pair. BidAsk is nil whenever Errors is not empty.
type RateResult struct {
	Pair   CurrencyPair
	BidAsk *BidAsk
	Errors []string
}

// RateRule derives the rate of the pairs matching Pattern.
type RateRule struct {
	// Pattern is LEFT_RIGHT where either side may be "*".
	Pattern string
	// Sources are upstream provider names tried in order; the first success wins.
	Sources []string
	// Via, when set, chains LEFT_VIA and VIA_RIGHT.
	Via string
	// Invert queries the inverse pair and inverts the quote.
	Invert bool
	Spread decimal.Decimal
}

// Matches reports whether the rule applies to pair.
func (r RateRule) Matches(pair CurrencyPair) bool {
	left, right, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(r.Pattern)), "_")
	if !ok {
		return false
	}
	return (left == "*" || left == pair.Left) && (right == "*" || right == pair.Right)
}

// RuleChain is the ordered rule list bound to a store.
type RuleChain struct {
	StoreID string
	Rules   []RateRule
	// Spread applies to rules that do not carry their own.
	Spread decimal.Decimal
}

// Match returns the first rule applying to pair.
func (c RuleChain) Match(pair CurrencyPair) (RateRule, bool) {
	for _, rule := range c.Rules {
		if rule.Matches(pair) {
			return rule, true
		}
	}
	return RateRule{}, false
}

// StoreRateSettings is what a store configures for rate queries.
type StoreRateSettings struct {
	StoreID      string
	DefaultPairs []CurrencyPair
	Rules        RuleChain
}
