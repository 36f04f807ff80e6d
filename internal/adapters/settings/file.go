// Package settings loads store rate settings and rate source definitions from YAML.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// File is the YAML document:
//
//	default: {defaultPairs: [BTC_USD], rules: [{pattern: "*_*", sources: [static]}]}
//	stores:
//	  store-1: {defaultPairs: [BTC_EUR], spread: "0.01", rules: [...]}
//	static:
//	  BTC_USD: {bid: "50000", ask: "50010"}
//	http:
//	  - {name: kraken, url: "https://example.test/{left}{right}", bidField: bid, askField: ask}
type File struct {
	Default *StoreSettings           `yaml:"default"`
	Stores  map[string]StoreSettings `yaml:"stores"`
	Static  map[string]StaticQuote   `yaml:"static"`
	HTTP    []HTTPSource             `yaml:"http"`
}

type StoreSettings struct {
	DefaultPairs []string        `yaml:"defaultPairs"`
	Spread       decimal.Decimal `yaml:"spread"`
	Rules        []Rule          `yaml:"rules"`
}

type Rule struct {
	Pattern string          `yaml:"pattern"`
	Sources []string        `yaml:"sources"`
	Via     string          `yaml:"via"`
	Invert  bool            `yaml:"invert"`
	Spread  decimal.Decimal `yaml:"spread"`
}

type StaticQuote struct {
	Bid decimal.Decimal `yaml:"bid"`
	Ask decimal.Decimal `yaml:"ask"`
}

type HTTPSource struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	BidField string `yaml:"bidField"`
	AskField string `yaml:"askField"`
}

// Load reads and validates the settings file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate settings file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a settings document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: invalid rate settings yaml: %w", apperrors.ErrValidation, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every pair, pattern and source definition.
func (f *File) Validate() error {
	var errs []error
	if f.Default != nil {
		if _, err := f.Default.toDomain(""); err != nil {
			errs = append(errs, fmt.Errorf("default: %w", err))
		}
	}
	for id, s := range f.Stores {
		if _, err := s.toDomain(id); err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", id, err))
		}
	}
	if _, err := f.staticQuotes(); err != nil {
		errs = append(errs, err)
	}
	names := map[string]struct{}{StaticSourceName: {}}
	for i, h := range f.HTTP {
		if h.Name == "" || h.URL == "" {
			errs = append(errs, fmt.Errorf("%w: http source #%d requires name and url", apperrors.ErrValidation, i))
			continue
		}
		if _, dup := names[h.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: rate source %q defined twice", apperrors.ErrValidation, h.Name))
		}
		names[h.Name] = struct{}{}
	}
	return errors.Join(errs...)
}

func (s StoreSettings) toDomain(storeID string) (domain.StoreRateSettings, error) {
	pairs, err := domain.ParseCurrencyPairs(s.DefaultPairs)
	if err != nil {
		return domain.StoreRateSettings{}, err
	}
	if s.Spread.IsNegative() || s.Spread.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return domain.StoreRateSettings{}, fmt.Errorf("%w: spread %s out of range [0, 1)", apperrors.ErrValidation, s.Spread)
	}
	rules := make([]domain.RateRule, 0, len(s.Rules))
	for _, r := range s.Rules {
		rule, err := r.toDomain()
		if err != nil {
			return domain.StoreRateSettings{}, err
		}
		rules = append(rules, rule)
	}
	return domain.StoreRateSettings{
		StoreID:      storeID,
		DefaultPairs: pairs,
		Rules:        domain.RuleChain{StoreID: storeID, Rules: rules, Spread: s.Spread},
	}, nil
}

func (r Rule) toDomain() (domain.RateRule, error) {
	pattern := strings.ToUpper(strings.TrimSpace(r.Pattern))
	left, right, ok := strings.Cut(pattern, "_")
	if !ok || left == "" || right == "" {
		return domain.RateRule{}, apperrors.NewInvalidTokenError(r.Pattern, "rule pattern must be LEFT_RIGHT, either side may be *")
	}
	if len(r.Sources) == 0 {
		return domain.RateRule{}, fmt.Errorf("%w: rule %s has no sources", apperrors.ErrValidation, pattern)
	}
	if r.Spread.IsNegative() || r.Spread.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return domain.RateRule{}, fmt.Errorf("%w: rule %s spread %s out of range [0, 1)", apperrors.ErrValidation, pattern, r.Spread)
	}
	return domain.RateRule{
		Pattern: pattern,
		Sources: append([]string(nil), r.Sources...),
		Via:     strings.ToUpper(strings.TrimSpace(r.Via)),
		Invert:  r.Invert,
		Spread:  r.Spread,
	}, nil
}

func (f *File) staticQuotes() (map[domain.CurrencyPair]domain.BidAsk, error) {
	quotes := make(map[domain.CurrencyPair]domain.BidAsk, len(f.Static))
	for raw, q := range f.Static {
		pair, err := domain.ParseCurrencyPair(raw)
		if err != nil {
			return nil, fmt.Errorf("static: %w", err)
		}
		if !q.Bid.IsPositive() || !q.Ask.IsPositive() || q.Bid.GreaterThan(q.Ask) {
			return nil, fmt.Errorf("%w: static %s requires 0 < bid <= ask", apperrors.ErrValidation, pair)
		}
		quotes[pair] = domain.BidAsk{Bid: q.Bid, Ask: q.Ask}
	}
	return quotes, nil
}
