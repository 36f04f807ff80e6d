package domain

import (
	"strings"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
)

const maxAssetCodeLength = 12

// CurrencyPair is a canonical base/quote asset pair, e.g. BTC_USD.
// Two textual forms that parse to the same pair are the same key.
type CurrencyPair struct {
	Left  string
	Right string
}

// ParseCurrencyPair accepts "BTC_USD", "BTC/USD" and any letter case.
func ParseCurrencyPair(raw string) (CurrencyPair, error) {
	s := strings.TrimSpace(raw)
	sep := strings.IndexAny(s, "_/")
	if sep < 0 {
		return CurrencyPair{}, apperrors.NewInvalidTokenError(raw, "expected LEFT_RIGHT")
	}
	left, right := s[:sep], s[sep+1:]
	if !isAssetCode(left) || !isAssetCode(right) {
		return CurrencyPair{}, apperrors.NewInvalidTokenError(raw, "asset codes must be alphanumeric")
	}
	return NewCurrencyPair(left, right), nil
}

// NewCurrencyPair builds a pair from two asset codes without validating them.
func NewCurrencyPair(left, right string) CurrencyPair {
	return CurrencyPair{Left: strings.ToUpper(left), Right: strings.ToUpper(right)}
}

// ParseCurrencyPairs parses every token and stops at the first malformed one.
// The result is deduplicated, keeping first-seen order.
func ParseCurrencyPairs(raw []string) ([]CurrencyPair, error) {
	seen := make(map[CurrencyPair]struct{}, len(raw))
	pairs := make([]CurrencyPair, 0, len(raw))
	for _, token := range raw {
		pair, err := ParseCurrencyPair(token)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// String returns the canonical LEFT_RIGHT form.
func (p CurrencyPair) String() string {
	return p.Left + "_" + p.Right
}

// Inverse swaps base and quote.
func (p CurrencyPair) Inverse() CurrencyPair {
	return CurrencyPair{Left: p.Right, Right: p.Left}
}

// MarshalText implements encoding.TextMarshaler so pairs render as BTC_USD.
func (p CurrencyPair) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *CurrencyPair) UnmarshalText(text []byte) error {
	parsed, err := ParseCurrencyPair(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func isAssetCode(s string) bool {
	if s == "" || len(s) > maxAssetCodeLength {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
