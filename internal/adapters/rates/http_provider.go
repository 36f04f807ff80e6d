package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	"github.com/shopspring/decimal"
)

// DefaultHTTPTimeout bounds a single upstream request.
const DefaultHTTPTimeout = 10 * time.Second

const maxTickerBody = 1 << 20

// HTTPProviderConfig describes a JSON ticker endpoint.
type HTTPProviderConfig struct {
	Name string
	// URL may contain {left} and {right}, replaced by the pair's asset codes.
	URL string
	// BidField and AskField locate the quote in the response; nested keys are dot separated.
	BidField string
	AskField string
}

// HTTPProvider queries a JSON ticker endpoint, one request per pair.
type HTTPProvider struct {
	cfg    HTTPProviderConfig
	client *http.Client
}

func NewHTTPProvider(cfg HTTPProviderConfig, client *http.Client) (*HTTPProvider, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: http rate source requires a name", apperrors.ErrValidation)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: http rate source %s requires a url", apperrors.ErrValidation, cfg.Name)
	}
	if cfg.BidField == "" {
		cfg.BidField = "bid"
	}
	if cfg.AskField == "" {
		cfg.AskField = "ask"
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPProvider{cfg: cfg, client: client}, nil
}

func (p *HTTPProvider) Name() string { return p.cfg.Name }

func (p *HTTPProvider) Fetch(ctx context.Context, pair domain.CurrencyPair) (domain.BidAsk, error) {
	target := strings.NewReplacer(
		"{left}", url.PathEscape(pair.Left),
		"{right}", url.PathEscape(pair.Right),
	).Replace(p.cfg.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.BidAsk{}, fmt.Errorf("failed to create request for %s: %w", p.cfg.Name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.BidAsk{}, fmt.Errorf("%s request for %s: %w", p.cfg.Name, pair, contextError(ctx))
		}
		return domain.BidAsk{}, fmt.Errorf("%w: %s request for %s failed: %w", apperrors.ErrUpstream, p.cfg.Name, pair, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.BidAsk{}, fmt.Errorf("%w: %s returned status %d for %s", apperrors.ErrUpstream, p.cfg.Name, resp.StatusCode, pair)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTickerBody))
	if err != nil {
		return domain.BidAsk{}, fmt.Errorf("%w: failed to read %s response: %w", apperrors.ErrUpstream, p.cfg.Name, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return domain.BidAsk{}, fmt.Errorf("%w: failed to parse %s response: %w", apperrors.ErrUpstream, p.cfg.Name, err)
	}

	bid, err := decimalField(doc, p.cfg.BidField)
	if err != nil {
		return domain.BidAsk{}, fmt.Errorf("%w: %s response for %s: %w", apperrors.ErrUpstream, p.cfg.Name, pair, err)
	}
	ask, err := decimalField(doc, p.cfg.AskField)
	if err != nil {
		return domain.BidAsk{}, fmt.Errorf("%w: %s response for %s: %w", apperrors.ErrUpstream, p.cfg.Name, pair, err)
	}
	if !bid.IsPositive() || !ask.IsPositive() {
		return domain.BidAsk{}, fmt.Errorf("%w: %s returned a non-positive quote for %s", apperrors.ErrUpstream, p.cfg.Name, pair)
	}
	return domain.BidAsk{Bid: bid, Ask: ask}, nil
}

// decimalField walks a dot separated path; the leaf may be a JSON number or a numeric string.
func decimalField(doc map[string]json.RawMessage, path string) (decimal.Decimal, error) {
	keys := strings.Split(path, ".")
	current := doc
	for i, key := range keys {
		raw, ok := current[key]
		if !ok {
			return decimal.Zero, fmt.Errorf("field %q missing", path)
		}
		if i == len(keys)-1 {
			var d decimal.Decimal
			if err := d.UnmarshalJSON(raw); err != nil {
				return decimal.Zero, fmt.Errorf("field %q is not a number: %w", path, err)
			}
			return d, nil
		}
		current = nil
		if err := json.Unmarshal(raw, &current); err != nil {
			return decimal.Zero, fmt.Errorf("field %q is not an object", strings.Join(keys[:i+1], "."))
		}
	}
	return decimal.Zero, fmt.Errorf("field path is empty")
}
