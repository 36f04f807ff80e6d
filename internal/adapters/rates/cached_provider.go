package rates

import (
	"context"
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL  = 30 * time.Second
	DefaultCacheSize = 1024
	// DefaultFetchTimeout bounds a shared upstream call, which outlives its callers' deadlines.
	DefaultFetchTimeout = 10 * time.Second
)

// CachedProvider keeps successful quotes of the wrapped provider for a TTL.
// Concurrent misses for the same pair share one upstream call. Failures are not cached.
type CachedProvider struct {
	inner        Provider
	cache        *expirable.LRU[domain.CurrencyPair, domain.BidAsk]
	group        singleflight.Group
	metrics      *metrics.Metrics
	fetchTimeout time.Duration
}

// CachedOption configures a CachedProvider.
type CachedOption func(*CachedProvider)

// WithFetchTimeout bounds each shared upstream call.
func WithFetchTimeout(d time.Duration) CachedOption {
	return func(c *CachedProvider) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func NewCachedProvider(inner Provider, size int, ttl time.Duration, m *metrics.Metrics, options ...CachedOption) *CachedProvider {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if m == nil {
		m = metrics.NewNop()
	}
	c := &CachedProvider{
		inner:        inner,
		cache:        expirable.NewLRU[domain.CurrencyPair, domain.BidAsk](size, nil, ttl),
		metrics:      m,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *CachedProvider) Name() string { return c.inner.Name() }

func (c *CachedProvider) Fetch(ctx context.Context, pair domain.CurrencyPair) (domain.BidAsk, error) {
	if q, ok := c.cache.Get(pair); ok {
		c.metrics.RateCacheHitsTotal.Inc()
		return q, nil
	}
	c.metrics.RateCacheMissesTotal.Inc()

	ch := c.group.DoChan(pair.String(), func() (any, error) {
		// Detached so one caller's cancellation does not fail the others sharing the call.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		q, err := c.inner.Fetch(fetchCtx, pair)
		if err != nil {
			return nil, err
		}
		c.cache.Add(pair, q)
		return q, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.BidAsk{}, res.Err
		}
		return res.Val.(domain.BidAsk), nil
	case <-ctx.Done():
		return domain.BidAsk{}, contextError(ctx)
	}
}
