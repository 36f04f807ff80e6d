package rates_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/adapters/rates"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Fetch(_ context.Context, _ domain.CurrencyPair) (domain.BidAsk, error) {
	p.calls.Add(1)
	time.Sleep(p.delay)
	if p.err != nil {
		return domain.BidAsk{}, p.err
	}
	return ba("100", "101"), nil
}

func TestCachedProvider_HitsWithinTTL(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	inner := &countingProvider{}
	cached := rates.NewCachedProvider(inner, 16, time.Minute, m)
	pair := domain.NewCurrencyPair("BTC", "USD")

	for i := 0; i < 3; i++ {
		q, err := cached.Fetch(context.Background(), pair)
		require.NoError(t, err)
		assert.Equal(t, "100", q.Bid.String())
	}

	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RateCacheHitsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateCacheMissesTotal))
	assert.Equal(t, "counting", cached.Name())
}

func TestCachedProvider_ConcurrentMissesShareOneCall(t *testing.T) {
	inner := &countingProvider{delay: 50 * time.Millisecond}
	cached := rates.NewCachedProvider(inner, 16, time.Minute, nil)
	pair := domain.NewCurrencyPair("BTC", "USD")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cached.Fetch(context.Background(), pair)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedProvider_FailuresAreNotCached(t *testing.T) {
	inner := &countingProvider{err: errors.New("boom")}
	cached := rates.NewCachedProvider(inner, 16, time.Minute, nil)
	pair := domain.NewCurrencyPair("BTC", "USD")

	_, err := cached.Fetch(context.Background(), pair)
	require.Error(t, err)
	_, err = cached.Fetch(context.Background(), pair)
	require.Error(t, err)

	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedProvider_ExpiresAfterTTL(t *testing.T) {
	inner := &countingProvider{}
	cached := rates.NewCachedProvider(inner, 16, 20*time.Millisecond, nil)
	pair := domain.NewCurrencyPair("BTC", "USD")

	_, err := cached.Fetch(context.Background(), pair)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = cached.Fetch(context.Background(), pair)
	require.NoError(t, err)

	assert.Equal(t, int32(2), inner.calls.Load())
}

// stallingProvider never answers on its own; only its context ends the call.
type stallingProvider struct{}

func (stallingProvider) Name() string { return "stalling" }

func (stallingProvider) Fetch(ctx context.Context, _ domain.CurrencyPair) (domain.BidAsk, error) {
	<-ctx.Done()
	return domain.BidAsk{}, ctx.Err()
}

func TestCachedProvider_SharedCallIsBounded(t *testing.T) {
	cached := rates.NewCachedProvider(stallingProvider{}, 16, time.Minute, nil, rates.WithFetchTimeout(50*time.Millisecond))

	start := time.Now()
	// The caller has no deadline of its own.
	_, err := cached.Fetch(context.Background(), domain.NewCurrencyPair("BTC", "USD"))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
