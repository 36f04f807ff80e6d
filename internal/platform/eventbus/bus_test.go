package eventbus_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/eventbus"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

type testEvent struct {
	kind string
	seq  int
}

func (e testEvent) Type() string { return e.kind }

type EventBusTestSuite struct {
	suite.Suite
	bus     *eventbus.Bus
	metrics *metrics.Metrics
}

func (suite *EventBusTestSuite) SetupTest() {
	suite.metrics = metrics.New(prometheus.NewRegistry())
	suite.bus = eventbus.New(nil, suite.metrics)
}

func (suite *EventBusTestSuite) TearDownTest() {
	suite.bus.Close()
}

func (suite *EventBusTestSuite) TestPublish_DeliversInOrderPerSubscriber() {
	const n = 200
	var mu sync.Mutex
	got := make([]int, 0, n)
	done := make(chan struct{})

	suite.bus.Subscribe("tick", func(_ context.Context, ev eventbus.Event) {
		mu.Lock()
		got = append(got, ev.(testEvent).seq)
		if len(got) == n {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < n; i++ {
		suite.Require().NoError(suite.bus.Publish(context.Background(), testEvent{kind: "tick", seq: i}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		suite.FailNow("events not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, seq := range got {
		suite.Equal(i, seq)
	}
	suite.Equal(float64(n), testutil.ToFloat64(suite.metrics.BusEventsPublishedTotal.WithLabelValues("tick")))
}

func (suite *EventBusTestSuite) TestPublish_DoesNotWaitForHandlers() {
	release := make(chan struct{})
	handled := make(chan struct{})
	suite.bus.Subscribe("slow", func(context.Context, eventbus.Event) {
		<-release
		close(handled)
	})

	start := time.Now()
	suite.Require().NoError(suite.bus.Publish(context.Background(), testEvent{kind: "slow"}))
	suite.Less(time.Since(start), 500*time.Millisecond)

	close(release)
	select {
	case <-handled:
	case <-time.After(time.Second):
		suite.FailNow("handler never ran")
	}
}

func (suite *EventBusTestSuite) TestPublish_RoutesByType() {
	var a, b atomic.Int32
	wg := sync.WaitGroup{}
	wg.Add(1)
	suite.bus.Subscribe("a", func(context.Context, eventbus.Event) { a.Add(1); wg.Done() })
	suite.bus.Subscribe("b", func(context.Context, eventbus.Event) { b.Add(1) })

	suite.Require().NoError(suite.bus.Publish(context.Background(), testEvent{kind: "a"}))
	wg.Wait()

	suite.Equal(int32(1), a.Load())
	suite.Equal(int32(0), b.Load())
}

func (suite *EventBusTestSuite) TestPublish_LateSubscriberMissesEvent() {
	suite.Require().NoError(suite.bus.Publish(context.Background(), testEvent{kind: "early"}))

	var calls atomic.Int32
	suite.bus.Subscribe("early", func(context.Context, eventbus.Event) { calls.Add(1) })

	time.Sleep(50 * time.Millisecond)
	suite.Equal(int32(0), calls.Load())
}

func (suite *EventBusTestSuite) TestUnsubscribe_StopsDelivery() {
	var calls atomic.Int32
	sub := suite.bus.Subscribe("x", func(context.Context, eventbus.Event) { calls.Add(1) })
	suite.Equal(1, suite.bus.SubscriberCount("x"))

	suite.True(suite.bus.Unsubscribe(sub))
	suite.False(suite.bus.Unsubscribe(sub))
	suite.Equal(0, suite.bus.SubscriberCount("x"))

	suite.Require().NoError(suite.bus.Publish(context.Background(), testEvent{kind: "x"}))
	time.Sleep(50 * time.Millisecond)
	suite.Equal(int32(0), calls.Load())
}

func (suite *EventBusTestSuite) TestConcurrentSubscribePublishUnsubscribe() {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := suite.bus.Subscribe("churn", func(context.Context, eventbus.Event) {})
			time.Sleep(time.Millisecond)
			suite.bus.Unsubscribe(sub)
		}()
		go func(i int) {
			defer wg.Done()
			_ = suite.bus.Publish(context.Background(), testEvent{kind: "churn", seq: i})
		}(i)
	}
	wg.Wait()
	suite.Equal(0, suite.bus.SubscriberCount("churn"))
}

func (suite *EventBusTestSuite) TestHandlerPanicIsRecovered() {
	delivered := make(chan int, 2)
	suite.bus.Subscribe("p", func(_ context.Context, ev eventbus.Event) {
		seq := ev.(testEvent).seq
		if seq == 0 {
			panic("boom")
		}
		delivered <- seq
	})

	suite.Require().NoError(suite.bus.Publish(context.Background(), testEvent{kind: "p", seq: 0}))
	suite.Require().NoError(suite.bus.Publish(context.Background(), testEvent{kind: "p", seq: 1}))

	select {
	case seq := <-delivered:
		suite.Equal(1, seq)
	case <-time.After(time.Second):
		suite.FailNow("subscriber died after panic")
	}
	suite.Equal(float64(1), testutil.ToFloat64(suite.metrics.BusHandlerPanicsTotal.WithLabelValues("p")))
}

func (suite *EventBusTestSuite) TestHandlerContextIgnoresPublisherCancellation() {
	ctxErr := make(chan error, 1)
	suite.bus.Subscribe("ctx", func(ctx context.Context, _ eventbus.Event) {
		ctxErr <- ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	suite.Require().NoError(suite.bus.Publish(ctx, testEvent{kind: "ctx"}))
	cancel()

	select {
	case err := <-ctxErr:
		suite.NoError(err)
	case <-time.After(time.Second):
		suite.FailNow("handler never ran")
	}
}

func (suite *EventBusTestSuite) TestPublishAfterClose() {
	suite.bus.Close()

	err := suite.bus.Publish(context.Background(), testEvent{kind: "x"})
	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrBusUnavailable)
}

func (suite *EventBusTestSuite) TestPublishNilEvent() {
	suite.ErrorIs(suite.bus.Publish(context.Background(), nil), apperrors.ErrValidation)
}

func TestEventBusTestSuite(t *testing.T) {
	suite.Run(t, new(EventBusTestSuite))
}
