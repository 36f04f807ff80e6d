// Package eventbus is an in-process publish/subscribe dispatcher.
//
// Every subscription owns a queue and a goroutine, so delivery is asynchronous to the
// publisher and FIFO per subscriber. There is no durability: a subscriber registered
// after an event was published never sees it.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/logging"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/metrics"
)

// Event is anything that can be routed by its logical type.
type Event interface {
	Type() string
}

// Handler consumes one event. The context carries the publisher's values but not its cancellation.
type Handler func(ctx context.Context, event Event)

// Subscription identifies a registered handler.
type Subscription struct {
	id        uint64
	eventType string
}

// EventType returns the event type the subscription listens to.
func (s Subscription) EventType() string { return s.eventType }

type envelope struct {
	ctx   context.Context
	event Event
}

type subscriber struct {
	id        uint64
	eventType string
	handler   Handler
	active    atomic.Bool

	mu      sync.Mutex
	pending []envelope
	wake    chan struct{}
	quit    chan struct{}
}

// Bus dispatches events to subscribers. Create it with New and share the instance explicitly.
type Bus struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
	closed bool
	wg     sync.WaitGroup
}

// New creates an empty bus.
func New(logger *slog.Logger, m *metrics.Metrics) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Bus{
		logger:  logger,
		metrics: m,
		subs:    make(map[string]map[uint64]*subscriber),
	}
}

// Subscribe registers handler for eventType. On a closed bus the returned subscription is inert.
func (b *Bus) Subscribe(eventType string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := Subscription{id: b.nextID, eventType: eventType}
	if b.closed {
		return sub
	}

	s := &subscriber{
		id:        sub.id,
		eventType: eventType,
		handler:   handler,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
	s.active.Store(true)

	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]*subscriber)
	}
	b.subs[eventType][s.id] = s

	b.wg.Add(1)
	go b.run(s)

	return sub
}

// Unsubscribe removes the subscription. No event is started for it afterwards;
// a handler already running may still complete. It reports whether the subscription existed.
func (b *Bus) Unsubscribe(sub Subscription) bool {
	b.mu.Lock()
	s, ok := b.subs[sub.eventType][sub.id]
	if ok {
		delete(b.subs[sub.eventType], sub.id)
		if len(b.subs[sub.eventType]) == 0 {
			delete(b.subs, sub.eventType)
		}
	}
	b.mu.Unlock()

	if ok {
		s.stop()
	}
	return ok
}

// Publish enqueues event for every current subscriber of its type and returns
// without waiting for handlers.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", apperrors.ErrValidation)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("%w: cannot publish %q on a closed bus", apperrors.ErrBusUnavailable, event.Type())
	}

	env := envelope{ctx: context.WithoutCancel(ctx), event: event}
	for _, s := range b.subs[event.Type()] {
		s.enqueue(env)
	}
	b.metrics.BusEventsPublishedTotal.WithLabelValues(event.Type()).Inc()
	return nil
}

// SubscriberCount returns the number of live subscriptions for eventType.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

// Close stops every subscriber and rejects later publishes. Queued events are dropped.
// It waits for running handlers, so it must not be called from a handler.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	all := b.subs
	b.subs = make(map[string]map[uint64]*subscriber)
	b.mu.Unlock()

	for _, byID := range all {
		for _, s := range byID {
			s.stop()
		}
	}
	b.wg.Wait()
	b.logger.Info("Event bus closed")
}

func (b *Bus) run(s *subscriber) {
	defer b.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}

		for _, env := range s.drain() {
			if !s.active.Load() {
				return
			}
			b.dispatch(s, env)
		}
	}
}

func (b *Bus) dispatch(s *subscriber, env envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.BusHandlerPanicsTotal.WithLabelValues(s.eventType).Inc()
			logging.FromContext(env.ctx).Error("Event handler panic recovered",
				slog.String("event_type", s.eventType),
				slog.Uint64("subscription_id", s.id),
				slog.Any("panic", r),
			)
		}
	}()
	s.handler(env.ctx, env.event)
}

func (s *subscriber) enqueue(env envelope) {
	s.mu.Lock()
	s.pending = append(s.pending, env)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) drain() []envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch
}

func (s *subscriber) stop() {
	if s.active.CompareAndSwap(true, false) {
		close(s.quit)
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
	}
}
