// Package processors runs the background payout and transfer processors and indexes them
// for lookup by (store, kind, processor name, payment method).
package processors

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	portsrepo "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/repositories"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/eventbus"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/metrics"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultWorkInterval is how often a processor runs a unit of work.
	DefaultWorkInterval = 30 * time.Second

	// Stopped processor IDs are remembered so late duplicate stop commands are acknowledged.
	retiredSize = 4096
	retiredTTL  = 10 * time.Minute
)

// WorkFunc performs one unit of work for a processor, e.g. sending a payout batch.
type WorkFunc func(ctx context.Context, record domain.ProcessorRecord) error

// Subscriber is the subscribing half of the event bus.
type Subscriber interface {
	Subscribe(eventType string, handler eventbus.Handler) eventbus.Subscription
	Unsubscribe(sub eventbus.Subscription) bool
}

type processorKey struct {
	storeID string
	kind    domain.ProcessorKind
	name    domain.ProcessorName
	payment domain.PaymentMethodID
}

func keyOf(q domain.ProcessorQuery) processorKey {
	return processorKey{storeID: q.StoreID, kind: q.Kind, name: q.Name, payment: q.PaymentMethod}
}

// Host owns every running processor. It is the service's ProcessorRegistry.
type Host struct {
	bus      Subscriber
	logger   *slog.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	work     WorkFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sub    eventbus.Subscription

	mu      sync.RWMutex
	byKey   map[processorKey]*processor
	byID    map[string]*processor
	retired *expirable.LRU[string, struct{}]
}

// Option configures a Host.
type Option func(*Host)

// WithWorkInterval sets the pause between two units of work.
func WithWorkInterval(d time.Duration) Option {
	return func(h *Host) {
		if d > 0 {
			h.interval = d
		}
	}
}

// WithWork sets the unit of work every processor runs.
func WithWork(work WorkFunc) Option {
	return func(h *Host) {
		if work != nil {
			h.work = work
		}
	}
}

// WithMetrics sets the collectors the host reports to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Host) {
		if m != nil {
			h.metrics = m
		}
	}
}

// NewHost creates a host whose processors live until they are stopped or parent is done.
func NewHost(parent context.Context, bus Subscriber, logger *slog.Logger, options ...Option) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Host{
		bus:      bus,
		logger:   logger,
		interval: DefaultWorkInterval,
		byKey:    make(map[processorKey]*processor),
		byID:     make(map[string]*processor),
		retired:  expirable.NewLRU[string, struct{}](retiredSize, nil, retiredTTL),
	}
	h.work = h.logWork
	for _, option := range options {
		option(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.NewNop()
	}
	h.ctx, h.cancel = context.WithCancel(parent)
	h.sub = bus.Subscribe(domain.ProcessorStopEventType, h.onStopCommand)
	return h
}

// Ensure Host implements the ProcessorRegistry interface
var _ portsrepo.ProcessorRegistry = (*Host)(nil)

// StartProcessor starts the selected processor, or returns the one already running.
func (h *Host) StartProcessor(_ context.Context, query domain.ProcessorQuery) (*domain.ProcessorRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx.Err() != nil {
		return nil, fmt.Errorf("%w: processor host is shut down", apperrors.ErrBusUnavailable)
	}

	key := keyOf(query)
	if p, ok := h.byKey[key]; ok {
		record := p.snapshot()
		return &record, nil
	}

	p := &processor{
		host: h,
		record: domain.ProcessorRecord{
			ID:            uuid.NewString(),
			StoreID:       query.StoreID,
			Kind:          query.Kind,
			Name:          query.Name,
			PaymentMethod: query.PaymentMethod,
			State:         domain.ProcessorStateRunning,
			StartedAt:     time.Now().UTC(),
		},
		stopSignal: make(chan struct{}, 1),
	}
	p.logger = h.logger.With(
		slog.String("processor_id", p.record.ID),
		slog.String("store_id", p.record.StoreID),
		slog.String("processor", string(p.record.Name)),
		slog.String("payment_method", p.record.PaymentMethod.String()),
	)

	// byID is filled in the same critical section, so every record FindProcessor can return
	// is already reachable by the host's stop subscription.
	h.byKey[key] = p
	h.byID[p.record.ID] = p

	h.wg.Add(1)
	go p.run(h.ctx)

	h.metrics.RunningProcessors.WithLabelValues(string(query.Kind)).Inc()
	p.logger.Info("Processor started")

	record := p.snapshot()
	return &record, nil
}

// FindProcessor returns the processor query selects, or apperrors.ErrNotFound.
func (h *Host) FindProcessor(_ context.Context, query domain.ProcessorQuery) (*domain.ProcessorRecord, error) {
	h.mu.RLock()
	p, ok := h.byKey[keyOf(query)]
	h.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	record := p.snapshot()
	return &record, nil
}

// ListProcessors returns a store's processors of one kind, oldest first.
func (h *Host) ListProcessors(_ context.Context, storeID string, kind domain.ProcessorKind) ([]domain.ProcessorRecord, error) {
	h.mu.RLock()
	records := make([]domain.ProcessorRecord, 0)
	for key, p := range h.byKey {
		if key.storeID == storeID && key.kind == kind {
			records = append(records, p.snapshot())
		}
	}
	h.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records, nil
}

// Shutdown stops every processor and waits for their loops, or until ctx is done.
func (h *Host) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.bus.Unsubscribe(h.sub)
		h.logger.Info("Processor host stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: processors still running at shutdown deadline: %w", apperrors.ErrTimeout, ctx.Err())
	}
}

// onStopCommand runs on the bus goroutine of the host's subscription. Commands for processors
// of another host on the same bus are ignored.
func (h *Host) onStopCommand(_ context.Context, event eventbus.Event) {
	cmd, ok := event.(domain.StopProcessorCommand)
	if !ok || cmd.Ack == nil {
		return
	}

	h.mu.RLock()
	p, running := h.byID[cmd.ProcessorID]
	h.mu.RUnlock()
	if running {
		p.onStopCommand(cmd)
		return
	}
	if h.retired.Contains(cmd.ProcessorID) {
		cmd.Ack.Settle(nil)
	}
}

// remove takes p out of the lookup index. Stop commands still reach it through byID.
func (h *Host) remove(p *processor) {
	h.mu.Lock()
	key := keyOf(domain.ProcessorQuery{
		StoreID:       p.record.StoreID,
		Kind:          p.record.Kind,
		Name:          p.record.Name,
		PaymentMethod: p.record.PaymentMethod,
	})
	if h.byKey[key] == p {
		delete(h.byKey, key)
	}
	h.mu.Unlock()
	h.metrics.RunningProcessors.WithLabelValues(string(p.record.Kind)).Dec()
}

// retire forgets p once every pending acknowledgment is settled.
func (h *Host) retire(p *processor) {
	h.mu.Lock()
	// Added before the delete: a concurrent command finds p in one of the two.
	h.retired.Add(p.record.ID, struct{}{})
	delete(h.byID, p.record.ID)
	h.mu.Unlock()
}

func (h *Host) logWork(_ context.Context, record domain.ProcessorRecord) error {
	h.logger.Debug("Processor work tick", slog.String("processor_id", record.ID))
	return nil
}
