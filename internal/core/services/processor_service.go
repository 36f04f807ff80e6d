package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	portsrepo "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/repositories"
	portssvc "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/services"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/completion"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/eventbus"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/metrics"
)

// DefaultStopAckTimeout bounds the wait for a processor's stop acknowledgment.
const DefaultStopAckTimeout = 10 * time.Second

// EventPublisher is the publishing half of the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, event eventbus.Event) error
}

// processorService implements the ProcessorSvcFacade interface
type processorService struct {
	BaseService
	registry   portsrepo.ProcessorRegistry
	publisher  EventPublisher
	ackTimeout time.Duration
	metrics    *metrics.Metrics
}

// ProcessorServiceOption is a functional option for configuring the processor service
type ProcessorServiceOption func(*processorService)

// WithStopAckTimeout overrides DefaultStopAckTimeout.
func WithStopAckTimeout(timeout time.Duration) ProcessorServiceOption {
	return func(s *processorService) {
		if timeout > 0 {
			s.ackTimeout = timeout
		}
	}
}

// WithProcessorMetrics sets the collectors the service reports to.
func WithProcessorMetrics(m *metrics.Metrics) ProcessorServiceOption {
	return func(s *processorService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewProcessorService creates a new processor service with the provided options
func NewProcessorService(registry portsrepo.ProcessorRegistry, publisher EventPublisher, options ...ProcessorServiceOption) portssvc.ProcessorSvcFacade {
	svc := &processorService{
		registry:   registry,
		publisher:  publisher,
		ackTimeout: DefaultStopAckTimeout,
	}
	for _, option := range options {
		option(svc)
	}
	if svc.metrics == nil {
		svc.metrics = metrics.NewNop()
	}
	return svc
}

// Ensure processorService implements the ProcessorSvcFacade interface
var _ portssvc.ProcessorSvcFacade = (*processorService)(nil)

func (s *processorService) ListProcessors(ctx context.Context, storeID string, kind domain.ProcessorKind) ([]domain.ProcessorRecord, error) {
	records, err := s.registry.ListProcessors(ctx, storeID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s processors: %w", kind, err)
	}
	return records, nil
}

func (s *processorService) StartProcessor(ctx context.Context, query domain.ProcessorQuery) (*domain.ProcessorRecord, error) {
	if !query.Name.Supports(query.PaymentMethod) {
		return nil, fmt.Errorf("%w: processor %s does not support payment method %s", apperrors.ErrValidation, query.Name, query.PaymentMethod)
	}
	record, err := s.registry.StartProcessor(ctx, query)
	if err != nil {
		s.LogError(ctx, err, "Failed to start processor",
			slog.String("store_id", query.StoreID),
			slog.String("processor", string(query.Name)),
			slog.String("payment_method", query.PaymentMethod.String()))
		return nil, fmt.Errorf("failed to start processor: %w", err)
	}
	s.LogInfo(ctx, "Processor running", slog.String("processor_id", record.ID))
	return record, nil
}

// StopProcessor resolves the processor, publishes a stop command addressed to it and
// waits for the processor's acknowledgment. Re-resolution through the registry on
// every call makes repeated stops return apperrors.ErrNotFound.
func (s *processorService) StopProcessor(ctx context.Context, query domain.ProcessorQuery) error {
	kind := string(query.Kind)
	logger := s.GetLogger(ctx).With(
		slog.String("store_id", query.StoreID),
		slog.String("processor", string(query.Name)),
		slog.String("payment_method", query.PaymentMethod.String()),
	)

	record, err := s.registry.FindProcessor(ctx, query)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.metrics.StopRequestsTotal.WithLabelValues(kind, metrics.OutcomeNotFound).Inc()
			logger.Info("No running processor to stop")
			return fmt.Errorf("%w: no running %s processor %s for %s", apperrors.ErrNotFound, query.Kind, query.Name, query.PaymentMethod)
		}
		s.metrics.StopRequestsTotal.WithLabelValues(kind, metrics.OutcomeError).Inc()
		return fmt.Errorf("failed to resolve processor: %w", err)
	}
	logger = logger.With(slog.String("processor_id", record.ID))

	handle := completion.New()
	cmd := domain.StopProcessorCommand{ProcessorID: record.ID, Ack: handle}

	start := time.Now()
	if err := s.publisher.Publish(ctx, cmd); err != nil {
		s.metrics.StopRequestsTotal.WithLabelValues(kind, metrics.OutcomeUnavailable).Inc()
		logger.Error("Failed to publish stop command", slog.String("error", err.Error()))
		if errors.Is(err, apperrors.ErrBusUnavailable) {
			return fmt.Errorf("failed to publish stop command for processor %s: %w", record.ID, err)
		}
		return fmt.Errorf("%w: failed to publish stop command for processor %s: %w", apperrors.ErrBusUnavailable, record.ID, err)
	}
	logger.Info("Stop command published", slog.String("ack_id", handle.ID()))

	err = handle.Await(ctx, s.ackTimeout)
	switch {
	case err == nil:
		metrics.ObserveSince(s.metrics.StopAckDuration, start)
		s.metrics.StopRequestsTotal.WithLabelValues(kind, metrics.OutcomeSuccess).Inc()
		logger.Info("Processor acknowledged stop", slog.Duration("latency", time.Since(start)))
		return nil
	case errors.Is(err, apperrors.ErrTimeout):
		s.metrics.StopRequestsTotal.WithLabelValues(kind, metrics.OutcomeTimeout).Inc()
		logger.Warn("Stop acknowledgment not observed", slog.Duration("timeout", s.ackTimeout))
		return fmt.Errorf("%w: stop command sent to processor %s, acknowledgment not observed within %s",
			apperrors.ErrTimeout, record.ID, s.ackTimeout)
	case errors.Is(err, apperrors.ErrCancelled):
		s.metrics.StopRequestsTotal.WithLabelValues(kind, metrics.OutcomeCancelled).Inc()
		logger.Warn("Stop request cancelled before acknowledgment", slog.String("error", err.Error()))
		return fmt.Errorf("stop command sent to processor %s: %w", record.ID, err)
	default:
		s.metrics.StopRequestsTotal.WithLabelValues(kind, metrics.OutcomeError).Inc()
		logger.Error("Processor reported a failed stop", slog.String("error", err.Error()))
		return fmt.Errorf("processor %s failed to stop: %w", record.ID, err)
	}
}
