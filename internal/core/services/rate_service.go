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
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultRateWorkerLimit caps concurrent pair evaluations per request.
	DefaultRateWorkerLimit = 8
	// DefaultRateEvaluationTimeout bounds all pair evaluations of a request together.
	DefaultRateEvaluationTimeout = 5 * time.Second
)

// rateService implements the RateSvcFacade interface
type rateService struct {
	BaseService
	evaluator    portssvc.RateRuleEvaluator
	settingsRepo portsrepo.RateSettingsReader
	defaults     domain.StoreRateSettings
	workerLimit  int
	timeout      time.Duration
	metrics      *metrics.Metrics
}

// RateServiceOption is a functional option for configuring the rate service
type RateServiceOption func(*rateService)

// WithRateWorkerLimit sets how many pairs are evaluated at once.
func WithRateWorkerLimit(limit int) RateServiceOption {
	return func(s *rateService) {
		if limit > 0 {
			s.workerLimit = limit
		}
	}
}

// WithRateEvaluationTimeout sets the deadline shared by every pair of a request.
func WithRateEvaluationTimeout(timeout time.Duration) RateServiceOption {
	return func(s *rateService) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithDefaultRateSettings sets what stores without their own settings use.
func WithDefaultRateSettings(settings domain.StoreRateSettings) RateServiceOption {
	return func(s *rateService) {
		s.defaults = settings
	}
}

// WithRateMetrics sets the collectors the service reports to.
func WithRateMetrics(m *metrics.Metrics) RateServiceOption {
	return func(s *rateService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewRateService creates a new rate service with the provided options
func NewRateService(evaluator portssvc.RateRuleEvaluator, settingsRepo portsrepo.RateSettingsReader, options ...RateServiceOption) portssvc.RateSvcFacade {
	svc := &rateService{
		evaluator:    evaluator,
		settingsRepo: settingsRepo,
		workerLimit:  DefaultRateWorkerLimit,
		timeout:      DefaultRateEvaluationTimeout,
	}
	for _, option := range options {
		option(svc)
	}
	if svc.metrics == nil {
		svc.metrics = metrics.NewNop()
	}
	return svc
}

// Ensure rateService implements the RateSvcFacade interface
var _ portssvc.RateSvcFacade = (*rateService)(nil)

func (s *rateService) GetRates(ctx context.Context, storeID string, rawPairs []string) ([]domain.RateResult, error) {
	// Validation is all-or-nothing: nothing is dispatched when a token is malformed.
	pairs, err := domain.ParseCurrencyPairs(rawPairs)
	if err != nil {
		return nil, err
	}

	settings, err := s.settingsFor(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		pairs = dedupePairs(settings.DefaultPairs)
	}

	s.LogDebug(ctx, "Aggregating rates",
		slog.String("store_id", storeID),
		slog.Int("pairs", len(pairs)),
		slog.Int("rules", len(settings.Rules.Rules)))

	return s.Aggregate(ctx, pairs, settings.Rules, s.timeout), nil
}

// Aggregate evaluates every pair on a bounded pool under one deadline shared by all of them.
// It always waits for all tasks and returns one result per pair; a failing or slow pair only
// affects its own result.
func (s *rateService) Aggregate(ctx context.Context, pairs []domain.CurrencyPair, chain domain.RuleChain, timeout time.Duration) []domain.RateResult {
	if timeout <= 0 {
		timeout = s.timeout
	}
	results := make([]domain.RateResult, len(pairs))

	// Tasks queued behind the worker limit do not get a fresh timeout when they start.
	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(s.workerLimit)
	for i, pair := range pairs {
		g.Go(func() error {
			results[i] = s.evaluatePair(ctx, deadlineCtx, pair, chain, timeout)
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors; failures live in each result

	return results
}

type evaluation struct {
	quote domain.BidAsk
	errs  []error
}

// evaluatePair resolves one pair before deadlineCtx is done. ctx is the request context,
// used to tell a cancelled request from an expired deadline.
func (s *rateService) evaluatePair(ctx, deadlineCtx context.Context, pair domain.CurrencyPair, chain domain.RuleChain, timeout time.Duration) domain.RateResult {
	start := time.Now()
	defer metrics.ObserveSince(s.metrics.RateEvaluationDuration, start)

	result := domain.RateResult{Pair: pair, Errors: []string{}}

	// The evaluator runs apart so a stalled upstream cannot hold the barrier past the deadline.
	done := make(chan evaluation, 1)
	if deadlineCtx.Err() == nil {
		go func() {
			quote, errs := s.evaluator.Evaluate(deadlineCtx, pair, chain)
			done <- evaluation{quote: quote, errs: errs}
		}()
	}

	select {
	case ev := <-done:
		if len(ev.errs) == 0 {
			quote := ev.quote
			result.BidAsk = &quote
			s.metrics.RateEvaluationsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
			return result
		}
		if deadlineCtx.Err() == nil {
			result.Errors = distinctMessages(ev.errs)
			s.metrics.RateEvaluationsTotal.WithLabelValues(outcomeOf(ev.errs)).Inc()
			break
		}
		// Failed because the deadline passed: same outcome as not answering at all.
		result.Errors = s.deadlineErrors(ctx, deadlineCtx, pair, timeout)
	case <-deadlineCtx.Done():
		result.Errors = s.deadlineErrors(ctx, deadlineCtx, pair, timeout)
	}

	s.LogWarn(ctx, "Rate evaluation failed",
		slog.String("currency_pair", pair.String()),
		slog.Any("errors", result.Errors))
	return result
}

func (s *rateService) deadlineErrors(ctx, deadlineCtx context.Context, pair domain.CurrencyPair, timeout time.Duration) []string {
	if errors.Is(deadlineCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		s.metrics.RateEvaluationsTotal.WithLabelValues(metrics.OutcomeTimeout).Inc()
		return []string{fmt.Sprintf("%s: evaluation of %s exceeded %s", apperrors.ErrTimeout, pair, timeout)}
	}
	s.metrics.RateEvaluationsTotal.WithLabelValues(metrics.OutcomeCancelled).Inc()
	return []string{fmt.Sprintf("%s: %s", apperrors.ErrCancelled, context.Cause(ctx))}
}

func (s *rateService) settingsFor(ctx context.Context, storeID string) (domain.StoreRateSettings, error) {
	if s.settingsRepo == nil {
		return s.defaults, nil
	}
	settings, err := s.settingsRepo.FindRateSettings(ctx, storeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.LogDebug(ctx, "Store has no rate settings, using defaults", slog.String("store_id", storeID))
			return s.defaults, nil
		}
		return domain.StoreRateSettings{}, fmt.Errorf("failed to load rate settings for store %s: %w", storeID, err)
	}
	if len(settings.DefaultPairs) == 0 {
		settings.DefaultPairs = s.defaults.DefaultPairs
	}
	return *settings, nil
}

func dedupePairs(pairs []domain.CurrencyPair) []domain.CurrencyPair {
	seen := make(map[domain.CurrencyPair]struct{}, len(pairs))
	out := make([]domain.CurrencyPair, 0, len(pairs))
	for _, p := range pairs {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// distinctMessages keeps one message per distinct cause, in first-seen order.
func distinctMessages(errs []error) []string {
	seen := make(map[string]struct{}, len(errs))
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			continue
		}
		msg := err.Error()
		if _, ok := seen[msg]; ok {
			continue
		}
		seen[msg] = struct{}{}
		out = append(out, msg)
	}
	if len(out) == 0 {
		out = append(out, "rate evaluation failed")
	}
	return out
}

func outcomeOf(errs []error) string {
	for _, err := range errs {
		if errors.Is(err, apperrors.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return metrics.OutcomeTimeout
		}
	}
	return metrics.OutcomeError
}
