package services

import (
	"fmt"

	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	portsrepo "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/repositories"
	portssvc "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/services"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/config"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/metrics"
)

// ServiceDependencies are the collaborators that are not repositories.
type ServiceDependencies struct {
	Publisher EventPublisher
	Evaluator portssvc.RateRuleEvaluator
	// DefaultRateSettings apply to stores without settings of their own.
	// Empty DefaultPairs are filled from cfg.DefaultCurrencyPairs.
	DefaultRateSettings domain.StoreRateSettings
	Metrics             *metrics.Metrics
}

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, deps ServiceDependencies) (*portssvc.ServiceContainer, error) {
	defaults := deps.DefaultRateSettings
	if len(defaults.DefaultPairs) == 0 {
		pairs, err := domain.ParseCurrencyPairs(cfg.DefaultCurrencyPairs)
		if err != nil {
			return nil, fmt.Errorf("invalid DEFAULT_CURRENCY_PAIRS: %w", err)
		}
		defaults.DefaultPairs = pairs
	}

	container := &portssvc.ServiceContainer{}

	container.Processor = NewProcessorService(
		repos.ProcessorRegistry,
		deps.Publisher,
		WithStopAckTimeout(cfg.StopAckTimeout),
		WithProcessorMetrics(deps.Metrics),
	)

	container.Rate = NewRateService(
		deps.Evaluator,
		repos.RateSettingsRepo,
		WithRateWorkerLimit(cfg.RateWorkerLimit),
		WithRateEvaluationTimeout(cfg.RateEvaluationTimeout),
		WithDefaultRateSettings(defaults),
		WithRateMetrics(deps.Metrics),
	)

	return container, nil
}
