package settings

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/adapters/rates"
	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	portsrepo "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/repositories"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/metrics"
)

// StaticSourceName is the source name of the quotes under "static".
const StaticSourceName = "static"

// FileRepository serves rate settings decoded from a settings file.
type FileRepository struct {
	stores   map[string]domain.StoreRateSettings
	fallback *domain.StoreRateSettings
}

// NewFileRepository converts f once; lookups never touch the YAML model again.
func NewFileRepository(f *File) (*FileRepository, error) {
	repo := &FileRepository{stores: make(map[string]domain.StoreRateSettings, len(f.Stores))}
	for id, s := range f.Stores {
		converted, err := s.toDomain(id)
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", id, err)
		}
		repo.stores[id] = converted
	}
	if f.Default != nil {
		converted, err := f.Default.toDomain("")
		if err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
		repo.fallback = &converted
	}
	return repo, nil
}

// Ensure FileRepository implements the RateSettingsReader interface
var _ portsrepo.RateSettingsReader = (*FileRepository)(nil)

func (r *FileRepository) FindRateSettings(_ context.Context, storeID string) (*domain.StoreRateSettings, error) {
	s, ok := r.stores[storeID]
	if !ok {
		return nil, fmt.Errorf("%w: no rate settings for store %s", apperrors.ErrNotFound, storeID)
	}
	return cloneSettings(s), nil
}

// Default returns the settings of stores without their own entry, if the file has any.
func (r *FileRepository) Default() (domain.StoreRateSettings, bool) {
	if r.fallback == nil {
		return domain.StoreRateSettings{}, false
	}
	return *cloneSettings(*r.fallback), true
}

func cloneSettings(s domain.StoreRateSettings) *domain.StoreRateSettings {
	out := s
	out.DefaultPairs = append([]domain.CurrencyPair(nil), s.DefaultPairs...)
	out.Rules.Rules = append([]domain.RateRule(nil), s.Rules.Rules...)
	return &out
}

// SourceOptions tune the providers built from a settings file.
type SourceOptions struct {
	HTTPClient   *http.Client
	CacheSize    int
	CacheTTL     time.Duration
	// FetchTimeout bounds a cached upstream call shared by concurrent callers.
	FetchTimeout time.Duration
	Metrics      *metrics.Metrics
}

// BuildSources returns the registry of every source the file defines. HTTP sources are cached.
func BuildSources(f *File, opts SourceOptions) (*rates.Registry, error) {
	quotes, err := f.staticQuotes()
	if err != nil {
		return nil, err
	}
	registry := rates.NewRegistry(rates.NewStaticProvider(StaticSourceName, quotes))
	for _, h := range f.HTTP {
		provider, err := rates.NewHTTPProvider(rates.HTTPProviderConfig{
			Name:     h.Name,
			URL:      h.URL,
			BidField: h.BidField,
			AskField: h.AskField,
		}, opts.HTTPClient)
		if err != nil {
			return nil, err
		}
		registry.Register(rates.NewCachedProvider(provider, opts.CacheSize, opts.CacheTTL, opts.Metrics,
			rates.WithFetchTimeout(opts.FetchTimeout)))
	}
	return registry, nil
}
