// Package rates holds the upstream rate providers and the rule chain evaluator.
package rates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
)

// Provider fetches the quote of a single pair from one upstream source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, pair domain.CurrencyPair) (domain.BidAsk, error)
}

// Registry resolves provider names used by rate rules.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider with the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Lookup returns the named provider or an ErrNotFound error.
func (r *Registry) Lookup(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: rate source %q is not configured", apperrors.ErrNotFound, name)
	}
	return p, nil
}

// Names lists the registered providers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StaticProvider serves a fixed table of quotes.
type StaticProvider struct {
	name   string
	quotes map[domain.CurrencyPair]domain.BidAsk
}

func NewStaticProvider(name string, quotes map[domain.CurrencyPair]domain.BidAsk) *StaticProvider {
	copied := make(map[domain.CurrencyPair]domain.BidAsk, len(quotes))
	for pair, q := range quotes {
		copied[pair] = q
	}
	return &StaticProvider{name: name, quotes: copied}
}

func (p *StaticProvider) Name() string { return p.name }

func (p *StaticProvider) Fetch(ctx context.Context, pair domain.CurrencyPair) (domain.BidAsk, error) {
	if ctx.Err() != nil {
		return domain.BidAsk{}, contextError(ctx)
	}
	q, ok := p.quotes[pair]
	if !ok {
		return domain.BidAsk{}, fmt.Errorf("%w: %s has no rate for %s", apperrors.ErrUpstream, p.name, pair)
	}
	return q, nil
}

// contextError maps a done context to ErrTimeout or ErrCancelled.
func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", apperrors.ErrTimeout, ctx.Err())
	}
	return fmt.Errorf("%w: %w", apperrors.ErrCancelled, ctx.Err())
}
