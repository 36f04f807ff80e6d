package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	portsrepo "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PgxRateSettingsRepository implements the portsrepo.RateSettingsReader interface using pgxpool.
type PgxRateSettingsRepository struct {
	db *pgxpool.Pool
}

func newPgxRateSettingsRepository(db *pgxpool.Pool) *PgxRateSettingsRepository {
	return &PgxRateSettingsRepository{db: db}
}

// Ensure PgxRateSettingsRepository implements the RateSettingsReader interface
var _ portsrepo.RateSettingsReader = (*PgxRateSettingsRepository)(nil)

type settingsRow struct {
	DefaultPairs []string
	Spread       decimal.Decimal
}

type ruleRow struct {
	Pattern string
	Sources []string
	Via     string
	Invert  bool
	Spread  decimal.Decimal
}

// FindRateSettings loads a store's settings and its rules in position order.
func (r *PgxRateSettingsRepository) FindRateSettings(ctx context.Context, storeID string) (*domain.StoreRateSettings, error) {
	settingsQuery := `
		SELECT default_pairs, spread
		FROM store_rate_settings
		WHERE store_id = $1
	`
	var s settingsRow
	err := r.db.QueryRow(ctx, settingsQuery, storeID).Scan(&s.DefaultPairs, &s.Spread)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no rate settings for store %s", apperrors.ErrNotFound, storeID)
		}
		return nil, fmt.Errorf("error querying rate settings for store %s: %w", storeID, err)
	}

	rulesQuery := `
		SELECT pattern, sources, via, invert, spread
		FROM store_rate_rules
		WHERE store_id = $1
		ORDER BY position ASC
	`
	rows, err := r.db.Query(ctx, rulesQuery, storeID)
	if err != nil {
		return nil, fmt.Errorf("error querying rate rules for store %s: %w", storeID, err)
	}
	defer rows.Close()

	var rules []ruleRow
	for rows.Next() {
		var rr ruleRow
		if err := rows.Scan(&rr.Pattern, &rr.Sources, &rr.Via, &rr.Invert, &rr.Spread); err != nil {
			return nil, fmt.Errorf("error scanning rate rule row: %w", err)
		}
		rules = append(rules, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rate rule rows: %w", err)
	}

	return assembleSettings(storeID, s, rules)
}

// assembleSettings converts stored rows; rows that no longer parse fail the lookup.
func assembleSettings(storeID string, s settingsRow, rules []ruleRow) (*domain.StoreRateSettings, error) {
	pairs, err := domain.ParseCurrencyPairs(s.DefaultPairs)
	if err != nil {
		return nil, fmt.Errorf("stored default pairs of store %s: %w", storeID, err)
	}
	chain := domain.RuleChain{StoreID: storeID, Spread: s.Spread, Rules: make([]domain.RateRule, 0, len(rules))}
	for _, rr := range rules {
		if len(rr.Sources) == 0 {
			return nil, fmt.Errorf("%w: stored rule %s of store %s has no sources", apperrors.ErrValidation, rr.Pattern, storeID)
		}
		chain.Rules = append(chain.Rules, domain.RateRule{
			Pattern: rr.Pattern,
			Sources: rr.Sources,
			Via:     rr.Via,
			Invert:  rr.Invert,
			Spread:  rr.Spread,
		})
	}
	return &domain.StoreRateSettings{StoreID: storeID, DefaultPairs: pairs, Rules: chain}, nil
}
