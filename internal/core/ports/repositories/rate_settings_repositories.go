package repositories

import (
	"context"

	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
)

// RateSettingsReader defines read operations for store rate settings.
type RateSettingsReader interface {
	// FindRateSettings returns the store's default pairs and rule chain, or apperrors.ErrNotFound.
	FindRateSettings(ctx context.Context, storeID string) (*domain.StoreRateSettings, error)
}
