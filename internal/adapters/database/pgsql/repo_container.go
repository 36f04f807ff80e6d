package pgsql

import (
	portsrepo "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRepositoryProvider wires the database-backed repositories. The processor registry
// is in-process and supplied by the caller.
func NewRepositoryProvider(dbPool *pgxpool.Pool, registry portsrepo.ProcessorRegistry) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		ProcessorRegistry: registry,
		RateSettingsRepo:  newPgxRateSettingsRepository(dbPool),
	}
}
