package repositories

import (
	"context"

	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
)

// ProcessorReader resolves running processors.
type ProcessorReader interface {
	// FindProcessor returns the single processor matching query, or apperrors.ErrNotFound.
	FindProcessor(ctx context.Context, query domain.ProcessorQuery) (*domain.ProcessorRecord, error)

	// ListProcessors returns the running processors of a store for one kind.
	ListProcessors(ctx context.Context, storeID string, kind domain.ProcessorKind) ([]domain.ProcessorRecord, error)
}

// ProcessorStarter starts processors.
type ProcessorStarter interface {
	// StartProcessor starts the processor selected by query, or returns the one already running.
	StartProcessor(ctx context.Context, query domain.ProcessorQuery) (*domain.ProcessorRecord, error)
}

// ProcessorRegistry combines the processor read and start operations.
type ProcessorRegistry interface {
	ProcessorReader
	ProcessorStarter
}
