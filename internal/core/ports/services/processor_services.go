package services

import (
	"context"

	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
)

// ProcessorReaderSvc defines read operations for processors.
type ProcessorReaderSvc interface {
	ListProcessors(ctx context.Context, storeID string, kind domain.ProcessorKind) ([]domain.ProcessorRecord, error)
}

// ProcessorControlSvc starts and stops processors.
type ProcessorControlSvc interface {
	// StartProcessor starts the selected processor; it is a no-op when one is already running.
	StartProcessor(ctx context.Context, query domain.ProcessorQuery) (*domain.ProcessorRecord, error)

	// StopProcessor asks the selected processor to stop and waits for its acknowledgment.
	StopProcessor(ctx context.Context, query domain.ProcessorQuery) error
}

// ProcessorSvcFacade combines all processor-related service interfaces
type ProcessorSvcFacade interface {
	ProcessorReaderSvc
	ProcessorControlSvc
}
