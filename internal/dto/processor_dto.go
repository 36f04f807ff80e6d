package dto

import (
	"time"

	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
)

// ProcessorURI binds the path of a single processor.
type ProcessorURI struct {
	StoreID       string `uri:"storeId" binding:"required"`
	Processor     string `uri:"processor" binding:"required,processorname"`
	PaymentMethod string `uri:"paymentMethod" binding:"required,paymentmethod"`
}

// ProcessorResponse defines the structure for API responses containing a running processor.
type ProcessorResponse struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"storeId"`
	Kind          string    `json:"kind" example:"payout"`
	Name          string    `json:"name" example:"OnChainAutomatedPayoutSenderFactory"`
	PaymentMethod string    `json:"paymentMethod" example:"BTC-CHAIN"`
	State         string    `json:"state" example:"Running"`
	StartedAt     time.Time `json:"startedAt"`
}

// ToProcessorResponse converts a domain.ProcessorRecord to ProcessorResponse DTO
func ToProcessorResponse(r domain.ProcessorRecord) ProcessorResponse {
	return ProcessorResponse{
		ID:            r.ID,
		StoreID:       r.StoreID,
		Kind:          string(r.Kind),
		Name:          string(r.Name),
		PaymentMethod: r.PaymentMethod.String(),
		State:         string(r.State),
		StartedAt:     r.StartedAt,
	}
}

// ToProcessorResponses converts records, keeping their order.
func ToProcessorResponses(records []domain.ProcessorRecord) []ProcessorResponse {
	out := make([]ProcessorResponse, 0, len(records))
	for _, r := range records {
		out = append(out, ToProcessorResponse(r))
	}
	return out
}
