package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	"github.com/btcpayserver/btcpayserver-sub006/internal/core/domain"
	portssvc "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/services"
	"github.com/btcpayserver/btcpayserver-sub006/internal/dto"
	"github.com/btcpayserver/btcpayserver-sub006/internal/middleware"
	"github.com/gin-gonic/gin"
)

// processorHandler handles HTTP requests for the processors of one kind.
type processorHandler struct {
	processorService portssvc.ProcessorSvcFacade
	kind             domain.ProcessorKind
}

func newProcessorHandler(ps portssvc.ProcessorSvcFacade, kind domain.ProcessorKind) *processorHandler {
	return &processorHandler{processorService: ps, kind: kind}
}

// RegisterProcessorRoutes registers the payout and transfer processor routes on a /stores/:storeId group.
func RegisterProcessorRoutes(rg *gin.RouterGroup, processorService portssvc.ProcessorSvcFacade) error {
	if err := registerValidators(); err != nil {
		return err
	}
	for _, kind := range []domain.ProcessorKind{domain.ProcessorKindPayout, domain.ProcessorKindTransfer} {
		h := newProcessorHandler(processorService, kind)
		processors := rg.Group("/" + string(kind) + "-processors")
		{
			processors.GET("", h.listProcessors)
			processors.PUT("/:processor/:paymentMethod", h.startProcessor)
			processors.DELETE("/:processor/:paymentMethod", h.stopProcessor)
		}
	}
	return nil
}

// listProcessors godoc
// @Summary List running processors
// @Tags processors
// @Produce  json
// @Param   storeId path string true "Store ID"
// @Success 200 {array} dto.ProcessorResponse
// @Failure 500 {object} map[string]string "Failed to list processors"
// @Router /stores/{storeId}/payout-processors [get]
// @Router /stores/{storeId}/transfer-processors [get]
func (h *processorHandler) listProcessors(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	storeID := c.Param("storeId")

	records, err := h.processorService.ListProcessors(c.Request.Context(), storeID, h.kind)
	if err != nil {
		logger.Error("Failed to list processors", slog.String("store_id", storeID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list processors"})
		return
	}
	c.JSON(http.StatusOK, dto.ToProcessorResponses(records))
}

// startProcessor godoc
// @Summary Start a processor
// @Description Starts the processor for the payment method. Starting a running processor returns it unchanged.
// @Tags processors
// @Produce  json
// @Param   storeId path string true "Store ID"
// @Param   processor path string true "Processor name" example(OnChainAutomatedPayoutSenderFactory)
// @Param   paymentMethod path string true "Payment method" example(BTC-CHAIN)
// @Success 200 {object} dto.ProcessorResponse
// @Failure 400 {object} map[string]string "Invalid processor or payment method"
// @Failure 404 {object} map[string]string "Processor not available for this kind"
// @Failure 503 {object} map[string]string "Processor host is shutting down"
// @Router /stores/{storeId}/payout-processors/{processor}/{paymentMethod} [put]
// @Router /stores/{storeId}/transfer-processors/{processor}/{paymentMethod} [put]
func (h *processorHandler) startProcessor(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	query, ok := h.bindQuery(c)
	if !ok {
		return
	}

	record, err := h.processorService.StartProcessor(c.Request.Context(), query)
	if err != nil {
		writeProcessorError(c, logger, "start", err)
		return
	}
	c.JSON(http.StatusOK, dto.ToProcessorResponse(*record))
}

// stopProcessor godoc
// @Summary Stop a processor
// @Description Sends a stop command and waits until the processor acknowledges that it has stopped.
// @Tags processors
// @Produce  json
// @Param   storeId path string true "Store ID"
// @Param   processor path string true "Processor name" example(OnChainAutomatedPayoutSenderFactory)
// @Param   paymentMethod path string true "Payment method" example(BTC-CHAIN)
// @Success 200 {object} map[string]string "Processor stopped"
// @Failure 400 {object} map[string]string "Invalid processor or payment method"
// @Failure 404 {object} map[string]string "No running processor matches"
// @Failure 500 {object} map[string]string "Processor reported a failure while stopping"
// @Failure 503 {object} map[string]string "Event bus unavailable or request cancelled"
// @Failure 504 {object} map[string]string "Stop was not acknowledged in time"
// @Router /stores/{storeId}/payout-processors/{processor}/{paymentMethod} [delete]
// @Router /stores/{storeId}/transfer-processors/{processor}/{paymentMethod} [delete]
func (h *processorHandler) stopProcessor(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	query, ok := h.bindQuery(c)
	if !ok {
		return
	}

	logger.Info("Received request to stop processor",
		slog.String("store_id", query.StoreID),
		slog.String("processor", string(query.Name)),
		slog.String("payment_method", query.PaymentMethod.String()))

	if err := h.processorService.StopProcessor(c.Request.Context(), query); err != nil {
		writeProcessorError(c, logger, "stop", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *processorHandler) bindQuery(c *gin.Context) (domain.ProcessorQuery, bool) {
	var uri dto.ProcessorURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.GetLoggerFromCtx(c.Request.Context()).Warn("Failed to bind processor URI", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid processor or payment method: " + err.Error()})
		return domain.ProcessorQuery{}, false
	}

	name, err := domain.ParseProcessorName(h.kind, uri.Processor)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Processor " + uri.Processor + " is not a " + string(h.kind) + " processor"})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return domain.ProcessorQuery{}, false
	}
	pm, err := domain.ParsePaymentMethodID(uri.PaymentMethod)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.ProcessorQuery{}, false
	}

	return domain.ProcessorQuery{StoreID: uri.StoreID, Kind: h.kind, Name: name, PaymentMethod: pm}, true
}

// writeProcessorError maps service outcomes to statuses. A timeout is never reported as success or as not found.
func writeProcessorError(c *gin.Context, logger *slog.Logger, action string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Processor not found"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrTimeout):
		logger.Warn("Processor "+action+" timed out", slog.String("error", err.Error()))
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrBusUnavailable), errors.Is(err, apperrors.ErrCancelled):
		logger.Warn("Processor "+action+" unavailable", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Error("Failed to "+action+" processor", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action + " processor: " + err.Error()})
	}
}
