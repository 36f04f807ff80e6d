package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/btcpayserver/btcpayserver-sub006/internal/apperrors"
	portssvc "github.com/btcpayserver/btcpayserver-sub006/internal/core/ports/services"
	"github.com/btcpayserver/btcpayserver-sub006/internal/dto"
	"github.com/btcpayserver/btcpayserver-sub006/internal/middleware"
	"github.com/gin-gonic/gin"
)

// rateHandler handles HTTP requests related to store rates.
type rateHandler struct {
	rateService portssvc.RateSvcFacade
}

func newRateHandler(rs portssvc.RateSvcFacade) *rateHandler {
	return &rateHandler{rateService: rs}
}

// RegisterRateRoutes registers the rate routes on a /stores/:storeId group.
func RegisterRateRoutes(rg *gin.RouterGroup, rateService portssvc.RateSvcFacade) {
	h := newRateHandler(rateService)
	rg.GET("/rates", h.getRates)
}

// getRates godoc
// @Summary Get store rates
// @Description Evaluates every requested currency pair concurrently through the store's rate rules. Pairs are comma separated and the parameter may repeat; without pairs the store's default pairs are used. A failing pair carries its own errors and does not fail the request.
// @Tags rates
// @Produce  json
// @Param   storeId path string true "Store ID"
// @Param   currencyPair query []string false "Currency pairs such as BTC_USD" collectionFormat(multi)
// @Success 200 {array} dto.StoreRateResponse
// @Failure 400 {object} dto.InvalidCurrencyPairResponse "A currency pair could not be parsed"
// @Failure 500 {object} map[string]string "Failed to load rate settings"
// @Router /stores/{storeId}/rates [get]
func (h *rateHandler) getRates(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	storeID := c.Param("storeId")

	var rawPairs []string
	for _, value := range c.QueryArray("currencyPair") {
		for _, token := range strings.Split(value, ",") {
			if token = strings.TrimSpace(token); token != "" {
				rawPairs = append(rawPairs, token)
			}
		}
	}

	results, err := h.rateService.GetRates(c.Request.Context(), storeID, rawPairs)
	if err != nil {
		var tokenErr *apperrors.InvalidTokenError
		switch {
		case errors.As(err, &tokenErr):
			logger.Warn("Invalid currency pair", slog.String("currency_pair", tokenErr.Token))
			c.JSON(http.StatusBadRequest, dto.InvalidCurrencyPairResponse{Error: err.Error(), CurrencyPair: tokenErr.Token})
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			logger.Error("Failed to get rates", slog.String("store_id", storeID), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get rates"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToStoreRateResponses(results))
}
