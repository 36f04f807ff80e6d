package middleware_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcpayserver/btcpayserver-sub006/internal/middleware"
	"github.com/btcpayserver/btcpayserver-sub006/internal/platform/logging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStructuredLoggingMiddleware_InjectsLogger(t *testing.T) {
	base := slog.New(slog.DiscardHandler)
	router := gin.New()
	router.Use(middleware.StructuredLoggingMiddleware(base))

	var fromRequest, fromGin *slog.Logger
	var requestID string
	router.GET("/ping", func(c *gin.Context) {
		fromRequest = logging.FromContext(c.Request.Context())
		fromGin = middleware.GetLoggerFromContext(c)
		requestID, _ = middleware.GetRequestIDFromContext(c)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "req-42", requestID)
	require.NotNil(t, fromRequest)
	assert.Same(t, fromGin, fromRequest)
	assert.NotSame(t, slog.Default(), fromRequest)
}

func TestStructuredLoggingMiddleware_GeneratesRequestID(t *testing.T) {
	router := gin.New()
	router.Use(middleware.StructuredLoggingMiddleware(slog.New(slog.DiscardHandler)))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	assert.Len(t, w.Header().Get(middleware.RequestIDHeader), 36)
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	limiterInstance, err := middleware.NewRateLimiter("2-M")
	require.NoError(t, err)

	router := gin.New()
	router.Use(middleware.RateLimit(limiterInstance))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNewRateLimiter_InvalidFormat(t *testing.T) {
	_, err := middleware.NewRateLimiter("lots")
	assert.Error(t, err)
}
