package middleware

import "github.com/gin-gonic/gin"

// RequestIDHeader carries the request ID in and out. An incoming value is kept.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = contextKey("requestID")

// GetRequestIDFromContext retrieves the request ID set by StructuredLoggingMiddleware.
// It returns the ID and a boolean indicating if it was found.
func GetRequestIDFromContext(c *gin.Context) (string, bool) {
	val, exists := c.Get(string(requestIDKey))
	if !exists {
		// check in the request context as well
		if v, ok := c.Request.Context().Value(requestIDKey).(string); ok {
			return v, true
		}
		return "", false
	}

	requestID, ok := val.(string)
	return requestID, ok
}
