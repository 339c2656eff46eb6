package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avamapper/internal/util"
)

// HTTP header names.
const (
	RequestIDHeader  = "X-Request-ID"
	HeaderRetryAfter = "Retry-After"
)

// Gin context keys.
const (
	RequestIDKey = "requestID"
	SpanKey      = "otel-span"
)

// ErrorBody is the JSON envelope for rejected requests.
type ErrorBody struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
	ErrorKind    string `json:"errorKind,omitempty"`
}

// AbortWithError writes err as an ErrorBody with the given status and
// stops the chain.
func AbortWithError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorBody{
		Success:      false,
		ErrorMessage: err.Error(),
		ErrorKind:    util.ErrorKind(err),
	})
}

func isHealthCheckPath(path string) bool {
	return path == "/health" || path == "/healthz" || path == "/ready" || path == "/readyz"
}

func pathSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}
