package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avamapper/internal/util"
)

// BodyLimit rejects requests whose declared Content-Length exceeds
// maxBytes and caps the body reader for requests that do not declare one.
// A maxBytes of zero or less disables the limit.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			AbortWithError(c, http.StatusRequestEntityTooLarge,
				fmt.Errorf("%w: request body exceeds %d bytes", util.ErrInvalidInput, maxBytes))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
