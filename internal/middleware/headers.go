package middleware

import (
	"github.com/gin-gonic/gin"
)

// Security headers.
const (
	HeaderXContentTypeOptions = "X-Content-Type-Options"
	HeaderXFrameOptions       = "X-Frame-Options"
	HeaderCacheControl        = "Cache-Control"
	HeaderReferrerPolicy      = "Referrer-Policy"
)

// DefaultSecurityHeaders returns the headers SecurityHeaders sets unless
// they are disabled.
func DefaultSecurityHeaders() map[string]string {
	return map[string]string{
		HeaderXContentTypeOptions: "nosniff",
		HeaderXFrameOptions:       "DENY",
		HeaderCacheControl:        "no-store",
		HeaderReferrerPolicy:      "no-referrer",
	}
}

// SecurityHeaders sets hardening headers on every response. custom entries
// are applied after the defaults and replace them on a name clash.
func SecurityHeaders(disableDefaults bool, custom map[string]string) gin.HandlerFunc {
	headers := make(map[string]string, len(custom)+4)
	if !disableDefaults {
		for name, value := range DefaultSecurityHeaders() {
			headers[name] = value
		}
	}
	for name, value := range custom {
		headers[name] = value
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for name, value := range headers {
			h.Set(name, value)
		}
		c.Next()
	}
}
