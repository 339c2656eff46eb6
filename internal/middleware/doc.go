// Package middleware provides the gin middleware chain in front of the
// transformation endpoints.
//
//   - RequestID: X-Request-ID propagation into the request context
//   - Logging: one structured access log line per request
//   - Recovery: panics become 500 responses
//   - SecurityHeaders: hardening headers on every response
//   - Tracing: a server span per request with W3C context extraction
//   - Metrics: request counters and latency histograms
//   - BodyLimit: request body size limiting
//   - RequestTimeout: a deadline on the request context
//   - RateLimit: token bucket limiting, global or per client IP
//   - ConcurrencyLimit: a cap on in-flight transformations
//
// Rejections use the same envelope as a failed transformation so clients
// handle a single error shape:
//
//	{"success": false, "errorMessage": "rate limit exceeded", "errorKind": "rate_limited"}
package middleware
