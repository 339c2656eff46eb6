// Package server exposes the transformation engine over HTTP.
//
// Routes:
//
//	POST /api/v2/transform              run a transformation
//	POST /api/v2/transform/debug/parse  show how a payload decodes
//	GET  /api/v2/functions              list FUNCTION built-ins
//	GET  /health, /ready                probes
//	GET  /metrics                       Prometheus metrics
//
// Every API route shares the middleware chain built in New: recovery,
// request IDs, tracing, metrics, access logging, body and rate limits,
// a request deadline and, for the transform routes, a concurrency cap.
package server
