// Package health provides the liveness and readiness endpoints of the
// transformation service.
//
// Liveness (/health, /healthz) only reports that the process is serving.
// Readiness (/ready, /readyz) runs the registered checks and fails while
// the server is draining, so load balancers stop routing new requests
// before shutdown completes.
//
// # Usage
//
//	h := health.NewHandler(logger, version)
//	h.AddCheck(health.NewCachedHealthCheck(
//	    health.NewHealthCheckFunc("engine", probe), 5*time.Second))
//	h.RegisterRoutes(router)
package health
