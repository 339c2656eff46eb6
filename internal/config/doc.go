// Package config defines the two configuration surfaces of avamapper.
//
// MappingConfig is the per-request transformation contract: protocols,
// output formatting and the ordered rule list. It arrives as JSON inside
// each request and is validated before any rule runs.
//
// ServiceConfig is the YAML file the server starts from. It supports
// ${VAR} and ${VAR:-default} environment substitution and can be watched
// for changes, in which case the reloadable parts (log level, sandbox
// limits, rate limits) are applied without a restart.
//
// # Example
//
//	server:
//	  port: 8080
//	  requestTimeout: 10s
//	limits:
//	  maxConcurrent: 64
//	sandbox:
//	  timeout: 250ms
//	observability:
//	  logging:
//	    level: info
package config
