// Package util provides shared error types and context helpers for
// avamapper.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrFormat.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., FormatError, MappingError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// The transformation taxonomy:
//
//   - FormatError: source data cannot be decoded (fatal)
//   - ConfigError: the mapping configuration is invalid (fatal)
//   - MappingError: a single rule cannot resolve or write its path
//   - ScriptError: a sandboxed script failed, timed out or was rejected
//   - EncodeError: the target document cannot be rendered (fatal)
//
// # Context Helpers
//
// Context utilities for request-scoped data:
//
//	ctx = util.ContextWithRequestID(ctx, "req-123")
//	requestID := util.RequestIDFromContext(ctx)
package util
