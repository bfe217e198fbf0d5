// Package middleware provides the chi middleware used by the collector's
// operational HTTP server: request IDs, request tracing, debug-level
// request logging and panic recovery.
package middleware
