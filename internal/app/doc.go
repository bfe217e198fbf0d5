// Package app wires the collector together: configuration, logging,
// OpenTelemetry, the metrics backend, expiry resolution, the CSV sink and
// the operational HTTP server. It also owns start and graceful shutdown.
//
// # Initialization Flow
//
//	1. Resolve storage paths and create the directory tree
//	2. Initialize tracing and the metrics export path
//	3. Select the metrics registry for the configured backend
//	4. Build the provider, resolver, sink and collector
//	5. Configure the HTTP server for health and metrics endpoints
package app
