// Package services holds the logic behind the operational HTTP endpoints.
// HealthService derives liveness and per-index readiness from the
// collector's most recent cycle reports.
package services
