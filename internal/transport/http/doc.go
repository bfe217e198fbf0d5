// Package http exposes the collector's operational endpoints over chi:
// /healthz, /readyz and /livez backed by services.HealthService, plus an
// optional /metrics handler for the Prometheus backend.
package http
