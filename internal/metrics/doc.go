// Package metrics is a failure-tolerant instrumentation facade. A Tracker
// resolves one handle per domain metric from an optional Registry at
// construction; Prometheus and OpenTelemetry registries are provided.
package metrics
