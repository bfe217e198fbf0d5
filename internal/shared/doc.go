// Package shared provides common test helpers used across the collector
// packages.
//
// # Structure
//
// - testutil: a buffering slog handler for asserting on log output and an
// in-memory event recorder that satisfies events.Sink
//
// This package must not import any domain package so that every package
// can use it from its tests without import cycles.
package shared
