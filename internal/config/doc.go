// Package config provides centralized configuration management for the
// option chain collector.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern OPTCHAIN_<SECTION>_<FIELD>:
//
//	OPTCHAIN_STORAGE_BASE_DIR=/var/lib/optchain
//	OPTCHAIN_EXPIRY_TTL=10m
//	OPTCHAIN_COLLECTOR_INDICES=NIFTY,BANKNIFTY
//	OPTCHAIN_METRICS_BACKEND=prometheus
//	OPTCHAIN_LOGGING_LEVEL=debug
//
// # Paths
//
// Paths resolves the CSV store layout. Relative locations are anchored at
// the executable directory so the collector behaves the same regardless of
// the working directory it was started from.
//
// # Market Constants
//
// constants.go holds the per-index strike interval table and the exchange
// session window used by the day-width calculation.
package config
