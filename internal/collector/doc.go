// Package collector drives collection cycles. One cycle for an index
// looks up the index price, computes the ATM strike, resolves expiries,
// groups each expiry's quotes by strike and writes them through the sink.
// Indices run concurrently; a single index never overlaps itself within
// one RunAll call.
//
// Rounds repeat either on a fixed interval (Collector.Run) or on a cron
// schedule in market time (Scheduler.Run).
package collector
