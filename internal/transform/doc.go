// Package transform holds the pure helpers that turn a raw quote snapshot
// into storable rows: JSON sanitizing, strike grouping, ATM rounding,
// expiry bucketing, day width, offset labels and date keys.
//
// Nothing in this package performs I/O or keeps state; every function is
// safe for concurrent use.
package transform
