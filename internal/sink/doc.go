// Package sink turns a grouped option chain into CSV rows.
//
// Layout under the storage base directory:
//
//	<INDEX>/<DATE>/<CODE>_<OFFSET>.csv    one row per cycle per offset
//	quarantine/<INDEX>/<DATE>.csv         rows diverted as junk, with a reason
//	overview/<INDEX>/<DATE>.csv           one row per cycle per expiry
//
// A row whose timestamp and expiry are already stored in its file is
// skipped. The per-file seen set is loaded from disk the first time a file
// is touched, so restarts do not duplicate rows.
package sink
