// Package files provides read-only queries over the CSV store.
//
// Manager answers existence, modification time and directory listing
// questions relative to the store base directory and never fails: I/O
// errors degrade to false or an empty list.
//
// Discovery understands the chain layout <INDEX>/<DATE>/<CODE>_<OFFSET>.csv
// and is used by aggregation rescans.
package files
