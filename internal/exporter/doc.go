// Package exporter is the durable CSV writer for option chain stores.
//
// CSVWriter resolves relative paths under the storage base directory,
// creates parent directories on demand and appends rows in a single
// write per call. The header is written only by the call that creates a
// file. Write failures are returned as storage errors so callers can see
// lost data; reads of missing files return an empty result.
//
// Example usage:
//
//	writer := exporter.NewCSVWriter(paths, logger)
//	err := writer.AppendRow("NIFTY/2024-01-01/W0_ATM.csv", row, header)
//	rows, err := writer.ReadCSV("NIFTY/2024-01-01/W0_ATM.csv")
package exporter
