// Package exporter writes extracted instrument rows to a tabular file.
//
// Every format starts with the fixed instrument header and writes one row per
// record in sequence order. Absent values are rendered as empty cells (CSV,
// XLSX) or nulls (Parquet).
//
// Formats:
//
//   - csv: RFC 4180 quoting, no byte order mark
//   - xlsx: a single "Instruments" sheet written with a streaming writer
//   - parquet: optional UTF8 columns, snappy compressed
//
// Example usage:
//
//	exp := exporter.New(exporter.FormatCSV, logger)
//	n, err := exp.WriteAll(ctx, coll.Records(), "data/reports/fininstr.csv")
//
// WriteAll consumes the sequence once. An error yielded by the sequence stops
// the export and is returned unchanged; failures of the file itself are
// OUTPUT errors. A partial file may remain after a failure.
package exporter
