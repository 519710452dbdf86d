package exporter

import (
	"encoding/csv"
	"io"

	"firdscli/pkg/contracts/domain"
)

// CSVWriter streams rows as comma separated values
type CSVWriter struct {
	writer *csv.Writer
}

// NewCSVWriter creates a CSV writer on w
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{writer: csv.NewWriter(w)}
}

// WriteHeader writes the header line
func (s *CSVWriter) WriteHeader(header []string) error {
	return s.writer.Write(header)
}

// WriteRow writes one record, absent values as empty fields
func (s *CSVWriter) WriteRow(row domain.InstrumentRow) error {
	return s.writer.Write(row.Values())
}

// Close flushes the stream writer
func (s *CSVWriter) Close() error {
	s.writer.Flush()
	return s.writer.Error()
}
