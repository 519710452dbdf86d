package exporter

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "firdscli/internal/errors"
	"firdscli/pkg/contracts/domain"
)

// Exporter writes row sequences in one format
type Exporter struct {
	format Format
	logger *slog.Logger
}

// New creates an exporter for format
func New(format Format, logger *slog.Logger) *Exporter {
	return &Exporter{
		format: format,
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// Format returns the exporter's file format
func (e *Exporter) Format() Format {
	return e.format
}

// WriteAll writes rows as CSV to path
func WriteAll(ctx context.Context, rows iter.Seq2[domain.InstrumentRow, error], path string) (int, error) {
	return New(FormatCSV, slog.New(slog.NewTextHandler(io.Discard, nil))).WriteAll(ctx, rows, path)
}

// WriteAll creates or truncates path, writes the header and then every row.
// It returns the number of rows written. The file is closed on every path.
func (e *Exporter) WriteAll(ctx context.Context, rows iter.Seq2[domain.InstrumentRow, error], path string) (n int, err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, apperrors.NewOutputError(fmt.Sprintf("cannot create directory %s", dir), err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, apperrors.NewOutputError(fmt.Sprintf("cannot create %s", path), err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = apperrors.NewOutputError(fmt.Sprintf("cannot close %s", path), cerr)
		}
	}()

	w, err := newRowWriter(e.format, file)
	if err != nil {
		return 0, apperrors.NewOutputError(fmt.Sprintf("cannot start %s writer", e.format), err)
	}
	closed := false
	defer func() {
		if !closed {
			w.Close()
		}
	}()

	if err := w.WriteHeader(domain.InstrumentHeader); err != nil {
		return 0, apperrors.NewOutputError(fmt.Sprintf("cannot write header to %s", path), err)
	}

	for row, rowErr := range rows {
		if rowErr != nil {
			return n, rowErr
		}
		if err := ctx.Err(); err != nil {
			return n, apperrors.NewCancelledError("export cancelled", err)
		}
		if err := w.WriteRow(row); err != nil {
			return n, apperrors.NewOutputError(fmt.Sprintf("cannot write row %d to %s", n+1, path), err)
		}
		n++
	}

	closed = true
	if err := w.Close(); err != nil {
		return n, apperrors.NewOutputError(fmt.Sprintf("cannot flush %s", path), err)
	}

	e.logger.InfoContext(ctx, "export_complete",
		slog.String("path", path),
		slog.String("format", string(e.format)),
		slog.Int("rows", n))

	return n, nil
}

