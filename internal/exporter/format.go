package exporter

import (
	"fmt"
	"io"
	"strings"

	"firdscli/pkg/contracts/domain"
)

// Format names a tabular file type
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts a format name in any case
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatParquet:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// FileName gives name the format's extension. A known format extension is
// replaced; any other extension is kept and the format's appended.
func (f Format) FileName(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 && !strings.ContainsAny(name[i:], `/\`) {
		if _, err := ParseFormat(name[i+1:]); err == nil {
			name = name[:i]
		}
	}
	return name + f.Extension()
}

// RowWriter encodes rows onto an open file
type RowWriter interface {
	WriteHeader(header []string) error
	WriteRow(row domain.InstrumentRow) error
	// Close flushes buffered output without closing the underlying file
	Close() error
}

func newRowWriter(f Format, w io.Writer) (RowWriter, error) {
	switch f {
	case FormatCSV:
		return NewCSVWriter(w), nil
	case FormatXLSX:
		return NewXLSXWriter(w)
	case FormatParquet:
		return NewParquetWriter(w)
	default:
		return nil, fmt.Errorf("unknown output format %q", string(f))
	}
}
