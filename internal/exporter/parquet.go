package exporter

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"firdscli/pkg/contracts/domain"
)

// Parquet column names, in header order
var parquetColumns = []string{
	"id",
	"full_name",
	"classification_type",
	"commodity_derivative_indicator",
	"notional_currency",
	"issuer",
}

type parquetRow struct {
	ID                           *string `json:"id"`
	FullName                     *string `json:"full_name"`
	ClassificationType           *string `json:"classification_type"`
	CommodityDerivativeIndicator *string `json:"commodity_derivative_indicator"`
	Currency                     *string `json:"notional_currency"`
	Issuer                       *string `json:"issuer"`
}

// ParquetWriter streams rows into a snappy compressed Parquet file
type ParquetWriter struct {
	pw *writer.JSONWriter
}

// NewParquetWriter creates a Parquet writer on w
func NewParquetWriter(w io.Writer) (*ParquetWriter, error) {
	pw, err := writer.NewJSONWriter(parquetSchema(), writerfile.NewWriterFile(w), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	return &ParquetWriter{pw: pw}, nil
}

func parquetSchema() string {
	fields := make([]map[string]string, 0, len(parquetColumns))
	for _, name := range parquetColumns {
		fields = append(fields, map[string]string{
			"Tag": "name=" + name + ", type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
		})
	}
	schema, _ := json.Marshal(map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	})
	return string(schema)
}

// WriteHeader is a no-op; the column names live in the schema
func (p *ParquetWriter) WriteHeader([]string) error {
	return nil
}

// WriteRow writes one record, absent values as nulls
func (p *ParquetWriter) WriteRow(row domain.InstrumentRow) error {
	data, err := json.Marshal(parquetRow{
		ID:                           row.ID.Ptr(),
		FullName:                     row.FullName.Ptr(),
		ClassificationType:           row.ClassificationType.Ptr(),
		CommodityDerivativeIndicator: row.CommodityDerivativeIndicator.Ptr(),
		Currency:                     row.Currency.Ptr(),
		Issuer:                       row.Issuer.Ptr(),
	})
	if err != nil {
		return err
	}
	return p.pw.Write(string(data))
}

// Close writes the footer
func (p *ParquetWriter) Close() error {
	if err := p.pw.WriteStop(); err != nil {
		return errors.Join(err, p.pw.PFile.Close())
	}
	return p.pw.PFile.Close()
}
