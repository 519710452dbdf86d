package exporter

import (
	"errors"
	"io"

	"github.com/xuri/excelize/v2"

	"firdscli/pkg/contracts/domain"
)

// SheetName is the worksheet holding the instruments
const SheetName = "Instruments"

// XLSXWriter streams rows into a workbook that is written out on Close
type XLSXWriter struct {
	out    io.Writer
	file   *excelize.File
	stream *excelize.StreamWriter
	row    int
}

// NewXLSXWriter creates a workbook with a single instruments sheet
func NewXLSXWriter(w io.Writer) (*XLSXWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, err
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &XLSXWriter{out: w, file: f, stream: sw, row: 1}, nil
}

// WriteHeader writes the header in bold on the first row
func (x *XLSXWriter) WriteHeader(header []string) error {
	style, err := x.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = excelize.Cell{StyleID: style, Value: h}
	}
	return x.setRow(cells)
}

// WriteRow writes one record; absent values leave the cell empty
func (x *XLSXWriter) WriteRow(row domain.InstrumentRow) error {
	fields := row.Fields()
	cells := make([]interface{}, len(fields))
	for i, f := range fields {
		if f.Valid {
			cells[i] = f.String
		}
	}
	return x.setRow(cells)
}

func (x *XLSXWriter) setRow(cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	if err := x.stream.SetRow(cell, cells); err != nil {
		return err
	}
	x.row++
	return nil
}

// Close flushes the sheet and writes the workbook
func (x *XLSXWriter) Close() error {
	err := x.stream.Flush()
	if err == nil {
		_, err = x.file.WriteTo(x.out)
	}
	return errors.Join(err, x.file.Close())
}
