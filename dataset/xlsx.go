package dataset

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// ReadFile reads a feature table from path: .xlsx files with ReadXLSXFile,
// anything else as CSV.
func ReadFile(path string, opts CSVOptions) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSXFile(path, opts)
	}
	return ReadCSVFile(path, opts)
}

// ReadXLSXFile reads opts.Sheet (default the first sheet) of an Excel
// workbook. The first row is the header; the schema is the one of ReadCSV.
func ReadXLSXFile(path string, opts CSVOptions) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open feature table %s", path)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.Wrapf(errors.ErrEmptyData, "%s has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %s of %s", sheet, path)
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "sheet %s of %s is empty", sheet, path)
	}

	header := rows[0]
	i := 1
	next := func() ([]string, error) {
		for ; i < len(rows); i++ {
			// 空行はスキップ
			if len(rows[i]) == 0 {
				continue
			}
			rec := rows[i]
			i++
			// GetRows drops trailing empty cells.
			if len(rec) < len(header) {
				rec = append(rec, make([]string, len(header)-len(rec))...)
			}
			return rec, nil
		}
		return nil, io.EOF
	}
	return parseRecords("dataset.ReadXLSX", header, next, opts)
}
