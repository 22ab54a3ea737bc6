package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// CSVOptions names the schema columns of a feature-table CSV. Every column
// not named here is a feature.
type CSVOptions struct {
	IDColumn    string `yaml:"id_column"`
	LabelColumn string `yaml:"label_column"`
	GroupColumn string `yaml:"group_column"`
	BatchColumn string `yaml:"batch_column"`
	// Sheet is the worksheet of an .xlsx table; empty means the first one.
	Sheet string `yaml:"sheet"`
	// NoLabels allows a missing label column (scoring input).
	NoLabels bool `yaml:"-"`
	// Features, when set, loads only these feature columns. The other
	// columns are skipped without being parsed.
	Features []string `yaml:"-"`
}

// DefaultCSVOptions returns the schema used when nothing is configured.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{IDColumn: "id", LabelColumn: "label"}
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string, opts CSVOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open feature table %s", path)
	}
	defer f.Close()
	return ReadCSV(f, opts)
}

// ReadCSV loads a feature table. Non-numeric or non-finite cells fail with a
// DataIntegrityError naming the subject and column.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	return parseRecords("dataset.ReadCSV", header, cr.Read, opts)
}

// parseRecords builds a table from a header and a record source that
// returns io.EOF after the last row.
func parseRecords(op string, header []string, next func() ([]string, error), opts CSVOptions) (*Table, error) {
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var wanted map[string]bool
	if opts.Features != nil {
		wanted = make(map[string]bool, len(opts.Features))
		for _, f := range opts.Features {
			wanted[f] = true
		}
	}

	idCol, labelCol, groupCol, batchCol := -1, -1, -1, -1
	var featureCols []int
	var features []string
	for j, name := range header {
		switch {
		case name == opts.IDColumn:
			idCol = j
		case name == opts.LabelColumn:
			labelCol = j
		case opts.GroupColumn != "" && name == opts.GroupColumn:
			groupCol = j
		case opts.BatchColumn != "" && name == opts.BatchColumn:
			batchCol = j
		case wanted != nil && !wanted[name]:
			// not loaded
		default:
			featureCols = append(featureCols, j)
			features = append(features, name)
		}
	}
	if wanted != nil && len(features) != len(wanted) {
		for _, f := range opts.Features {
			if !contains(features, f) {
				return nil, errors.NewDataIntegrityError(op, "", f, "feature column missing")
			}
		}
	}
	if idCol < 0 {
		return nil, errors.NewDataIntegrityError(op, "", opts.IDColumn, "id column missing")
	}
	if labelCol < 0 && !opts.NoLabels {
		return nil, errors.NewDataIntegrityError(op, "", opts.LabelColumn, "label column missing")
	}
	if opts.GroupColumn != "" && groupCol < 0 {
		return nil, errors.NewDataIntegrityError(op, "", opts.GroupColumn, "group column missing")
	}
	if opts.BatchColumn != "" && batchCol < 0 {
		return nil, errors.NewDataIntegrityError(op, "", opts.BatchColumn, "batch column missing")
	}

	var (
		ids     []string
		labels  []int
		groups  []string
		batches []string
		values  []float64
	)
	for line := 2; ; line++ {
		rec, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read line %d", line)
		}
		if len(rec) != len(header) {
			return nil, errors.NewDataIntegrityError(op, "", "",
				fmt.Sprintf("line %d: %d cells for %d columns", line, len(rec), len(header)))
		}
		id := strings.TrimSpace(rec[idCol])
		ids = append(ids, id)

		if labelCol >= 0 {
			y, err := strconv.Atoi(strings.TrimSpace(rec[labelCol]))
			if err != nil {
				return nil, errors.NewDataIntegrityError(op, id, opts.LabelColumn,
					fmt.Sprintf("line %d: label %q is not an integer", line, rec[labelCol]))
			}
			labels = append(labels, y)
		} else {
			labels = append(labels, 0)
		}
		if groupCol >= 0 {
			groups = append(groups, strings.TrimSpace(rec[groupCol]))
		}
		if batchCol >= 0 {
			batches = append(batches, strings.TrimSpace(rec[batchCol]))
		}
		for k, j := range featureCols {
			cell := strings.TrimSpace(rec[j])
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.NewDataIntegrityError(op, id, features[k],
					fmt.Sprintf("line %d: value %q is not numeric", line, cell))
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewDataIntegrityError(op, id, features[k],
					fmt.Sprintf("line %d: non-finite value", line))
			}
			values = append(values, v)
		}
	}
	if len(ids) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "feature table has no rows")
	}
	if len(features) == 0 {
		return nil, errors.NewDataIntegrityError(op, "", "", "feature table has no feature columns")
	}

	x := mat.NewDense(len(ids), len(features), values)
	return New(ids, features, x, labels, groups, batches)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
