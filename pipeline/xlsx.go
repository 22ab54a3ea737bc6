package pipeline

import (
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// WriteXLSX writes the report as a workbook with the sheets "table"
// (trials x pipelines), "summary", "folds" and "holdouts". NaN scores are
// left as empty cells.
func (r *TrialReport) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", "table"); err != nil {
		return errors.Wrap(err, "WriteXLSX")
	}

	table := r.ExperimentTable()
	header := []interface{}{"trial"}
	for _, p := range table.Pipelines {
		header = append(header, p)
	}
	rows := [][]interface{}{header}
	for i, trial := range table.Trials {
		row := []interface{}{trial}
		for j := range table.Pipelines {
			row = append(row, cell(table.Cells[i][j]))
		}
		rows = append(rows, row)
	}
	if err := writeSheet(f, "table", rows); err != nil {
		return err
	}

	rows = [][]interface{}{{"pipeline", "trials", "mean_outer", "std_outer", "median_outer",
		"outer_p2.5", "outer_p97.5", "holdouts", "mean_holdout", "std_holdout",
		"median_holdout", "holdout_p2.5", "holdout_p97.5", "failed_folds"}}
	for _, s := range r.Summary() {
		rows = append(rows, []interface{}{s.Pipeline, s.Trials,
			cell(s.MeanOuter), cell(s.StdOuter), cell(s.MedianOuter), cell(s.OuterLow), cell(s.OuterHigh),
			s.Holdouts, cell(s.MeanHoldout), cell(s.StdHoldout), cell(s.MedianHoldout),
			cell(s.HoldoutLow), cell(s.HoldoutHigh), s.FailedFolds})
	}
	if err := writeSheet(f, "summary", rows); err != nil {
		return err
	}

	rows = [][]interface{}{{"trial", "seed", "pipeline", "outer_fold", "score", "config", "n_features", "failed"}}
	for _, rec := range r.Records() {
		rows = append(rows, []interface{}{rec.Trial, rec.Seed, rec.Pipeline, rec.OuterFold,
			cell(rec.Score), rec.Config, rec.NFeatures, rec.Failed})
	}
	if err := writeSheet(f, "folds", rows); err != nil {
		return err
	}

	rows = [][]interface{}{{"trial", "seed", "pipeline", "score", "mean_outer", "config", "n_features", "failed"}}
	for _, h := range r.Holdouts() {
		rows = append(rows, []interface{}{h.Trial, h.Seed, h.Pipeline,
			cell(h.Score), cell(h.MeanOuter), h.Config, h.NFeatures, h.Failed})
	}
	if err := writeSheet(f, "holdouts", rows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "WriteXLSX")
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]interface{}) error {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return errors.Wrapf(err, "create sheet %s", sheet)
		}
	}
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, addr, &row); err != nil {
			return errors.Wrapf(err, "write %s row %d", sheet, i+1)
		}
	}
	return nil
}

// cell maps NaN to an empty cell.
func cell(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
