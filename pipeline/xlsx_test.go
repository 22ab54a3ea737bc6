package pipeline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestTrialReport_WriteXLSX(t *testing.T) {
	folds, holdouts := sampleRecords()
	r := NewTrialReportFrom("roc_auc", folds, holdouts)

	var buf bytes.Buffer
	require.NoError(t, r.WriteXLSX(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"table", "summary", "folds", "holdouts"}, f.GetSheetList())

	table, err := f.GetRows("table")
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, []string{"trial", "a", "b"}, table[0])
	assert.Equal(t, "0.9", table[2][1])

	summary, err := f.GetRows("summary")
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, "a", summary[1][0])

	rows, err := f.GetRows("folds")
	require.NoError(t, err)
	require.Len(t, rows, len(folds)+1)
	var failed []string
	for _, row := range rows[1:] {
		if row[2] == "b" && row[3] == "1" {
			failed = row
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "", failed[4], "NaN score is an empty cell")

	hold, err := f.GetRows("holdouts")
	require.NoError(t, err)
	assert.Len(t, hold, len(holdouts)+1)
}
