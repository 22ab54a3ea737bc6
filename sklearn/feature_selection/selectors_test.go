package feature_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/radcv/pkg/log"
)

func TestPassthrough(t *testing.T) {
	tbl := classTable(t, 20, 2, 4)
	sel, err := Passthrough{}.Fit(tbl.Deployment())
	require.NoError(t, err)
	assert.Equal(t, tbl.Features(), sel.Features())
}

func TestSelectKBest(t *testing.T) {
	tbl := classTable(t, 40, 4, 5)

	sel, err := SelectKBest{K: 1}.Fit(tbl.Deployment())
	require.NoError(t, err)
	assert.Equal(t, []string{"strong"}, sel.Features())
	require.Len(t, sel.Scores(), 1)
	assert.Greater(t, sel.Scores()[0], 10.0)

	sel, err = SelectKBest{K: 3}.Fit(tbl.Deployment())
	require.NoError(t, err)
	assert.Len(t, sel.Features(), 3)
	assert.Equal(t, "strong", sel.Features()[0], "input order is kept")

	sel, err = SelectKBest{K: 100}.Fit(tbl.Deployment())
	require.NoError(t, err)
	assert.Equal(t, tbl.Features(), sel.Features())

	_, err = SelectKBest{}.Fit(tbl.Deployment())
	assert.Error(t, err)
}

func TestSelectFromL1(t *testing.T) {
	tbl := classTable(t, 60, 4, 6)

	sel, err := SelectFromL1{C: 0.05}.Fit(tbl.Deployment())
	require.NoError(t, err)
	assert.Contains(t, sel.Features(), "strong")
	assert.Less(t, len(sel.Features()), tbl.NFeatures())

	out, err := sel.Apply(tbl)
	require.NoError(t, err)
	assert.Equal(t, sel.Features(), out.Features())
}

func TestSelectFromL1KeepsStrongestWhenAllZero(t *testing.T) {
	tbl := classTable(t, 40, 3, 7)
	logger, _ := log.NewTestLogger(log.LevelDebug)

	sel, err := SelectFromL1{C: 1e-6, Logger: logger}.Fit(tbl.Deployment())
	require.NoError(t, err)
	assert.Equal(t, []string{"strong"}, sel.Features())
	assert.True(t, logger.ContainsField(log.FilterReasonKey, log.ReasonL1Fallback))
}

func TestNewFittedSelection(t *testing.T) {
	tbl := classTable(t, 10, 2, 8)
	sel := NewFittedSelection([]string{"noiseb", "strong"})
	out, err := sel.Apply(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"noiseb", "strong"}, out.Features())
	assert.Empty(t, sel.Scores())
}
