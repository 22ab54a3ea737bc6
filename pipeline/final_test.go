package pipeline

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// finalReport scores "passthrough+logistic" 0.8 ± 0.1 and
// "kbest+gaussian_nb" 0.75 ± 0 over two trials.
func finalReport() *TrialReport {
	var folds []TrialRecord
	for trial, lr := range []float64{0.7, 0.9} {
		for fold := 0; fold < 2; fold++ {
			folds = append(folds,
				TrialRecord{Trial: trial, Pipeline: "passthrough+logistic", OuterFold: fold, Score: lr},
				TrialRecord{Trial: trial, Pipeline: "kbest+gaussian_nb", OuterFold: fold, Score: 0.75},
			)
		}
	}
	return NewTrialReportFrom("roc_auc", folds, nil)
}

func finalBuilder(penalty float64) FinalModelBuilder {
	b := NewFinalModelBuilder(scenarioEvaluator(quietLogger(), logisticCandidate(0.1, 1), nbCandidate()))
	b.Penalty = penalty
	b.Seed = 7
	return b
}

func TestFinalModelBuilder_Select(t *testing.T) {
	c, s, err := finalBuilder(0).Select(finalReport())
	require.NoError(t, err)
	assert.Equal(t, "passthrough+logistic", c.ID())
	assert.InDelta(t, 0.8, s.MeanOuter, 1e-12)

	c, _, err = finalBuilder(1).Select(finalReport())
	require.NoError(t, err)
	assert.Equal(t, "kbest+gaussian_nb", c.ID(), "std penalty prefers the stable pipeline")

	_, _, err = finalBuilder(0).Select(NewTrialReport("roc_auc"))
	assert.Error(t, err)

	_, _, err = finalBuilder(-1).Select(finalReport())
	assert.Error(t, err)
}

func TestFinalModelBuilder_BuildIsReproducible(t *testing.T) {
	tbl := scenarioTable(t, 31)
	b := finalBuilder(0)

	first, err := b.Build(context.Background(), tbl, finalReport())
	require.NoError(t, err)
	second, err := b.Build(context.Background(), tbl, finalReport())
	require.NoError(t, err)

	assert.Equal(t, "passthrough+logistic", first.Pipeline)
	assert.Equal(t, FinalModelVersion, first.Version)
	assert.Equal(t, uint64(7), first.Seed)
	assert.Equal(t, "roc_auc", first.Metric)
	assert.InDelta(t, 0.8, first.CVMean, 1e-12)
	assert.NotEmpty(t, first.RetainedFeatures)
	assert.Contains(t, first.RetainedFeatures, "inf0")

	assert.Equal(t, first.RetainedFeatures, second.RetainedFeatures)
	assert.Equal(t, first.SelectedFeatures, second.SelectedFeatures)
	assert.Equal(t, first.Config, second.Config)
	assert.Equal(t, first.Weights.Coefficients, second.Weights.Coefficients)
	assert.Equal(t, first.Weights.Intercept, second.Weights.Intercept)
}

func TestFinalModel_SaveLoadPredict(t *testing.T) {
	tbl := scenarioTable(t, 32)
	fm, err := finalBuilder(1).Build(context.Background(), tbl, finalReport())
	require.NoError(t, err)
	assert.Equal(t, "kbest+gaussian_nb", fm.Pipeline)

	want, err := fm.Predict(tbl)
	require.NoError(t, err)
	require.Len(t, want, tbl.NRows())

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, fm.Save(path))
	loaded, err := LoadFinalModel(path)
	require.NoError(t, err)
	assert.Equal(t, fm.SelectedFeatures, loaded.SelectedFeatures)
	assert.Equal(t, fm.Config, loaded.Config)

	got, err := loaded.Predict(tbl)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)

	// Column order of new data does not matter.
	names := tbl.Features()
	reversed := make([]string, len(names))
	for i, n := range names {
		reversed[len(names)-1-i] = n
	}
	shuffled, err := tbl.SelectFeatures(reversed)
	require.NoError(t, err)
	got, err = loaded.Predict(shuffled)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)

	// A retained feature missing from new data is an error.
	missing, err := tbl.SelectFeatures(without(names, loaded.RetainedFeatures[0]))
	require.NoError(t, err)
	_, err = loaded.Predict(missing)
	assert.Error(t, err)
}

func TestReadFinalModel_Rejects(t *testing.T) {
	tbl := scenarioTable(t, 33)
	fm, err := finalBuilder(0).Build(context.Background(), tbl, finalReport())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, fm.Write(&buf))
	good := buf.String()

	_, err = ReadFinalModel(strings.NewReader(good))
	require.NoError(t, err)

	_, err = ReadFinalModel(strings.NewReader(strings.Replace(good, `"version": "1"`, `"version": "9"`, 1)))
	assert.Error(t, err)

	_, err = ReadFinalModel(strings.NewReader(strings.Replace(good, `{`, `{"surprise":true,`, 1)))
	assert.Error(t, err)
}

func without(list []string, drop string) []string {
	var out []string
	for _, s := range list {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}
