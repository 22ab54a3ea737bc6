package cfg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/radcv/pipeline"
	"github.com/YuminosukeSato/radcv/preprocessing"
	"github.com/YuminosukeSato/radcv/sklearn/feature_selection"
)

const sampleYAML = `
data:
  id_column: subject
  label_column: diagnosis
  group_column: patient
evaluation:
  trials: 4
  outer_folds: 4
  holdout_fraction: 0.2
  seed: 99
  workers: 2
  repeatability:
    variance_threshold: 0.1
    representation: normalized
    duplicate_tolerance: 1e-6
    max_correlation: 0.95
    icc_threshold: 0.8
    icc_alpha: 0.05
  significance:
    test: mannwhitney
    alpha: 0.01
    correction: fdr_bh
  inner:
    folds: 4
    scoring: balanced_accuracy
    fit_timeout: 30s
  candidates:
    - selector: kbest
      estimator: logistic
      harmonizer: batch_match
      grid:
        - name: k
          values: [5, 10]
        - name: C
          values: [0.1, 1]
final:
  penalty: 0.5
log_level: debug
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "radcv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	assert.Equal(t, 15, s.Evaluation.Trials)
	assert.Equal(t, 5, s.Evaluation.OuterFolds)
	assert.Equal(t, 0.25, s.Evaluation.HoldoutFraction)
	assert.Equal(t, 3, s.Evaluation.Inner.Folds)
	assert.Equal(t, "roc_auc", s.Evaluation.Inner.Scoring)
	assert.Equal(t, 0.05, s.Evaluation.Significance.Alpha)
	assert.Equal(t, feature_selection.CorrectionNone, s.Evaluation.Significance.Correction)
	assert.Equal(t, CurveSettings{Folds: 7, Repeats: 15}, s.Curve)
	assert.Equal(t, len(pipeline.DefaultCandidates()), len(s.Evaluation.Candidates))
}

func TestParse(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "subject", s.Data.IDColumn)
	assert.Equal(t, "patient", s.Data.GroupColumn)
	e := s.Evaluation
	assert.Equal(t, 4, e.Trials)
	assert.Equal(t, uint64(99), e.BaseSeed)
	assert.Equal(t, feature_selection.VarianceNormalized, e.Repeatability.Representation)
	assert.Equal(t, 0.95, e.Repeatability.MaxCorrelation)
	assert.Equal(t, feature_selection.TestMannWhitney, e.Significance.Test)
	assert.Equal(t, feature_selection.CorrectionFDRBH, e.Significance.Correction)
	assert.Equal(t, 30*time.Second, e.Inner.FitTimeout)
	assert.Equal(t, "balanced_accuracy", e.Inner.Scoring)

	require.Len(t, e.Candidates, 1)
	c := e.Candidates[0]
	assert.Equal(t, "kbest+logistic", c.ID())
	assert.Equal(t, preprocessing.StrategyBatchMatch, c.Harmonizer)
	assert.Len(t, c.Configs(), 4)

	assert.Equal(t, 0.5, s.Final.Penalty)
	assert.Equal(t, 0.5, s.FinalBuilder().Penalty)
	assert.Equal(t, "debug", s.LogLevel)
	// Untouched sections keep their defaults.
	assert.Equal(t, 7, s.Curve.Folds)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "evaluation:\n  trails: 3\n"},
		{"hold-out out of range", "evaluation:\n  holdout_fraction: 1.5\n"},
		{"unknown estimator", "evaluation:\n  candidates:\n    - selector: passthrough\n      estimator: forest\n"},
		{"foreign grid parameter", "evaluation:\n  candidates:\n    - selector: passthrough\n      estimator: gaussian_nb\n      grid:\n        - name: C\n          values: [1]\n"},
		{"negative penalty", "final:\n  penalty: -1\n"},
		{"bad log level", "log_level: loud\n"},
		{"missing id column", "data:\n  id_column: \"\"\n"},
		{"curve folds", "curve:\n  folds: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv("RADCV_TRIALS", "2")
	t.Setenv("RADCV_SEED", "7")
	t.Setenv("RADCV_FIT_TIMEOUT", "2m")
	t.Setenv("RADCV_CORRECTION", "bonferroni")
	t.Setenv("RADCV_STORE", "/tmp/runs.db")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Evaluation.Trials)
	assert.Equal(t, 4, s.Evaluation.OuterFolds, "file value kept")
	assert.Equal(t, uint64(7), s.Evaluation.BaseSeed)
	assert.Equal(t, 2*time.Minute, s.Evaluation.Inner.FitTimeout)
	assert.Equal(t, feature_selection.CorrectionBonferroni, s.Evaluation.Significance.Correction)
	assert.Equal(t, "/tmp/runs.db", s.StorePath)
}

func TestLoad_ConfigFileEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, sampleYAML))
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Evaluation.Trials)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 15, s.Evaluation.Trials)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("RADCV_TRIALS", "many")
	_, err = Load(writeConfig(t, sampleYAML))
	assert.Error(t, err)

	t.Setenv("RADCV_TRIALS", "0")
	_, err = Load(writeConfig(t, sampleYAML))
	assert.Error(t, err)
}
