package model

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/radcv/pkg/errors"
)

func fittedWeights() *ModelWeights {
	return &ModelWeights{
		ModelType:       "LogisticRegression",
		Version:         WeightsVersion,
		Coefficients:    []float64{0.5, -1.25, 0},
		Intercept:       0.1,
		Hyperparameters: map[string]float64{"C": 1, "l1_ratio": 0.5},
		NFeatures:       3,
		IsFitted:        true,
	}
}

func TestModelWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(w *ModelWeights)
		wantErr bool
	}{
		{"valid", func(w *ModelWeights) {}, false},
		{"missing type", func(w *ModelWeights) { w.ModelType = "" }, true},
		{"missing version", func(w *ModelWeights) { w.Version = "" }, true},
		{"not fitted", func(w *ModelWeights) { w.IsFitted = false }, true},
		{"width mismatch", func(w *ModelWeights) { w.NFeatures = 4 }, true},
		{"no coefficients", func(w *ModelWeights) {
			w.Coefficients = nil
			w.Arrays = map[string][]float64{"theta_0": {1, 2, 3}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := fittedWeights()
			tt.mutate(w)
			err := w.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestModelWeightsCloneIsDeep(t *testing.T) {
	w := fittedWeights()
	w.Arrays = map[string][]float64{"var_1": {1, 2, 3}}

	c := w.Clone()
	c.Coefficients[0] = 99
	c.Arrays["var_1"][0] = 99
	c.Hyperparameters["C"] = 99

	assert.Equal(t, 0.5, w.Coefficients[0])
	assert.Equal(t, 1.0, w.Arrays["var_1"][0])
	assert.Equal(t, 1.0, w.Hyperparameters["C"])
}

func TestSaveLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, SaveJSON(fittedWeights(), path))

	var loaded ModelWeights
	require.NoError(t, LoadJSON(&loaded, path))
	assert.Equal(t, fittedWeights(), &loaded)
}

func TestReadJSONRejectsUnknownFields(t *testing.T) {
	var w ModelWeights
	err := ReadJSON(&w, bytes.NewBufferString(`{"model_type":"x","surprise":1}`))
	assert.Error(t, err)
}

func TestStateManager(t *testing.T) {
	s := NewStateManager("GaussianNB")

	err := s.RequireFitted("PredictProba")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "GaussianNB", nf.ModelName)

	s.SetFitted(4, 30)
	assert.True(t, s.IsFitted())
	assert.NoError(t, s.RequireWidth("PredictProba", 4))

	err = s.RequireWidth("PredictProba", 3)
	var dim *errors.DimensionError
	require.True(t, errors.As(err, &dim))
	assert.Equal(t, 4, dim.Expected)
	assert.Equal(t, 3, dim.Got)

	s.Reset()
	assert.False(t, s.IsFitted())
}
