package cfg

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/radcv/pkg/errors"
	"github.com/YuminosukeSato/radcv/sklearn/feature_selection"
)

// EnvPrefix prefixes every override variable.
const EnvPrefix = "RADCV_"

// applyEnv overrides s with RADCV_* variables. Unlike the file, a malformed
// variable is an error rather than silently ignored.
func applyEnv(s *Settings) error {
	e := &s.Evaluation
	steps := []func() error{
		func() error { return envInt("TRIALS", &e.Trials) },
		func() error { return envInt("OUTER_FOLDS", &e.OuterFolds) },
		func() error { return envInt("INNER_FOLDS", &e.Inner.Folds) },
		func() error { return envFloat("HOLDOUT_FRACTION", &e.HoldoutFraction) },
		func() error { return envUint("SEED", &e.BaseSeed) },
		func() error { return envInt("WORKERS", &e.Workers) },
		func() error { return envString("SCORING", &e.Inner.Scoring) },
		func() error { return envDuration("FIT_TIMEOUT", &e.Inner.FitTimeout) },
		func() error { return envFloat("ALPHA", &e.Significance.Alpha) },
		func() error {
			var c string
			if err := envString("CORRECTION", &c); err != nil || c == "" {
				return err
			}
			e.Significance.Correction = feature_selection.Correction(c)
			return nil
		},
		func() error { return envFloat("VARIANCE_THRESHOLD", &e.Repeatability.VarianceThreshold) },
		func() error { return envFloat("ICC_THRESHOLD", &e.Repeatability.ICCThreshold) },
		func() error { return envFloat("PENALTY", &s.Final.Penalty) },
		func() error { return envString("STORE", &s.StorePath) },
		func() error { return envString("METRICS_ADDR", &s.MetricsAddr) },
		func() error { return envString("LOG_LEVEL", &s.LogLevel) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func envError(name, v string, err error) error {
	return errors.NewConfigurationError("cfg", "invalid "+EnvPrefix+name+": "+err.Error(), v)
}

func envString(name string, dst *string) error {
	if v, ok := lookup(name); ok {
		*dst = v
	}
	return nil
}

func envInt(name string, dst *int) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return envError(name, v, err)
	}
	*dst = i
	return nil
}

func envUint(name string, dst *uint64) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	u, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return envError(name, v, err)
	}
	*dst = u
	return nil
}

func envFloat(name string, dst *float64) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return envError(name, v, err)
	}
	*dst = f
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return envError(name, v, err)
	}
	*dst = d
	return nil
}
