// Package cfg loads run settings from a YAML file, a .env file and RADCV_*
// environment variables, in increasing order of precedence.
package cfg

import (
	"bytes"
	"io"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/radcv/dataset"
	"github.com/YuminosukeSato/radcv/pipeline"
	"github.com/YuminosukeSato/radcv/pkg/errors"
	"github.com/YuminosukeSato/radcv/pkg/log"
)

// Settings is everything a run needs besides the input paths.
type Settings struct {
	Data       dataset.CSVOptions       `yaml:"data"`
	Evaluation pipeline.NestedEvaluator `yaml:"evaluation"`
	Final      FinalSettings            `yaml:"final"`
	Curve      CurveSettings            `yaml:"curve"`

	StorePath   string `yaml:"store"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// FinalSettings controls pipeline selection for the deployment model.
type FinalSettings struct {
	// Penalty weighs the across-trial std against the mean.
	Penalty float64 `yaml:"penalty"`
}

// CurveSettings controls the hyper-parameter curve command.
type CurveSettings struct {
	Folds   int `yaml:"folds"`
	Repeats int `yaml:"repeats"`
}

// Default returns the built-in settings: 15 trials of 5 outer and 3 inner
// folds over the default candidates.
func Default() Settings {
	return Settings{
		Data:       dataset.DefaultCSVOptions(),
		Evaluation: pipeline.NewNestedEvaluator(pipeline.DefaultCandidates()...),
		Curve:      CurveSettings{Folds: 7, Repeats: 15},
		LogLevel:   "info",
	}
}

// Load builds Settings. path falls back to $CONFIG_FILE; with neither, the
// defaults are used. A .env file in the working directory is read first
// and never overrides variables already set.
func Load(path string) (Settings, error) {
	_ = godotenv.Load()

	s := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := decode(bytes.NewReader(data), &s); err != nil {
			return Settings{}, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}
	if err := applyEnv(&s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, errors.Wrap(err, "configuration validation failed")
	}
	return s, nil
}

// Parse decodes YAML onto the defaults without consulting the environment.
func Parse(r io.Reader) (Settings, error) {
	s := Default()
	if err := decode(r, &s); err != nil {
		return Settings{}, err
	}
	return s, s.Validate()
}

func decode(r io.Reader, s *Settings) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Validate checks every section.
func (s Settings) Validate() error {
	if s.Data.IDColumn == "" || s.Data.LabelColumn == "" {
		return errors.NewConfigurationError("cfg", "data.id_column and data.label_column are required", s.Data)
	}
	if err := s.Evaluation.Validate(); err != nil {
		return err
	}
	if s.Final.Penalty < 0 {
		return errors.NewConfigurationError("cfg", "final.penalty must be >= 0", s.Final.Penalty)
	}
	if s.Curve.Folds < 2 {
		return errors.NewConfigurationError("cfg", "curve.folds must be at least 2", s.Curve.Folds)
	}
	if s.Curve.Repeats < 1 {
		return errors.NewConfigurationError("cfg", "curve.repeats must be positive", s.Curve.Repeats)
	}
	if _, err := log.ParseLevel(s.LogLevel); err != nil {
		return errors.NewConfigurationError("cfg", "unknown log_level", s.LogLevel)
	}
	return nil
}

// FinalBuilder returns the FinalModelBuilder configured like the evaluation.
func (s Settings) FinalBuilder() pipeline.FinalModelBuilder {
	b := pipeline.NewFinalModelBuilder(s.Evaluation)
	b.Penalty = s.Final.Penalty
	return b
}
