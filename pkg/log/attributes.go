// Package log defines standard attribute keys for model-selection runs.
//
// Keys follow a hierarchical naming convention ("trial.id", "fold.outer") so
// that a run's log stream can be filtered per trial, fold, or pipeline.
package log

// Run context
const (
	// RunIDKey identifies one evaluate/build invocation (a UUID).
	RunIDKey = "run.id"

	// TrialKey is the trial index t; its seed is baseSeed+t.
	TrialKey = "trial.id"

	// SeedKey records the explicit seed of a trial or split.
	SeedKey = "trial.seed"

	// OuterFoldKey is the outer-fold index inside a trial.
	OuterFoldKey = "fold.outer"

	// InnerFoldKey is the inner-fold index inside an outer fold.
	InnerFoldKey = "fold.inner"

	// ComponentKey identifies which component is logging.
	// Examples: "feature_selection.repeatability", "pipeline.search"
	ComponentKey = "ml.component"
)

// Pipeline context
const (
	// PipelineKey is a candidate identity, "selector+estimator".
	PipelineKey = "pipeline.id"

	// ConfigKey is a rendered hyper-parameter configuration.
	ConfigKey = "pipeline.config"

	// ScoreKey records a fold, hold-out or summary score.
	ScoreKey = "metrics.score"

	// MetricKey names the scoring metric ("roc_auc", "accuracy", ...).
	MetricKey = "metrics.name"

	// FailedFoldsKey counts inner folds whose fit failed.
	FailedFoldsKey = "search.failed_folds"
)

// Data shape
const (
	// SamplesKey indicates the number of subjects (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// GroupsKey indicates the number of repeatability groups.
	GroupsKey = "data.groups"
)

// Filter decisions
const (
	// FeatureKey names a feature column.
	FeatureKey = "feature.name"

	// FilterStepKey is the filter step: "variance", "duplicate", "icc", "significance".
	FilterStepKey = "filter.step"

	// FilterReasonKey explains why a feature was removed.
	FilterReasonKey = "filter.reason"

	// StatisticKey records the statistic a filter decision was based on.
	StatisticKey = "filter.statistic"

	// PValueKey records the p-value a filter decision was based on.
	PValueKey = "filter.p_value"

	// RetainedKey counts features kept by a step.
	RetainedKey = "filter.retained"
)

// Performance
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Standard attribute values.
const (
	FilterStepVariance     = "variance"
	FilterStepDuplicate    = "duplicate"
	FilterStepICC          = "icc"
	FilterStepSignificance = "significance"
	FilterStepSelection    = "selection"

	ReasonZeroVariance = "zero_variance"
	ReasonLowVariance  = "low_variance"
	ReasonDuplicate    = "duplicate"
	ReasonCorrelated   = "correlated"
	ReasonLowICC       = "low_icc"
	ReasonICCPValue    = "icc_not_significant"
	ReasonNotSignif    = "not_significant"
	ReasonL1Fallback   = "l1_all_zero"
)
