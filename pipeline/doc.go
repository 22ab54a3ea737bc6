// Package pipeline assembles filters, harmonizer, selector and estimator into
// candidates and evaluates them under nested cross-validation.
//
// # Data flow
//
// Per outer fold:
//
//	TrainSet -> RepeatabilityFilter -> SignificanceFilter -> InnerSelector
//	         -> (Harmonizer -> selector -> estimator) refit -> outer test score
//
// Every Fit along the way receives a dataset.TrainSet, so no fitted state
// can see evaluation rows. Only FinalModelBuilder fits on every subject,
// through dataset.Table.Deployment.
//
// # Quick Start
//
//	tbl, err := dataset.ReadCSVFile("features.csv", dataset.DefaultCSVOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	e := pipeline.NewNestedEvaluator(pipeline.DefaultCandidates()...)
//	e.BaseSeed = 42
//	report, err := e.Run(ctx, tbl)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report.ExperimentTable().Format(os.Stdout)
//
//	fm, err := pipeline.NewFinalModelBuilder(e).Build(ctx, tbl, report)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fm.Save("model.json")
//
// # Candidates
//
// A Candidate names a selector (passthrough, kbest, l1), an estimator
// (logistic, elasticnet, gaussian_nb), a harmonizer strategy and a grid.
// DefaultCandidates returns the built-in set.
//
// # Reports
//
//   - TrialReport: one TrialRecord per (trial, outer fold, pipeline) and one
//     HoldoutRecord per trial
//   - ExperimentTable: trials x pipelines mean outer scores
//   - Summary: per-pipeline distribution of those scores
//
// # Reproducibility
//
// Trial t uses seed BaseSeed+t for its hold-out and outer folds; inner folds
// derive their seed from it. Results do not depend on Workers.
package pipeline
