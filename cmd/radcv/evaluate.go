package main

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/radcv/internal/metrics"
	"github.com/YuminosukeSato/radcv/internal/storage"
	"github.com/YuminosukeSato/radcv/pipeline"
	"github.com/YuminosukeSato/radcv/pkg/errors"
	"github.com/YuminosukeSato/radcv/pkg/log"
)

var (
	evalData        string
	evalStore       string
	evalOut         string
	evalSummary     string
	evalXLSX        string
	evalMetricsAddr string

	evaluateCmd = &cobra.Command{
		Use:   "evaluate",
		Short: "Run repeated nested cross-validation over every candidate pipeline",
		Long: `Runs the configured number of trials. Each trial holds out a stratified,
group-aware share of subjects, runs outer K-fold evaluation with an inner
hyper-parameter search on the rest, and scores the best pipeline of the
trial on the hold-out. Records are streamed to the store when one is given.`,
		RunE: runEvaluate,
	}
)

func init() {
	evaluateCmd.Flags().StringVarP(&evalData, "data", "d", "", "feature table (.csv or .xlsx)")
	evaluateCmd.Flags().StringVar(&evalStore, "store", "", "BoltDB file receiving run records (default from settings)")
	evaluateCmd.Flags().StringVarP(&evalOut, "out", "o", "", "write the trial report CSV here")
	evaluateCmd.Flags().StringVar(&evalSummary, "summary", "", "write the per-pipeline summary CSV here")
	evaluateCmd.Flags().StringVar(&evalXLSX, "xlsx", "", "write the report as an Excel workbook here")
	evaluateCmd.Flags().StringVar(&evalMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	tbl, err := readTable(evalData, settings.Data)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	logger := log.GetLoggerWithName("radcv.evaluate").With(log.RunIDKey, runID)

	e := settings.Evaluation
	e.Logger = logger
	var observers pipeline.Observers

	storePath := firstNonEmpty(evalStore, settings.StorePath)
	var store *storage.Store
	if storePath != "" {
		if store, err = storage.Open(storePath); err != nil {
			return err
		}
		defer store.Close()
		info := storage.RunInfo{
			ID:       runID,
			Started:  time.Now(),
			Metric:   e.Inner.Scoring,
			DataPath: evalData,
			Trials:   e.Trials,
		}
		for _, c := range e.Candidates {
			info.Candidates = append(info.Candidates, c.ID())
		}
		if err := store.CreateRun(info); err != nil {
			return err
		}
		observers = append(observers, store.Recorder(runID, logger))
	}

	if addr := firstNonEmpty(evalMetricsAddr, settings.MetricsAddr); addr != "" {
		reg := prometheus.NewRegistry()
		observers = append(observers, metrics.NewWithRegistry(reg))
		metrics.Serve(ctx, addr, reg, logger)
	}
	if len(observers) > 0 {
		e.Observer = observers
	}

	report, runErr := e.Run(ctx, tbl)
	if store != nil {
		if err := store.FinishRun(runID, runStatus(runErr), runErr); err != nil {
			logger.Error("failed to finish run", err)
		}
	}
	if report == nil {
		return runErr
	}
	if err := writeReport(cmd.OutOrStdout(), report, evalOut, evalSummary, evalXLSX); err != nil {
		return err
	}
	if runErr != nil {
		logger.Warn("run ended early; the report is partial", runErr)
		return runErr
	}
	logger.Info("run completed", "records", len(report.Records()))
	return nil
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return storage.StatusCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return storage.StatusCancelled
	default:
		return storage.StatusFailed
	}
}

// writeReport prints the experiment table and writes the optional files.
func writeReport(w io.Writer, report *pipeline.TrialReport, csvPath, summaryPath, xlsxPath string) error {
	if err := report.ExperimentTable().Format(w); err != nil {
		return err
	}
	if err := writeTo(csvPath, report.WriteCSV); err != nil {
		return err
	}
	if err := writeTo(summaryPath, report.WriteSummaryCSV); err != nil {
		return err
	}
	return writeTo(xlsxPath, report.WriteXLSX)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
