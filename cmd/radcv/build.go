package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/radcv/internal/storage"
	"github.com/YuminosukeSato/radcv/pipeline"
	"github.com/YuminosukeSato/radcv/pkg/errors"
	"github.com/YuminosukeSato/radcv/pkg/log"
)

var (
	buildData   string
	buildReport string
	buildStore  string
	buildRun    string
	buildOut    string

	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Fit the deployment model of the best pipeline on every subject",
		Long: `Selects the pipeline with the best penalised mean outer score from a
trial report (a CSV written by evaluate, or a run in the store), searches its
hyper-parameters on the whole table and writes the fitted bundle as JSON.`,
		RunE: runBuild,
	}
)

func init() {
	buildCmd.Flags().StringVarP(&buildData, "data", "d", "", "feature table (.csv or .xlsx)")
	buildCmd.Flags().StringVar(&buildReport, "report", "", "trial report CSV")
	buildCmd.Flags().StringVar(&buildStore, "store", "", "BoltDB file holding the run (default from settings)")
	buildCmd.Flags().StringVar(&buildRun, "run", "", "run ID in the store")
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "model.json", "bundle path")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	report, err := loadReport(buildReport, firstNonEmpty(buildStore, settings.StorePath), buildRun)
	if err != nil {
		return err
	}
	tbl, err := readTable(buildData, settings.Data)
	if err != nil {
		return err
	}
	b := settings.FinalBuilder()
	b.Logger = log.GetLoggerWithName("radcv.build")
	fm, err := b.Build(ctx, tbl, report)
	if err != nil {
		return err
	}
	if err := fm.Save(buildOut); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s (cv %s %.4f ± %.4f, %d features) -> %s\n",
		fm.Pipeline, fm.Config, fm.Metric, fm.CVMean, fm.CVStd, len(fm.SelectedFeatures), buildOut)
	return err
}

// loadReport reads a report CSV, or the records of run from the store.
func loadReport(csvPath, storePath, run string) (*pipeline.TrialReport, error) {
	switch {
	case csvPath != "" && run != "":
		return nil, errors.NewConfigurationError("radcv", "give either --report or --run", run)
	case csvPath != "":
		f, err := os.Open(csvPath)
		if err != nil {
			return nil, errors.Wrapf(err, "open report %s", csvPath)
		}
		defer f.Close()
		return pipeline.ReadReportCSV(f)
	case run != "":
		if storePath == "" {
			return nil, errors.NewConfigurationError("radcv", "--run needs --store", run)
		}
		store, err := storage.Open(storePath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.Report(run)
	default:
		return nil, errors.NewConfigurationError("radcv", "--report or --run is required", "")
	}
}
