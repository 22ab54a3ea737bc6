package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/radcv/internal/storage"
	"github.com/YuminosukeSato/radcv/pkg/errors"
)

var (
	reportStore   string
	reportRun     string
	reportOut     string
	reportSummary string
	reportXLSX    string
	reportDelete  bool

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "List stored runs, or print and export the report of one run",
		RunE:  runReport,
	}
)

func init() {
	reportCmd.Flags().StringVar(&reportStore, "store", "", "BoltDB file (default from settings)")
	reportCmd.Flags().StringVar(&reportRun, "run", "", "run ID; without it the runs are listed")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "write the trial report CSV here")
	reportCmd.Flags().StringVar(&reportSummary, "summary", "", "write the per-pipeline summary CSV here")
	reportCmd.Flags().StringVar(&reportXLSX, "xlsx", "", "write the report as an Excel workbook here")
	reportCmd.Flags().BoolVar(&reportDelete, "delete", false, "delete the run instead of printing it")
}

func runReport(cmd *cobra.Command, _ []string) error {
	path := firstNonEmpty(reportStore, settings.StorePath)
	if path == "" {
		return errors.NewConfigurationError("radcv", "--store is required", path)
	}
	store, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	switch {
	case reportRun == "":
		runs, err := store.Runs()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tMETRIC\tTRIALS\tDATA")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				r.ID, r.Started.Format("2006-01-02 15:04:05"), r.Status, r.Metric, r.Trials, r.DataPath)
		}
		return tw.Flush()
	case reportDelete:
		return store.DeleteRun(reportRun)
	}

	info, err := store.Run(reportRun)
	if err != nil {
		return err
	}
	report, err := store.Report(reportRun)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "run %s (%s, %s)\n", info.ID, info.Status, info.Metric)
	if info.Error != "" {
		fmt.Fprintf(out, "error: %s\n", info.Error)
	}
	return writeReport(out, report, reportOut, reportSummary, reportXLSX)
}
