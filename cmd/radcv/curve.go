package main

import (
	"io"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/radcv/internal/chart"
	"github.com/YuminosukeSato/radcv/pkg/log"
)

var (
	curveData string
	curveOut  string
	curvePlot string

	curveCmd = &cobra.Command{
		Use:   "curve",
		Short: "Mean inner score of every configuration across repeated K-fold scans",
		Long: `Cross-validates every configuration of every candidate on the whole
table (curve.folds folds, curve.repeats repeats with consecutive seeds) and
writes one row per configuration. Filters are not applied and nothing is
refit, so the output describes hyper-parameter sensitivity only.`,
		RunE: runCurve,
	}
)

func init() {
	curveCmd.Flags().StringVarP(&curveData, "data", "d", "", "feature table (.csv or .xlsx)")
	curveCmd.Flags().StringVarP(&curveOut, "out", "o", "", "write the curve CSV here instead of stdout")
	curveCmd.Flags().StringVar(&curvePlot, "plot", "", "also draw mean score against the first grid parameter (png, svg or pdf)")
}

func runCurve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	tbl, err := readTable(curveData, settings.Data)
	if err != nil {
		return err
	}
	e := settings.Evaluation
	s := e.Inner
	s.Folds = settings.Curve.Folds
	s.Logger = log.GetLoggerWithName("radcv.curve")

	points, err := s.Curve(ctx, e.Candidates, tbl, settings.Curve.Repeats, e.BaseSeed, e.Workers)
	if err != nil {
		return err
	}
	if curvePlot != "" {
		written, err := chart.SaveCurves(points, s.Scoring, curvePlot)
		if err != nil {
			return err
		}
		s.Logger.Info("curves written", "files", written)
	}
	write := func(w io.Writer) error { return gocsv.Marshal(&points, w) }
	if curveOut == "" {
		return write(cmd.OutOrStdout())
	}
	return writeTo(curveOut, write)
}
