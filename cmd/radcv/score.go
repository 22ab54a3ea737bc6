package main

import (
	"io"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/radcv/pipeline"
)

var (
	scoreModel string
	scoreData  string
	scoreOut   string

	scoreCmd = &cobra.Command{
		Use:   "score",
		Short: "Predict P(y=1) for new subjects with a built model",
		RunE:  runScore,
	}
)

func init() {
	scoreCmd.Flags().StringVarP(&scoreModel, "model", "m", "model.json", "bundle written by build")
	scoreCmd.Flags().StringVarP(&scoreData, "data", "d", "", "feature table (.csv or .xlsx); the label column is optional")
	scoreCmd.Flags().StringVarP(&scoreOut, "out", "o", "", "write predictions here instead of stdout")
}

type prediction struct {
	ID          string  `csv:"id"`
	Probability float64 `csv:"probability"`
}

func runScore(cmd *cobra.Command, _ []string) error {
	fm, err := pipeline.LoadFinalModel(scoreModel)
	if err != nil {
		return err
	}
	opts := settings.Data
	opts.NoLabels = true
	opts.Features = fm.RetainedFeatures
	tbl, err := readTable(scoreData, opts)
	if err != nil {
		return err
	}
	probs, err := fm.Predict(tbl)
	if err != nil {
		return err
	}
	rows := make([]prediction, len(probs))
	for i, id := range tbl.IDs() {
		rows[i] = prediction{ID: id, Probability: probs[i]}
	}
	write := func(w io.Writer) error { return gocsv.Marshal(&rows, w) }
	if scoreOut == "" {
		return write(cmd.OutOrStdout())
	}
	return writeTo(scoreOut, write)
}
