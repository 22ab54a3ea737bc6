package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"sync"
	"text/tabwriter"

	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"

	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// TrialRecord is the outer-fold score of one pipeline in one trial. Failed
// records carry a NaN score.
type TrialRecord struct {
	Trial     int     `json:"trial"`
	Seed      uint64  `json:"seed"`
	Pipeline  string  `json:"pipeline"`
	OuterFold int     `json:"outer_fold"`
	Score     float64 `json:"-"`
	Config    string  `json:"config"`
	NFeatures int     `json:"n_features"`
	Failed    bool    `json:"failed"`
}

// HoldoutRecord is the hold-out score of the pipeline a trial selected,
// next to that pipeline's mean outer-fold score in the same trial.
type HoldoutRecord struct {
	Trial     int     `json:"trial"`
	Seed      uint64  `json:"seed"`
	Pipeline  string  `json:"pipeline"`
	Score     float64 `json:"-"`
	MeanOuter float64 `json:"-"`
	Config    string  `json:"config"`
	NFeatures int     `json:"n_features"`
	Failed    bool    `json:"failed"`
}

// nullable maps NaN to JSON null.
type nullable float64

func (n nullable) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(n))
}

func (n *nullable) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = nullable(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = nullable(f)
	return nil
}

type trialRecordJSON TrialRecord

// MarshalJSON writes a failed score as null.
func (r TrialRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		trialRecordJSON
		Score nullable `json:"score"`
	}{trialRecordJSON(r), nullable(r.Score)})
}

// UnmarshalJSON reads a null score as NaN.
func (r *TrialRecord) UnmarshalJSON(b []byte) error {
	aux := struct {
		*trialRecordJSON
		Score nullable `json:"score"`
	}{trialRecordJSON: (*trialRecordJSON)(r), Score: nullable(math.NaN())}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.Score = float64(aux.Score)
	return nil
}

type holdoutRecordJSON HoldoutRecord

// MarshalJSON writes NaN scores as null.
func (r HoldoutRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		holdoutRecordJSON
		Score     nullable `json:"score"`
		MeanOuter nullable `json:"mean_outer"`
	}{holdoutRecordJSON(r), nullable(r.Score), nullable(r.MeanOuter)})
}

// UnmarshalJSON reads null scores as NaN.
func (r *HoldoutRecord) UnmarshalJSON(b []byte) error {
	aux := struct {
		*holdoutRecordJSON
		Score     nullable `json:"score"`
		MeanOuter nullable `json:"mean_outer"`
	}{
		holdoutRecordJSON: (*holdoutRecordJSON)(r),
		Score:             nullable(math.NaN()),
		MeanOuter:         nullable(math.NaN()),
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.Score, r.MeanOuter = float64(aux.Score), float64(aux.MeanOuter)
	return nil
}

// Buffer collects the records of one worker. A Buffer is not safe for
// concurrent use; each goroutine takes its own from TrialReport.Buffer.
type Buffer struct {
	folds    []TrialRecord
	holdouts []HoldoutRecord
}

// AddFold appends an outer-fold record.
func (b *Buffer) AddFold(r TrialRecord) { b.folds = append(b.folds, r) }

// AddHoldout appends a hold-out record.
func (b *Buffer) AddHoldout(r HoldoutRecord) { b.holdouts = append(b.holdouts, r) }

// TrialReport accumulates records of a nested evaluation. Writers append to
// per-worker buffers; readers see the concatenation sorted by trial,
// pipeline and fold, so merge order never changes a result.
type TrialReport struct {
	Metric string

	mu      sync.Mutex
	buffers []*Buffer
}

// NewTrialReport creates an empty report for metric.
func NewTrialReport(metric string) *TrialReport {
	return &TrialReport{Metric: metric}
}

// NewTrialReportFrom rebuilds a report from stored records.
func NewTrialReportFrom(metric string, folds []TrialRecord, holdouts []HoldoutRecord) *TrialReport {
	r := NewTrialReport(metric)
	b := r.Buffer()
	b.folds = append(b.folds, folds...)
	b.holdouts = append(b.holdouts, holdouts...)
	return r
}

// Buffer registers and returns a new writer buffer.
func (r *TrialReport) Buffer() *Buffer {
	b := &Buffer{}
	r.mu.Lock()
	r.buffers = append(r.buffers, b)
	r.mu.Unlock()
	return b
}

// Records returns every outer-fold record, sorted.
// Call it only after the writers are done.
func (r *TrialReport) Records() []TrialRecord {
	r.mu.Lock()
	var out []TrialRecord
	for _, b := range r.buffers {
		out = append(out, b.folds...)
	}
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Trial != b.Trial {
			return a.Trial < b.Trial
		}
		if a.Pipeline != b.Pipeline {
			return a.Pipeline < b.Pipeline
		}
		return a.OuterFold < b.OuterFold
	})
	return out
}

// Holdouts returns every hold-out record, sorted by trial.
func (r *TrialReport) Holdouts() []HoldoutRecord {
	r.mu.Lock()
	var out []HoldoutRecord
	for _, b := range r.buffers {
		out = append(out, b.holdouts...)
	}
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Trial != out[j].Trial {
			return out[i].Trial < out[j].Trial
		}
		return out[i].Pipeline < out[j].Pipeline
	})
	return out
}

// Pipelines returns the pipeline identities seen, sorted.
func (r *TrialReport) Pipelines() []string {
	seen := map[string]bool{}
	for _, rec := range r.Records() {
		seen[rec.Pipeline] = true
	}
	for _, h := range r.Holdouts() {
		// a trial where every candidate failed has no pipeline to name
		if h.Pipeline != "" {
			seen[h.Pipeline] = true
		}
	}
	return sortedKeys(seen)
}

// Trials returns the trial indices seen, sorted.
func (r *TrialReport) Trials() []int {
	seen := map[int]bool{}
	for _, rec := range r.Records() {
		seen[rec.Trial] = true
	}
	out := make([]int, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// MeanOuter returns the mean non-failed outer-fold score of pipeline in
// trial, or NaN if there is none.
func (r *TrialReport) MeanOuter(trial int, pipeline string) float64 {
	return meanOuter(r.Records(), trial, pipeline)
}

func meanOuter(records []TrialRecord, trial int, pipeline string) float64 {
	var sum float64
	var n int
	for _, rec := range records {
		if rec.Trial == trial && rec.Pipeline == pipeline && !rec.Failed && !math.IsNaN(rec.Score) {
			sum += rec.Score
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// ExperimentTable is trials × pipelines; each cell is the mean outer-fold
// score, NaN where a trial has no successful fold for a pipeline.
type ExperimentTable struct {
	Metric    string
	Trials    []int
	Pipelines []string
	Cells     [][]float64
}

// ExperimentTable builds the table from the records seen so far. Partial
// trials are included with whatever folds completed.
func (r *TrialReport) ExperimentTable() *ExperimentTable {
	records := r.Records()
	t := &ExperimentTable{Metric: r.Metric, Trials: r.Trials(), Pipelines: r.Pipelines()}
	t.Cells = make([][]float64, len(t.Trials))
	for i, trial := range t.Trials {
		t.Cells[i] = make([]float64, len(t.Pipelines))
		for j, p := range t.Pipelines {
			t.Cells[i][j] = meanOuter(records, trial, p)
		}
	}
	return t
}

// Column returns the cells of pipeline p across trials.
func (t *ExperimentTable) Column(p string) []float64 {
	for j, name := range t.Pipelines {
		if name == p {
			out := make([]float64, len(t.Trials))
			for i := range t.Trials {
				out[i] = t.Cells[i][j]
			}
			return out
		}
	}
	return nil
}

// Format writes the table as aligned text.
func (t *ExperimentTable) Format(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "trial\t")
	for _, p := range t.Pipelines {
		fmt.Fprintf(tw, "%s\t", p)
	}
	fmt.Fprintln(tw)
	for i, trial := range t.Trials {
		fmt.Fprintf(tw, "%d\t", trial)
		for j := range t.Pipelines {
			fmt.Fprintf(tw, "%.4f\t", t.Cells[i][j])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// PipelineSummary describes the distribution of one pipeline's scores across
// trials. Low/High bound the central 95% of the per-trial values.
type PipelineSummary struct {
	Pipeline      string  `csv:"pipeline" json:"pipeline"`
	Trials        int     `csv:"trials" json:"trials"`
	MeanOuter     float64 `csv:"mean_outer" json:"mean_outer"`
	StdOuter      float64 `csv:"std_outer" json:"std_outer"`
	MedianOuter   float64 `csv:"median_outer" json:"median_outer"`
	OuterLow      float64 `csv:"outer_p2.5" json:"outer_low"`
	OuterHigh     float64 `csv:"outer_p97.5" json:"outer_high"`
	Holdouts      int     `csv:"holdouts" json:"holdouts"`
	MeanHoldout   float64 `csv:"mean_holdout" json:"mean_holdout"`
	StdHoldout    float64 `csv:"std_holdout" json:"std_holdout"`
	MedianHoldout float64 `csv:"median_holdout" json:"median_holdout"`
	HoldoutLow    float64 `csv:"holdout_p2.5" json:"holdout_low"`
	HoldoutHigh   float64 `csv:"holdout_p97.5" json:"holdout_high"`
	FailedFolds   int     `csv:"failed_folds" json:"failed_folds"`
}

// Summary returns one PipelineSummary per pipeline, sorted by identity.
func (r *TrialReport) Summary() []PipelineSummary {
	table := r.ExperimentTable()
	records := r.Records()
	holdouts := r.Holdouts()

	out := make([]PipelineSummary, 0, len(table.Pipelines))
	for _, p := range table.Pipelines {
		s := PipelineSummary{Pipeline: p}
		outer := finite(table.Column(p))
		s.Trials = len(outer)
		s.MeanOuter, s.StdOuter, s.MedianOuter, s.OuterLow, s.OuterHigh = describe(outer)

		var hold []float64
		for _, h := range holdouts {
			if h.Pipeline == p && !h.Failed && !math.IsNaN(h.Score) {
				hold = append(hold, h.Score)
			}
		}
		s.Holdouts = len(hold)
		s.MeanHoldout, s.StdHoldout, s.MedianHoldout, s.HoldoutLow, s.HoldoutHigh = describe(hold)

		for _, rec := range records {
			if rec.Pipeline == p && rec.Failed {
				s.FailedFolds++
			}
		}
		out = append(out, s)
	}
	return out
}

// describe returns mean, sample std, median and the 2.5/97.5 percentiles.
// Empty input yields NaN everywhere; a single value has std 0.
func describe(x []float64) (mean, std, median, low, high float64) {
	nan := math.NaN()
	if len(x) == 0 {
		return nan, nan, nan, nan, nan
	}
	data := stats.Float64Data(x)
	mean, _ = stats.Mean(data)
	median, _ = stats.Median(data)
	if len(x) > 1 {
		std, _ = stats.StandardDeviationSample(data)
	}
	var err error
	if low, err = stats.Percentile(data, 2.5); err != nil {
		low = median
	}
	if high, err = stats.Percentile(data, 97.5); err != nil {
		high = median
	}
	return mean, std, median, low, high
}

func finite(x []float64) []float64 {
	var out []float64
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// reportRow is the long-format CSV layout of a report.
type reportRow struct {
	Kind      string `csv:"kind"`
	Trial     int    `csv:"trial"`
	Seed      uint64 `csv:"seed"`
	Pipeline  string `csv:"pipeline"`
	OuterFold string `csv:"outer_fold"`
	Score     string `csv:"score"`
	MeanOuter string `csv:"mean_outer"`
	Config    string `csv:"config"`
	NFeatures int    `csv:"n_features"`
	Failed    bool   `csv:"failed"`
	Metric    string `csv:"metric"`
}

const (
	kindFold    = "fold"
	kindHoldout = "holdout"
)

// WriteCSV writes every record in long format, one row per outer fold and
// one per hold-out evaluation.
func (r *TrialReport) WriteCSV(w io.Writer) error {
	var rows []*reportRow
	for _, rec := range r.Records() {
		rows = append(rows, &reportRow{
			Kind: kindFold, Trial: rec.Trial, Seed: rec.Seed, Pipeline: rec.Pipeline,
			OuterFold: strconv.Itoa(rec.OuterFold), Score: formatScore(rec.Score),
			Config: rec.Config, NFeatures: rec.NFeatures, Failed: rec.Failed, Metric: r.Metric,
		})
	}
	for _, h := range r.Holdouts() {
		rows = append(rows, &reportRow{
			Kind: kindHoldout, Trial: h.Trial, Seed: h.Seed, Pipeline: h.Pipeline,
			Score: formatScore(h.Score), MeanOuter: formatScore(h.MeanOuter),
			Config: h.Config, NFeatures: h.NFeatures, Failed: h.Failed, Metric: r.Metric,
		})
	}
	return gocsv.Marshal(&rows, w)
}

// ReadReportCSV parses the output of WriteCSV.
func ReadReportCSV(in io.Reader) (*TrialReport, error) {
	var rows []*reportRow
	if err := gocsv.Unmarshal(in, &rows); err != nil {
		return nil, errors.Wrap(err, "read report csv")
	}
	var folds []TrialRecord
	var holdouts []HoldoutRecord
	metric := ""
	for i, row := range rows {
		if row.Metric != "" {
			metric = row.Metric
		}
		score, err := parseScore(row.Score)
		if err != nil {
			return nil, errors.Wrapf(err, "report row %d", i+1)
		}
		switch row.Kind {
		case kindFold:
			fold, err := strconv.Atoi(row.OuterFold)
			if err != nil {
				return nil, errors.Wrapf(err, "report row %d", i+1)
			}
			folds = append(folds, TrialRecord{
				Trial: row.Trial, Seed: row.Seed, Pipeline: row.Pipeline, OuterFold: fold,
				Score: score, Config: row.Config, NFeatures: row.NFeatures, Failed: row.Failed,
			})
		case kindHoldout:
			mean, err := parseScore(row.MeanOuter)
			if err != nil {
				return nil, errors.Wrapf(err, "report row %d", i+1)
			}
			holdouts = append(holdouts, HoldoutRecord{
				Trial: row.Trial, Seed: row.Seed, Pipeline: row.Pipeline, Score: score,
				MeanOuter: mean, Config: row.Config, NFeatures: row.NFeatures, Failed: row.Failed,
			})
		default:
			return nil, errors.NewValueError("ReadReportCSV", fmt.Sprintf("row %d: unknown kind %q", i+1, row.Kind))
		}
	}
	return NewTrialReportFrom(metric, folds, holdouts), nil
}

// WriteSummaryCSV writes Summary as CSV.
func (r *TrialReport) WriteSummaryCSV(w io.Writer) error {
	summary := r.Summary()
	rows := make([]*PipelineSummary, len(summary))
	for i := range summary {
		rows[i] = &summary[i]
	}
	return gocsv.Marshal(&rows, w)
}

func formatScore(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseScore(s string) (float64, error) {
	if s == "" || s == "NaN" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
