// Package chart renders hyper-parameter curves with gonum/plot.
package chart

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/radcv/pipeline"
	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// Size of a saved curve.
var (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

// Curve plots the mean score of one pipeline's points against parameter x,
// one line per value of hue. An empty hue draws a single line. Points with
// a NaN mean are left out.
func Curve(points []pipeline.CurvePoint, metric, x, hue string) (*plot.Plot, error) {
	if len(points) == 0 {
		return nil, errors.NewValueError("chart.Curve", "no points")
	}
	lines := map[float64]plotter.XYs{}
	for _, pt := range points {
		if !pt.Settings.Has(x) {
			return nil, errors.NewValueError("chart.Curve", fmt.Sprintf("%s does not set %q", pt.Config, x))
		}
		if math.IsNaN(pt.Mean) {
			continue
		}
		h := math.NaN()
		if hue != "" {
			h = pt.Settings.Get(hue, math.NaN())
		}
		key := h
		if math.IsNaN(key) {
			key = math.Inf(-1)
		}
		lines[key] = append(lines[key], plotter.XY{X: pt.Settings.Get(x, 0), Y: pt.Mean})
	}

	p := plot.New()
	p.Title.Text = points[0].Pipeline
	p.X.Label.Text = x
	p.Y.Label.Text = "mean " + metric
	p.Legend.Top = true

	keys := make([]float64, 0, len(lines))
	for k := range lines {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	var args []interface{}
	for _, k := range keys {
		xys := lines[k]
		sort.Slice(xys, func(i, j int) bool { return xys[i].X < xys[j].X })
		name := metric
		if !math.IsInf(k, -1) {
			name = fmt.Sprintf("%s=%g", hue, k)
		}
		args = append(args, name, xys)
	}
	if err := plotutil.AddLinePoints(p, args...); err != nil {
		return nil, errors.Wrap(err, "chart.Curve")
	}
	return p, nil
}

// SaveCurves writes one image per pipeline of points. The extension of
// path picks the format (png, svg, pdf...). With several pipelines the
// pipeline identity is inserted before the extension. x and hue are the
// first two grid parameters of each pipeline; pipelines without a grid are
// skipped. It returns the written paths.
func SaveCurves(points []pipeline.CurvePoint, metric, path string) ([]string, error) {
	var order []string
	byPipeline := map[string][]pipeline.CurvePoint{}
	for _, pt := range points {
		if _, ok := byPipeline[pt.Pipeline]; !ok {
			order = append(order, pt.Pipeline)
		}
		byPipeline[pt.Pipeline] = append(byPipeline[pt.Pipeline], pt)
	}

	var written []string
	for _, id := range order {
		pts := byPipeline[id]
		if len(pts[0].Settings) == 0 {
			continue
		}
		x, hue := pts[0].Settings[0].Name, ""
		if len(pts[0].Settings) > 1 {
			hue = pts[0].Settings[1].Name
		}
		p, err := Curve(pts, metric, x, hue)
		if err != nil {
			return written, err
		}
		out := path
		if len(order) > 1 {
			out = pipelinePath(path, id)
		}
		if err := p.Save(Width, Height, out); err != nil {
			return written, errors.Wrapf(err, "save curve %s", out)
		}
		written = append(written, out)
	}
	return written, nil
}

func pipelinePath(path, id string) string {
	ext := filepath.Ext(path)
	safe := strings.NewReplacer("+", "_", "/", "_", " ", "_").Replace(id)
	return strings.TrimSuffix(path, ext) + "-" + safe + ext
}
