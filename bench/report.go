// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// series groups passing results by case name, each sorted by edge.
func series(results []Result) (names []string, byName map[string][]Result) {
	byName = make(map[string][]Result)
	for _, r := range results {
		if r.Status != StatusPass {
			continue
		}
		if _, ok := byName[r.Name]; !ok {
			names = append(names, r.Name)
		}
		byName[r.Name] = append(byName[r.Name], r)
	}
	for _, rs := range byName {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Edge < rs[j].Edge })
	}
	return names, byName
}

// edges returns the distinct cube edges present in results, ascending.
func edges(results []Result) []int {
	seen := make(map[int]bool)
	var out []int
	for _, r := range results {
		if r.Status == StatusPass && !seen[r.Edge] {
			seen[r.Edge] = true
			out = append(out, r.Edge)
		}
	}
	sort.Ints(out)
	return out
}

// WritePlot saves a PNG of throughput (Mvoxels/s) against cube edge, one
// line per case.
func WritePlot(path, title string, results []Result) error {
	names, byName := series(results)
	if len(names) == 0 {
		return fmt.Errorf("bench: nothing to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "cube edge (voxels)"
	p.Y.Label.Text = "Mvoxels/s"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}

	for i, name := range names {
		rs := byName[name]
		pts := make(plotter.XYs, 0, len(rs))
		for _, r := range rs {
			pts = append(pts, plotter.XY{X: float64(r.Edge), Y: r.Stats.VoxelsPerSec / 1e6})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("plotting %s: %w", name, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / len(plotutil.DefaultColors))
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10

	return p.Save(10*vg.Inch, 6*vg.Inch, path)
}

// WriteHTML renders an interactive line chart of mean time per invocation
// against cube edge.
func WriteHTML(w io.Writer, title string, results []Result) error {
	names, byName := series(results)
	xs := edges(results)

	labels := make([]string, len(xs))
	for i, e := range xs {
		labels[i] = strconv.Itoa(e)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1100px", Height: "650px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "mean time per invocation"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "edge", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms", Type: "log"}),
	)
	line.SetXAxis(labels)

	for _, name := range names {
		at := make(map[int]float64)
		for _, r := range byName[name] {
			at[r.Edge] = r.Stats.Mean / 1e6
		}
		data := make([]opts.LineData, len(xs))
		for i, e := range xs {
			if v, ok := at[e]; ok {
				data[i] = opts.LineData{Value: v}
			} else {
				data[i] = opts.LineData{Value: "-"}
			}
		}
		line.AddSeries(name, data)
	}
	return line.Render(w)
}
