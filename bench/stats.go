// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats summarises the timed samples of one case at one size. Times are
// in nanoseconds per invocation.
type Stats struct {
	Mean         float64 `json:"mean_ns"`
	StdDev       float64 `json:"stddev_ns"`
	Median       float64 `json:"median_ns"`
	P95          float64 `json:"p95_ns"`
	Min          float64 `json:"min_ns"`
	VoxelsPerSec float64 `json:"voxels_per_sec"`
}

// Summarize computes Stats from raw samples. voxels is the volume size
// processed by each invocation.
func Summarize(samples []float64, voxels int) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	s := Stats{
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Min:    sorted[0],
	}
	if len(sorted) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(sorted, nil)
	} else {
		s.Mean = sorted[0]
	}
	if s.Mean > 0 {
		s.VoxelsPerSec = float64(voxels) / (s.Mean / 1e9)
	}
	return s
}
