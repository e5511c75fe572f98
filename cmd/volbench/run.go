// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/gudavol"
	"github.com/LynnColeArt/gudavol/bench"
)

// backendCases is set by build-tagged files that add cases for another
// backend. The returned func releases the backend.
var backendCases func() ([]bench.Case, func(), error)

type runOptions struct {
	minEdge, maxEdge int
	seed             uint64
	iterations       int
	warmup           int
	workers          int
	memoryLimit      int64
	strategy         string
	cases            []string
	blockSweep       bool
	cold             bool
	name             string
	outDir           string
	plotPath         string
	htmlPath         string
}

func newRunCmd() *cobra.Command {
	o := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark matrix and save a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, o)
		},
	}

	f := cmd.Flags()
	f.IntVar(&o.minEdge, "min-edge", bench.DefaultMinEdge, "smallest cube edge")
	f.IntVar(&o.maxEdge, "max-edge", bench.DefaultMaxEdge, "largest cube edge (edges double from min-edge)")
	f.Uint64Var(&o.seed, "seed", bench.DefaultSeed, "seed for the volume generator")
	f.IntVar(&o.iterations, "iterations", bench.DefaultIterations, "timed invocations per case")
	f.IntVar(&o.warmup, "warmup", 1, "untimed invocations per case")
	f.IntVar(&o.workers, "workers", 0, "worker goroutines per launch (0 = GOMAXPROCS)")
	f.Int64Var(&o.memoryLimit, "memory-limit", 0, "device memory limit in bytes (0 = unlimited)")
	f.StringVar(&o.strategy, "strategy", gudavol.StrategyTree.String(), "reduce strategy used by normalize (tree, rowsweep)")
	f.StringSliceVar(&o.cases, "cases", nil, "only run cases with these name prefixes")
	f.BoolVar(&o.blockSweep, "blocksize", false, "add the normalize block shape sweep (1..32 x 1..32)")
	f.BoolVar(&o.cold, "cold", false, "flush CPU caches before every timed invocation")
	f.StringVar(&o.name, "name", "volbench", "session name")
	f.StringVar(&o.outDir, "out", bench.DefaultLogDir, "directory for the session file")
	f.StringVar(&o.plotPath, "plot", "", "also write a PNG throughput plot to this path")
	f.StringVar(&o.htmlPath, "html", "", "also write an HTML report to this path")
	return cmd
}

func runBench(cmd *cobra.Command, o runOptions) error {
	strategy, err := gudavol.ParseStrategy(o.strategy)
	if err != nil {
		return err
	}
	opts := []gudavol.Option{gudavol.WithReduceStrategy(strategy), gudavol.WithLogger(logger)}
	if o.workers > 0 {
		opts = append(opts, gudavol.WithWorkers(o.workers))
	}
	if o.memoryLimit > 0 {
		opts = append(opts, gudavol.WithMemoryLimit(o.memoryLimit))
	}
	dev := gudavol.NewContext(opts...)
	defer dev.Destroy()

	cases := bench.DefaultCases()
	if backendCases != nil {
		extra, closeBackend, err := backendCases()
		if err != nil {
			logger.Warn("extra backend unavailable", "err", err)
		} else {
			defer closeBackend()
			cases = append(cases, extra...)
		}
	}
	if o.blockSweep {
		sides := bench.Range(1, 32)
		cases = append(cases, bench.BlockShapeCases(sides, sides)...)
	}
	cases = bench.SelectCases(cases, o.cases)

	edges := bench.Range(o.minEdge, o.maxEdge)
	if len(edges) == 0 {
		return fmt.Errorf("no edges between %d and %d", o.minEdge, o.maxEdge)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	session := bench.NewSession(o.name, dev, o.seed)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== gudavol volume benchmarks ===\n")
	fmt.Fprintf(out, "Device: %s\n", dev.Device())
	fmt.Fprintf(out, "Session: %s, %d cases x %d edges, seed %d\n", session.ID, len(cases), len(edges), o.seed)

	results, runErr := bench.Run(ctx, dev, bench.Config{
		Edges:      edges,
		Seed:       o.seed,
		Iterations: o.iterations,
		Warmup:     o.warmup,
		Cases:      cases,
		Cold:       o.cold,
		Logger:     logger,
		OnResult: func(r bench.Result) {
			switch r.Status {
			case bench.StatusPass:
				fmt.Fprintf(out, "  %-44s %12.0f ns/op\n", r.Key(), r.Stats.Mean)
			case bench.StatusSkip:
				fmt.Fprintf(out, "  %-44s SKIPPED: %s\n", r.Key(), r.Error)
			default:
				fmt.Fprintf(out, "  %-44s FAILED: %s\n", r.Key(), r.Error)
			}
		},
	})
	session.Results = results

	// Partial sessions are still worth keeping after an interrupt.
	path, err := session.Save(o.outDir)
	if err != nil {
		return err
	}
	session.WriteSummary(out)
	fmt.Fprintf(out, "Session written to %s\n", path)

	if o.plotPath != "" {
		if err := bench.WritePlot(o.plotPath, o.name, results); err != nil {
			return err
		}
	}
	if o.htmlPath != "" {
		if err := writeHTMLFile(o.htmlPath, o.name, results); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	for _, r := range results {
		if r.Status == bench.StatusFail {
			return fmt.Errorf("%s failed", r.Key())
		}
	}
	return nil
}
