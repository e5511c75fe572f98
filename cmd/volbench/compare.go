// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/gudavol/bench"
)

var errRegressed = errors.New("regressions against baseline")

func newCompareCmd() *cobra.Command {
	var regress float64
	cmd := &cobra.Command{
		Use:   "compare <baseline.json> <current.json>",
		Short: "Compare a session against a baseline session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseline, err := bench.LoadSession(args[0])
			if err != nil {
				return err
			}
			current, err := bench.LoadSession(args[1])
			if err != nil {
				return err
			}
			cs := bench.Compare(baseline, current, regress)
			bench.WriteComparison(cmd.OutOrStdout(), cs)
			if bench.Regressed(cs) {
				return errRegressed
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&regress, "perf-regress", 1.1, "slowdown factor reported as a regression (1.1 = 10% slower)")
	return cmd
}
