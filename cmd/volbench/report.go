// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/gudavol/bench"
)

func newReportCmd() *cobra.Command {
	var (
		dir      string
		prefix   []string
		plotPath string
		htmlPath string
	)
	cmd := &cobra.Command{
		Use:   "report [session.json]",
		Short: "Summarise a session and render its charts",
		Long: "Prints the summary of a session and optionally writes a PNG plot and an\n" +
			"HTML chart. Without an argument the latest session in --dir is used.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				var err error
				if path, err = bench.LatestSession(dir); err != nil {
					return err
				}
			}
			s, err := bench.LoadSession(path)
			if err != nil {
				return err
			}
			s.WriteSummary(cmd.OutOrStdout())

			results := filterResults(s.Results, prefix)
			if plotPath != "" {
				if err := bench.WritePlot(plotPath, s.Name, results); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Plot written to %s\n", plotPath)
			}
			if htmlPath != "" {
				if err := writeHTMLFile(htmlPath, s.Name, results); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "HTML report written to %s\n", htmlPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", bench.DefaultLogDir, "session directory")
	cmd.Flags().StringSliceVar(&prefix, "cases", nil, "only chart cases with these name prefixes")
	cmd.Flags().StringVar(&plotPath, "plot", "", "write a PNG throughput plot to this path")
	cmd.Flags().StringVar(&htmlPath, "html", "", "write an HTML chart to this path")
	return cmd
}

func filterResults(results []bench.Result, prefixes []string) []bench.Result {
	if len(prefixes) == 0 {
		return results
	}
	var out []bench.Result
	for _, r := range results {
		for _, p := range prefixes {
			if strings.HasPrefix(r.Name, p) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func writeHTMLFile(path, title string, results []bench.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bench.WriteHTML(f, title, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
