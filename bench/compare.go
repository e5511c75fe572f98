// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Comparison statuses.
const (
	ComparePass    = "PASS"
	CompareSlower  = "SLOWER"
	CompareFaster  = "FASTER"
	CompareMissing = "MISSING"
	CompareFailed  = "FAIL"
	CompareSkipped = "SKIPPED"
)

// fasterThreshold is the speedup above which a case is reported faster.
const fasterThreshold = 1.2

// Comparison is the verdict for one case/edge of the baseline.
type Comparison struct {
	Key      string
	Status   string
	Baseline time.Duration
	Current  time.Duration
	Speedup  float64
	Message  string
}

// Compare matches every baseline result against current by Key. A case is
// SLOWER when its mean time grew by more than regress (1.1 = 10% slower),
// FASTER when it improved by more than 20%, FAIL when the current run
// failed, SKIPPED when current skipped it, and MISSING when current has no
// such case.
func Compare(baseline, current *Session, regress float64) []Comparison {
	if regress <= 0 {
		regress = 1.1
	}
	byKey := make(map[string]Result, len(current.Results))
	for _, r := range current.Results {
		byKey[r.Key()] = r
	}

	out := make([]Comparison, 0, len(baseline.Results))
	for _, base := range baseline.Results {
		c := Comparison{
			Key:      base.Key(),
			Baseline: time.Duration(base.Stats.Mean),
		}
		cur, ok := byKey[c.Key]
		switch {
		case !ok:
			c.Status = CompareMissing
			c.Message = "case missing in current session"
		case cur.Status == StatusSkip:
			c.Status = CompareSkipped
			c.Message = cur.Error
		case cur.Status != StatusPass:
			c.Status = CompareFailed
			c.Message = cur.Error
		case base.Status != StatusPass || cur.Stats.Mean == 0:
			c.Status = ComparePass
			c.Current = time.Duration(cur.Stats.Mean)
			c.Message = "no baseline timing"
		default:
			c.Current = time.Duration(cur.Stats.Mean)
			c.Speedup = base.Stats.Mean / cur.Stats.Mean
			switch {
			case c.Speedup < 1/regress:
				c.Status = CompareSlower
				c.Message = fmt.Sprintf("performance regression: %.2fx slower", 1/c.Speedup)
			case c.Speedup > fasterThreshold:
				c.Status = CompareFaster
				c.Message = fmt.Sprintf("performance improvement: %.2fx faster", c.Speedup)
			default:
				c.Status = ComparePass
			}
		}
		out = append(out, c)
	}
	return out
}

// Regressed reports whether any comparison is SLOWER, FAIL or MISSING.
func Regressed(cs []Comparison) bool {
	for _, c := range cs {
		switch c.Status {
		case CompareSlower, CompareFailed, CompareMissing:
			return true
		}
	}
	return false
}

// WriteComparison prints the status counts and a table of all cases.
func WriteComparison(w io.Writer, cs []Comparison) {
	fmt.Fprintln(w, "=== gudavol baseline comparison ===")
	fmt.Fprintln(w)

	count := make(map[string]int)
	for _, c := range cs {
		count[c.Status]++
	}
	fmt.Fprintf(w, "Total cases: %d\n", len(cs))
	for _, s := range []string{ComparePass, CompareFailed, CompareMissing, CompareSlower, CompareFaster, CompareSkipped} {
		fmt.Fprintf(w, "  %-8s %d\n", s+":", count[s])
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-40s %-7s %12s %12s %8s\n", "Case", "Status", "Baseline", "Current", "Speedup")
	fmt.Fprintln(w, strings.Repeat("-", 84))
	for _, c := range cs {
		fmt.Fprintf(w, "%-40s %-7s %12.3f %12.3f %8.2f",
			c.Key, c.Status,
			float64(c.Baseline)/1e6, // ms
			float64(c.Current)/1e6,
			c.Speedup)
		if c.Message != "" && c.Status != ComparePass {
			fmt.Fprintf(w, "  %s", c.Message)
		}
		fmt.Fprintln(w)
	}
}
