// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LynnColeArt/gudavol"
	"github.com/LynnColeArt/gudavol/volume"
)

// Defaults for Config fields left zero.
const (
	DefaultSeed       = 4321
	DefaultMaxValue   = 10_000_000
	DefaultIterations = 10
	DefaultMinEdge    = 8
	DefaultMaxEdge    = 512
)

// Result statuses, as in the session log.
const (
	StatusPass = "pass"
	StatusFail = "fail"
	StatusSkip = "skip"
)

var (
	// ErrMismatch is wrapped when a device result disagrees with the
	// sequential reference.
	ErrMismatch = errors.New("bench: result differs from reference")

	// ErrNoCases is returned when a run selects nothing.
	ErrNoCases = errors.New("bench: no cases selected")

	// ErrSkip is wrapped by a Setup that cannot run at the given size.
	// The result is recorded with StatusSkip instead of StatusFail.
	ErrSkip = errors.New("bench: case skipped")
)

// Config controls a benchmark run.
type Config struct {
	Edges      []int
	Seed       uint64
	MaxValue   int
	Iterations int
	Warmup     int
	Cases      []Case

	// Cold evicts the CPU caches before every timed invocation.
	Cold bool

	// OnResult, when set, is called after every case/edge pair.
	OnResult func(Result)
	Logger   *slog.Logger
}

func (c Config) withDefaults() Config {
	if len(c.Edges) == 0 {
		c.Edges = Range(DefaultMinEdge, DefaultMaxEdge)
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.MaxValue == 0 {
		c.MaxValue = DefaultMaxValue
	}
	if c.Iterations <= 0 {
		c.Iterations = DefaultIterations
	}
	if c.Cases == nil {
		c.Cases = DefaultCases()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Result is the outcome of one case at one cube edge.
type Result struct {
	Name      string        `json:"name"`
	Edge      int           `json:"edge"`
	Voxels    int           `json:"voxels"`
	Status    string        `json:"status"`
	Cache     string        `json:"cache_condition"`
	Samples   []float64     `json:"samples_ns,omitempty"`
	Stats     Stats         `json:"stats"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Key identifies a result across sessions.
func (r Result) Key() string {
	return fmt.Sprintf("%s/%d", r.Name, r.Edge)
}

// Range returns the powers of two from lo up to and including hi.
func Range(lo, hi int) []int {
	var out []int
	for e := max(lo, 1); e <= hi; e *= 2 {
		out = append(out, e)
	}
	return out
}

// Run executes every case at every edge on dev. Cases that fail setup,
// execution or the reference check are recorded with StatusFail and do
// not stop the run; cancellation of ctx does. A Setup error wrapping
// ErrSkip records StatusSkip.
func Run(ctx context.Context, dev *gudavol.Context, cfg Config) ([]Result, error) {
	cfg = cfg.withDefaults()
	if len(cfg.Cases) == 0 {
		return nil, ErrNoCases
	}

	var results []Result
	for _, edge := range cfg.Edges {
		vol, err := volume.New(volume.Cube(edge))
		if err != nil {
			return results, err
		}
		volume.FillUniformInts(vol, cfg.Seed, cfg.MaxValue)

		for _, c := range cfg.Cases {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			r := runCase(dev, c, vol, cfg)
			switch r.Status {
			case StatusFail:
				cfg.Logger.Warn("benchmark case failed", "case", r.Key(), "err", r.Error)
			case StatusSkip:
				cfg.Logger.Info("benchmark case skipped", "case", r.Key(), "reason", r.Error)
			default:
				cfg.Logger.Info("benchmark case", "case", r.Key(),
					"mean", time.Duration(r.Stats.Mean), "p95", time.Duration(r.Stats.P95))
			}
			if cfg.OnResult != nil {
				cfg.OnResult(r)
			}
			results = append(results, r)
		}
	}
	return results, nil
}

func runCase(dev *gudavol.Context, c Case, vol *volume.Volume, cfg Config) Result {
	r := Result{
		Name:      c.Name,
		Edge:      vol.Dims().Width,
		Voxels:    vol.Count(),
		Cache:     CacheHot,
		Timestamp: time.Now(),
	}
	if cfg.Cold {
		r.Cache = CacheCold
	}
	fail := func(err error) Result {
		r.Status = StatusFail
		r.Error = err.Error()
		return r
	}

	inst, err := c.Setup(dev, vol)
	if errors.Is(err, ErrSkip) {
		r.Status = StatusSkip
		r.Error = err.Error()
		return r
	}
	if err != nil {
		return fail(fmt.Errorf("setup: %w", err))
	}
	if inst.Close != nil {
		defer inst.Close()
	}

	for i := 0; i < cfg.Warmup+cfg.Iterations; i++ {
		if inst.Reset != nil {
			if err := inst.Reset(); err != nil {
				return fail(fmt.Errorf("reset: %w", err))
			}
		}
		if cfg.Cold {
			flushCaches()
		}
		start := time.Now()
		if err := inst.Run(); err != nil {
			return fail(err)
		}
		elapsed := time.Since(start)
		if i >= cfg.Warmup {
			r.Samples = append(r.Samples, float64(elapsed.Nanoseconds()))
			r.Duration += elapsed
		}
	}

	if err := inst.Check(); err != nil {
		return fail(err)
	}
	r.Stats = Summarize(r.Samples, r.Voxels)
	r.Status = StatusPass
	return r
}
