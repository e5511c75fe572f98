// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"fmt"
	"strings"

	"github.com/LynnColeArt/gudavol"
	"github.com/LynnColeArt/gudavol/cpuref"
	"github.com/LynnColeArt/gudavol/volume"
)

// Normalization target used by every normalize case.
const (
	targetLo float32 = 0
	targetHi float32 = 1
)

// Instance is one case prepared for one volume. Reset restores the input
// before every timed Run and is not timed itself; Check validates the last
// Run against the reference.
type Instance struct {
	Run   func() error
	Reset func() error
	Check func() error
	Close func()
}

// Case is a named benchmark over a family of volume sizes.
type Case struct {
	Name  string
	Setup func(ctx *gudavol.Context, vol *volume.Volume) (*Instance, error)
}

// DefaultCases mirrors the full find_min_max and normalize matrix.
func DefaultCases() []Case {
	cases := []Case{
		{Name: "find_min_max/cpu", Setup: setupCPUMinMax},
	}
	for _, s := range gudavol.Strategies {
		cases = append(cases, Case{Name: "find_min_max/" + s.String(), Setup: setupMinMax(s)})
	}
	cases = append(cases,
		Case{Name: "normalize/cpu", Setup: setupCPUNormalize(false)},
		Case{Name: "normalize/cpu_in_place", Setup: setupCPUNormalize(true)},
	)
	for _, l := range []gudavol.Layout{gudavol.LayoutPitchedPointer, gudavol.LayoutTexture} {
		cases = append(cases,
			Case{Name: "normalize/" + l.String(), Setup: setupNormalize(l, false, gudavol.BlockShape{})},
			Case{Name: "normalize/" + l.String() + "_in_place", Setup: setupNormalize(l, true, gudavol.BlockShape{})},
		)
	}
	return cases
}

// BlockShapeCases sweeps the normalize block over xs × ys on the pitched
// layout. Shapes above the thread limit are skipped.
func BlockShapeCases(xs, ys []int) []Case {
	var cases []Case
	for _, x := range xs {
		for _, y := range ys {
			b := gudavol.BlockShape{X: x, Y: y}
			if b.Threads() > gudavol.MaxThreadsPerBlock {
				continue
			}
			cases = append(cases, Case{
				Name:  "normalize/blocksize/" + b.String(),
				Setup: setupNormalize(gudavol.LayoutPitchedPointer, false, b),
			})
		}
	}
	return cases
}

// SelectCases keeps the cases whose name starts with one of prefixes. An
// empty prefix list keeps everything.
func SelectCases(cases []Case, prefixes []string) []Case {
	if len(prefixes) == 0 {
		return cases
	}
	var out []Case
	for _, c := range cases {
		for _, p := range prefixes {
			if strings.HasPrefix(c.Name, p) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func setupCPUMinMax(_ *gudavol.Context, vol *volume.Volume) (*Instance, error) {
	want, err := cpuref.FindMinMax(vol)
	if err != nil {
		return nil, err
	}
	var got volume.ScalarRange
	return &Instance{
		Run: func() (err error) {
			got, err = cpuref.FindMinMax(vol)
			return err
		},
		Check: func() error { return checkRange(want, got) },
	}, nil
}

func setupMinMax(s gudavol.Strategy) func(*gudavol.Context, *volume.Volume) (*Instance, error) {
	return func(ctx *gudavol.Context, vol *volume.Volume) (*Instance, error) {
		want, err := cpuref.FindMinMax(vol)
		if err != nil {
			return nil, err
		}
		dv, err := ctx.Upload(vol, gudavol.LayoutPitchedPointer)
		if err != nil {
			return nil, err
		}
		var got volume.ScalarRange
		return &Instance{
			Run: func() (err error) {
				got, err = gudavol.FindMinMax(dv, s)
				return err
			},
			Check: func() error { return checkRange(want, got) },
			Close: func() { dv.Free() },
		}, nil
	}
}

func setupCPUNormalize(inPlace bool) func(*gudavol.Context, *volume.Volume) (*Instance, error) {
	return func(_ *gudavol.Context, vol *volume.Volume) (*Instance, error) {
		want, err := cpuref.Normalize(vol, targetLo, targetHi, nil)
		if err != nil {
			return nil, err
		}
		src := vol.Clone()
		out, err := volume.New(vol.Dims())
		if err != nil {
			return nil, err
		}
		if inPlace {
			out = src
		}
		inst := &Instance{
			Run: func() error {
				_, err := cpuref.Normalize(src, targetLo, targetHi, out)
				return err
			},
			Check: func() error { return checkVolume(want, out) },
		}
		if inPlace {
			inst.Reset = func() error {
				copy(src.Data(), vol.Data())
				return nil
			}
		}
		return inst, nil
	}
}

func setupNormalize(layout gudavol.Layout, inPlace bool, block gudavol.BlockShape) func(*gudavol.Context, *volume.Volume) (*Instance, error) {
	return func(ctx *gudavol.Context, vol *volume.Volume) (*Instance, error) {
		want, err := cpuref.Normalize(vol, targetLo, targetHi, nil)
		if err != nil {
			return nil, err
		}
		src, err := ctx.Upload(vol, layout)
		if err != nil {
			return nil, err
		}
		out := src
		if !inPlace {
			if out, err = ctx.AllocVolume(vol.Dims(), layout); err != nil {
				src.Free()
				return nil, err
			}
		}
		inst := &Instance{
			Run: func() error {
				_, err := gudavol.Normalize(src, targetLo, targetHi, out, block)
				return err
			},
			Check: func() error {
				got, err := out.Download()
				if err != nil {
					return err
				}
				return checkVolume(want, got)
			},
			Close: func() {
				if out != src {
					out.Free()
				}
				src.Free()
			},
		}
		if inPlace {
			inst.Reset = func() error { return src.CopyFrom(vol) }
		}
		return inst, nil
	}
}

func checkRange(want, got volume.ScalarRange) error {
	if want != got {
		return fmt.Errorf("%w: range %v, reference %v", ErrMismatch, got, want)
	}
	return nil
}

func checkVolume(want, got *volume.Volume) error {
	if r := gudavol.VerifyVolume(want, got, gudavol.DefaultTolerance()); !r.OK() {
		return fmt.Errorf("%w: %s", ErrMismatch, r)
	}
	return nil
}
