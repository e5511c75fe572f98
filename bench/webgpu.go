// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build webgpu

package bench

import (
	"fmt"

	"github.com/LynnColeArt/gudavol"
	"github.com/LynnColeArt/gudavol/cpuref"
	"github.com/LynnColeArt/gudavol/volume"
	"github.com/LynnColeArt/gudavol/webgpu"
)

// WebGPUCases returns find_min_max and normalize cases on d. Timings
// include the upload and the readback. Volumes beyond d.MaxVoxels are
// skipped.
func WebGPUCases(d *webgpu.Device) []Case {
	return []Case{
		{Name: "find_min_max/webgpu", Setup: setupWebGPUMinMax(d)},
		{Name: "normalize/webgpu", Setup: setupWebGPUNormalize(d)},
	}
}

func webgpuFits(d *webgpu.Device, vol *volume.Volume) error {
	if vol.Count() > d.MaxVoxels() {
		return fmt.Errorf("%w: %d voxels over the %d-voxel binding limit of %s",
			ErrSkip, vol.Count(), d.MaxVoxels(), d.Name())
	}
	return nil
}

func setupWebGPUMinMax(d *webgpu.Device) func(*gudavol.Context, *volume.Volume) (*Instance, error) {
	return func(_ *gudavol.Context, vol *volume.Volume) (*Instance, error) {
		if err := webgpuFits(d, vol); err != nil {
			return nil, err
		}
		want, err := cpuref.FindMinMax(vol)
		if err != nil {
			return nil, err
		}
		var got volume.ScalarRange
		return &Instance{
			Run: func() (err error) {
				got, err = d.FindMinMax(vol)
				return err
			},
			Check: func() error { return checkRange(want, got) },
		}, nil
	}
}

func setupWebGPUNormalize(d *webgpu.Device) func(*gudavol.Context, *volume.Volume) (*Instance, error) {
	return func(_ *gudavol.Context, vol *volume.Volume) (*Instance, error) {
		if err := webgpuFits(d, vol); err != nil {
			return nil, err
		}
		want, err := cpuref.Normalize(vol, targetLo, targetHi, nil)
		if err != nil {
			return nil, err
		}
		out, err := volume.New(vol.Dims())
		if err != nil {
			return nil, err
		}
		return &Instance{
			Run: func() error {
				_, err := d.Normalize(vol, targetLo, targetHi, out, gudavol.BlockShape{})
				return err
			},
			Check: func() error { return checkVolume(want, out) },
		}, nil
	}
}
