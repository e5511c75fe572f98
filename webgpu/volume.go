// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build webgpu

package webgpu

import (
	"fmt"
	"math"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/LynnColeArt/gudavol"
	"github.com/LynnColeArt/gudavol/volume"
)

// FindMinMax reduces vol on the device in two passes: up to maxGroups
// workgroups fold grid-strided voxels into partials, then one workgroup
// folds the partials.
func (d *Device) FindMinMax(vol *volume.Volume) (volume.ScalarRange, error) {
	if vol == nil || vol.Count() == 0 {
		return volume.ScalarRange{}, fmt.Errorf("webgpu: FindMinMax: %w", gudavol.ErrEmptyVolume)
	}
	if err := d.fits("FindMinMax", vol.Count()); err != nil {
		return volume.ScalarRange{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	input, err := d.storage("minmax_input", vol.Data())
	if err != nil {
		return volume.ScalarRange{}, err
	}
	defer input.Destroy()
	return d.reduce(input, vol.Count())
}

func (d *Device) reduce(input *wgpu.Buffer, n int) (volume.ScalarRange, error) {
	groups := groupsFor(n)
	partials, err := d.scratch("minmax_partials", 2*groups)
	if err != nil {
		return volume.ScalarRange{}, err
	}
	defer partials.Destroy()
	result, err := d.scratch("minmax_result", 2)
	if err != nil {
		return volume.ScalarRange{}, err
	}
	defer result.Destroy()

	if err := d.dispatch("minmax_pass1", reduceShader(n, groups, false),
		[]*wgpu.Buffer{input, partials}, uint32(groups), 1, 1); err != nil {
		return volume.ScalarRange{}, err
	}
	if err := d.dispatch("minmax_pass2", reduceShader(groups, 1, true),
		[]*wgpu.Buffer{partials, result}, 1, 1, 1); err != nil {
		return volume.ScalarRange{}, err
	}

	var r [2]float32
	if err := d.read(result, r[:]); err != nil {
		return volume.ScalarRange{}, err
	}
	return volume.ScalarRange{Min: r[0], Max: r[1]}, nil
}

// Normalize rescales vol into [lo, hi] on the device. out follows the
// cpuref convention: nil allocates, vol itself means in place, anything
// else must match the dims of vol. The zero block selects the default
// shape; shapes above 256 invocations are rejected.
func (d *Device) Normalize(vol *volume.Volume, lo, hi float32, out *volume.Volume, block gudavol.BlockShape) (*volume.Volume, error) {
	if vol == nil || vol.Count() == 0 {
		return nil, fmt.Errorf("webgpu: Normalize: %w", gudavol.ErrEmptyVolume)
	}
	if err := d.fits("Normalize", vol.Count()); err != nil {
		return nil, err
	}
	if !finite(lo) || !finite(hi) {
		return nil, fmt.Errorf("webgpu: Normalize: target [%g, %g] must be finite", lo, hi)
	}
	block, err := resolveBlock(block)
	if err != nil {
		return nil, err
	}
	if out != nil && out.Dims() != vol.Dims() {
		return nil, fmt.Errorf("webgpu: Normalize: output %v for input %v: %w", out.Dims(), vol.Dims(), volume.ErrSizeMismatch)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	input, err := d.storage("normalize_input", vol.Data())
	if err != nil {
		return nil, err
	}
	defer input.Destroy()
	src, err := d.reduce(input, vol.Count())
	if err != nil {
		return nil, err
	}

	output, err := d.scratch("normalize_output", vol.Count())
	if err != nil {
		return nil, err
	}
	defer output.Destroy()

	x, y, z := dispatchFor(vol.Dims(), block)
	if err := d.dispatch("normalize", normalizeShader(vol.Dims(), src, lo, hi, block),
		[]*wgpu.Buffer{input, output}, x, y, z); err != nil {
		return nil, err
	}

	if out == nil {
		if out, err = volume.New(vol.Dims()); err != nil {
			return nil, err
		}
	}
	if err := d.read(output, out.Data()); err != nil {
		return nil, err
	}
	return out, nil
}

func finite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
