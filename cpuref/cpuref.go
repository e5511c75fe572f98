// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpuref holds the sequential reference implementations of the
// volume primitives. They are the correctness oracle for every device
// path and the baseline for the benchmarks. Nothing here keeps state.
package cpuref

import (
	"errors"
	"fmt"

	"github.com/LynnColeArt/gudavol/volume"
)

// ErrInvalidArgument is wrapped by every precondition failure.
var ErrInvalidArgument = errors.New("cpuref: invalid argument")

// FindMinMax folds every voxel of vol into a (min, max) pair in a single
// pass. Inputs are assumed finite.
func FindMinMax(vol *volume.Volume) (volume.ScalarRange, error) {
	if vol == nil || vol.Count() == 0 {
		return volume.ScalarRange{}, fmt.Errorf("%w: empty volume", ErrInvalidArgument)
	}

	data := vol.Data()
	r := volume.ScalarRange{Min: data[0], Max: data[0]}
	for _, v := range data[1:] {
		r.Min = min(r.Min, v)
		r.Max = max(r.Max, v)
	}
	return r, nil
}

// Normalize rescales vol linearly into [lo, hi] relative to its own data
// range. When out is nil a new volume is returned, when out == vol the
// transform runs in place, otherwise out must have the same dimensions.
func Normalize(vol *volume.Volume, lo, hi float32, out *volume.Volume) (*volume.Volume, error) {
	src, err := FindMinMax(vol)
	if err != nil {
		return nil, err
	}

	if out == nil {
		out, err = volume.New(vol.Dims())
		if err != nil {
			return nil, err
		}
	} else if out.Dims() != vol.Dims() {
		return nil, fmt.Errorf("%w: output dims %s do not match input %s",
			ErrInvalidArgument, out.Dims(), vol.Dims())
	}

	in, dst := vol.Data(), out.Data()
	for i, v := range in {
		dst[i] = volume.Rescale(v, src, lo, hi)
	}
	return out, nil
}
