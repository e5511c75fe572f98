// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package volume provides the host-side container for dense 3D float32
// fields. A Volume is laid out row-major within each z slice with the
// origin at (0,0,0); voxel (x,y,z) lives at index x + y*W + z*W*H.
//
// The container carries no algorithmic logic. Reductions live in cpuref
// (scalar oracle) and in the gudavol device runtime.
package volume

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDims is returned when any dimension is not positive.
	ErrInvalidDims = errors.New("volume: dimensions must be positive")

	// ErrSizeMismatch is returned when a backing slice does not hold
	// exactly Width*Height*Depth voxels.
	ErrSizeMismatch = errors.New("volume: data length does not match dimensions")
)

// Dims holds the extent of a volume in voxels.
type Dims struct {
	Width, Height, Depth int
}

// Cube returns the dimensions of an edge³ volume.
func Cube(edge int) Dims {
	return Dims{Width: edge, Height: edge, Depth: edge}
}

// Valid reports whether every dimension is positive.
func (d Dims) Valid() bool {
	return d.Width > 0 && d.Height > 0 && d.Depth > 0
}

// Count returns the number of voxels, or 0 for invalid dimensions.
func (d Dims) Count() int {
	if !d.Valid() {
		return 0
	}
	return d.Width * d.Height * d.Depth
}

// Rows returns the number of x-rows (Height*Depth).
func (d Dims) Rows() int {
	if !d.Valid() {
		return 0
	}
	return d.Height * d.Depth
}

func (d Dims) String() string {
	return fmt.Sprintf("%dx%dx%d", d.Width, d.Height, d.Depth)
}

// Volume owns a dense 3D array of float32 voxels in host memory.
// A Volume is never resized in place.
type Volume struct {
	dims Dims
	data []float32
}

// New allocates a zero-filled volume.
func New(dims Dims) (*Volume, error) {
	if !dims.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDims, dims)
	}
	return &Volume{
		dims: dims,
		data: make([]float32, dims.Count()),
	}, nil
}

// FromSlice wraps data without copying. The caller keeps ownership of
// the slice contents.
func FromSlice(dims Dims, data []float32) (*Volume, error) {
	if !dims.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDims, dims)
	}
	if len(data) != dims.Count() {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrSizeMismatch, len(data), dims.Count())
	}
	return &Volume{dims: dims, data: data}, nil
}

// Dims returns (width, height, depth).
func (v *Volume) Dims() Dims { return v.dims }

// Count returns the number of voxels.
func (v *Volume) Count() int { return len(v.data) }

// Data returns the flat voxel slice. Writes through it are visible to
// the volume.
func (v *Volume) Data() []float32 { return v.data }

// RowStride is the distance in voxels between (x,y,z) and (x,y+1,z).
func (v *Volume) RowStride() int { return v.dims.Width }

// SliceStride is the distance in voxels between (x,y,z) and (x,y,z+1).
func (v *Volume) SliceStride() int { return v.dims.Width * v.dims.Height }

// Index returns the flat index of (x,y,z). Coordinates are not checked.
func (v *Volume) Index(x, y, z int) int {
	return x + y*v.dims.Width + z*v.dims.Width*v.dims.Height
}

// At returns the voxel at (x,y,z).
func (v *Volume) At(x, y, z int) float32 {
	return v.data[v.Index(x, y, z)]
}

// Set stores val at (x,y,z).
func (v *Volume) Set(x, y, z int, val float32) {
	v.data[v.Index(x, y, z)] = val
}

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	data := make([]float32, len(v.data))
	copy(data, v.data)
	return &Volume{dims: v.dims, data: data}
}
