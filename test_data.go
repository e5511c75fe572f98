package gudavol

import (
	"math"

	"github.com/LynnColeArt/gudavol/volume"
)

// GenerateVolume returns a volume of deterministic uniform values in
// [lo, hi). The same seed always yields the same voxels.
//
// Example:
//
//	vol := GenerateVolume(volume.Cube(64), 4321, 0, 1000)
func GenerateVolume(dims volume.Dims, seed uint64, lo, hi float32) *volume.Volume {
	vol, err := volume.New(dims)
	if err != nil {
		panic(err)
	}
	volume.FillUniform(vol, seed, lo, hi)
	return vol
}

// GenerateRampVolume returns a volume whose voxel i holds float32(i).
func GenerateRampVolume(dims volume.Dims) *volume.Volume {
	vol, err := volume.New(dims)
	if err != nil {
		panic(err)
	}
	volume.FillRamp(vol)
	return vol
}

// GenerateConstantVolume returns a volume with every voxel set to c.
func GenerateConstantVolume(dims volume.Dims, c float32) *volume.Volume {
	vol, err := volume.New(dims)
	if err != nil {
		panic(err)
	}
	volume.FillConstant(vol, c)
	return vol
}

// FiniteEdgeCases returns finite float32 values that stress min/max
// ordering: signed zeros, denormals and the extremes.
func FiniteEdgeCases() []float32 {
	return []float32{
		0.0,
		float32(math.Copysign(0, -1)),
		1.0,
		-1.0,
		math.SmallestNonzeroFloat32,
		-math.SmallestNonzeroFloat32,
		math.MaxFloat32,
		-math.MaxFloat32,
	}
}

// VolumeTestDims returns shapes that exercise padding and partial blocks.
func VolumeTestDims() []volume.Dims {
	return []volume.Dims{
		{Width: 1, Height: 1, Depth: 1},   // Single voxel
		{Width: 8, Height: 8, Depth: 8},   // Small cube
		{Width: 3, Height: 5, Depth: 7},   // Odd extents
		{Width: 17, Height: 1, Depth: 1},  // Single row
		{Width: 1, Height: 33, Depth: 2},  // Single column
		{Width: 129, Height: 3, Depth: 2}, // Row wider than one pitch unit
		{Width: 31, Height: 17, Depth: 9}, // Partial blocks everywhere
		{Width: 64, Height: 64, Depth: 64},
	}
}
