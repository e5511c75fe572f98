package gudavol

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LynnColeArt/gudavol/cpuref"
	"github.com/LynnColeArt/gudavol/volume"
)

func normalizeOrFail(t testing.TB, src *DeviceVolume, lo, hi float32, out *DeviceVolume, block BlockShape) *volume.Volume {
	t.Helper()
	res, err := Normalize(src, lo, hi, out, block)
	if err != nil {
		t.Fatalf("Normalize(%s, [%g, %g], block %v) failed: %v", src.Layout(), lo, hi, block, err)
	}
	vol := DownloadOrFail(t, res)
	if res != src && res != out {
		res.Free()
	}
	return vol
}

func TestNormalizeSingleVoxel(t *testing.T) {
	ctx := NewTestContext(t)
	vol := GenerateConstantVolume(volume.Cube(1), 5)
	for _, layout := range layouts {
		dv := UploadOrFail(t, ctx, vol, layout)
		for _, bounds := range [][2]float32{{0, 1}, {-3, 7}, {2, 2}} {
			got := normalizeOrFail(t, dv, bounds[0], bounds[1], nil, BlockShape{})
			assert.Equal(t, []float32{bounds[0]}, got.Data(), "%s %v", layout, bounds)
		}
	}
}

func TestNormalizeRamp(t *testing.T) {
	ctx := NewTestContext(t)
	vol := GenerateRampVolume(volume.Cube(8))
	const lo, hi = -1, 1

	for _, layout := range layouts {
		dv := UploadOrFail(t, ctx, vol, layout)
		got := normalizeOrFail(t, dv, lo, hi, nil, BlockShape{})

		for i, v := range got.Data() {
			want := lo + float64(i)*(hi-lo)/511
			if math.Abs(float64(v)-want) > 1e-6 {
				t.Fatalf("%s voxel %d = %v, want %v", layout, i, v, want)
			}
		}
		assert.Equal(t, float32(lo), got.Data()[0])
		assert.Equal(t, float32(hi), got.Data()[511])
	}
}

func TestNormalizeConstant(t *testing.T) {
	ctx := NewTestContext(t)
	vol := GenerateConstantVolume(volumeDims(9, 7, 5), 3.14)
	for _, layout := range layouts {
		dv := UploadOrFail(t, ctx, vol, layout)
		got := normalizeOrFail(t, dv, 10, 20, nil, BlockShape{X: 4, Y: 4})
		for i, v := range got.Data() {
			require.Equal(t, float32(10), v, "%s voxel %d", layout, i)
		}
	}
}

// Normalizing and reducing the output again yields [lo, hi].
func TestNormalizeOutputRange(t *testing.T) {
	ctx := NewTestContext(t)
	vol := GenerateVolume(volume.Cube(40), 21, -50, 250)
	for _, layout := range layouts {
		dv := UploadOrFail(t, ctx, vol, layout)
		out, err := Normalize(dv, 0, 1, nil, BlockShape{})
		require.NoError(t, err)
		for _, s := range Strategies {
			r, err := FindMinMax(out, s)
			require.NoError(t, err)
			assert.InDelta(t, 0, r.Min, 1e-6, "%s/%s", layout, s)
			assert.InDelta(t, 1, r.Max, 1e-6, "%s/%s", layout, s)
		}
		require.NoError(t, out.Free())
	}
}

func TestNormalizeEdgeValues(t *testing.T) {
	ctx := NewTestContext(t)
	edges := FiniteEdgeCases()
	vol, err := volume.FromSlice(volumeOf(len(edges)), edges)
	require.NoError(t, err)
	ramp := GenerateRampVolume(volumeDims(8, 1, 1))

	for _, tt := range []struct {
		name   string
		vol    *volume.Volume
		lo, hi float32
	}{
		{"extreme voxels", vol, 0, 1},
		{"extreme bounds", ramp, -math.MaxFloat32, math.MaxFloat32},
		{"extreme voxels and bounds", vol, math.MaxFloat32, -math.MaxFloat32},
	} {
		t.Run(tt.name, func(t *testing.T) {
			want, err := cpuref.Normalize(tt.vol, tt.lo, tt.hi, nil)
			require.NoError(t, err)
			for i, v := range want.Data() {
				require.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0), "reference voxel %d = %v", i, v)
			}
			r, err := cpuref.FindMinMax(want)
			require.NoError(t, err)
			assert.Equal(t, volume.ScalarRange{Min: min(tt.lo, tt.hi), Max: max(tt.lo, tt.hi)}, r)

			for _, layout := range layouts {
				got := normalizeOrFail(t, UploadOrFail(t, ctx, tt.vol, layout), tt.lo, tt.hi, nil, BlockShape{})
				if diff := cmp.Diff(want.Data(), got.Data()); diff != "" {
					t.Fatalf("%s differs from reference (-want +got):\n%s", layout, diff)
				}
			}
		})
	}
}

func TestNormalizeMatchesReference(t *testing.T) {
	ctx := NewTestContext(t)
	for _, dims := range VolumeTestDims() {
		vol := GenerateVolume(dims, 99, -10, 10)
		want, err := cpuref.Normalize(vol, -1, 3, nil)
		require.NoError(t, err)

		for _, layout := range layouts {
			got := normalizeOrFail(t, UploadOrFail(t, ctx, vol, layout), -1, 3, nil, BlockShape{})
			if diff := cmp.Diff(want.Data(), got.Data()); diff != "" {
				t.Fatalf("%v %s differs from reference (-want +got):\n%s", dims, layout, diff)
			}
		}
	}
}

func TestNormalizeInPlaceMatchesOutOfPlace(t *testing.T) {
	ctx := NewTestContext(t)
	vol := GenerateVolume(volumeDims(37, 19, 11), 5, 0, 1e7)
	for _, layout := range layouts {
		fresh := normalizeOrFail(t, UploadOrFail(t, ctx, vol, layout), 0, 1, nil, BlockShape{})

		dv := UploadOrFail(t, ctx, vol, layout)
		res, err := Normalize(dv, 0, 1, dv, BlockShape{})
		require.NoError(t, err)
		assert.Same(t, dv, res)
		inPlace := DownloadOrFail(t, dv)

		if diff := cmp.Diff(fresh.Data(), inPlace.Data()); diff != "" {
			t.Fatalf("%s in-place differs (-fresh +inplace):\n%s", layout, diff)
		}
	}
}

// Output is identical for every block shape and every combination of
// source and destination layout.
func TestNormalizeIndependentOfBlockShapeAndLayout(t *testing.T) {
	ctx := NewTestContext(t)
	vol := GenerateVolume(volumeDims(45, 23, 6), 17, -4, 4)
	want, err := cpuref.Normalize(vol, 0, 100, nil)
	require.NoError(t, err)

	shapes := []BlockShape{{}, {1, 1}, {32, 32}, {1, 32}, {32, 1}, {7, 3}, {16, 8}, {64, 16}, {1024, 1}}
	for _, srcLayout := range layouts {
		src := UploadOrFail(t, ctx, vol, srcLayout)
		for _, dstLayout := range layouts {
			out, err := ctx.AllocVolume(vol.Dims(), dstLayout)
			require.NoError(t, err)
			for _, shape := range shapes {
				got := normalizeOrFail(t, src, 0, 100, out, shape)
				if diff := cmp.Diff(want.Data(), got.Data()); diff != "" {
					t.Fatalf("%s->%s block %v differs (-want +got):\n%s", srcLayout, dstLayout, shape, diff)
				}
			}
			require.NoError(t, out.Free())
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	ctx := NewTestContext(t)
	vol := GenerateVolume(volume.Cube(20), 1234, -9, 9)
	for _, layout := range layouts {
		dv := UploadOrFail(t, ctx, vol, layout)
		_, err := Normalize(dv, 0, 1, dv, BlockShape{})
		require.NoError(t, err)
		once := DownloadOrFail(t, dv)

		_, err = Normalize(dv, 0, 1, dv, BlockShape{})
		require.NoError(t, err)
		twice := DownloadOrFail(t, dv)

		res := VerifyVolume(once, twice, DefaultTolerance())
		assert.True(t, res.OK(), "%s: %s", layout, res)
	}
}

func TestNormalizeStrategyOption(t *testing.T) {
	vol := GenerateVolume(volume.Cube(16), 8, 0, 1)
	var results []*volume.Volume
	for _, s := range Strategies {
		ctx := NewTestContext(t, WithReduceStrategy(s))
		assert.Equal(t, s, ctx.ReduceStrategy())
		results = append(results, normalizeOrFail(t, UploadOrFail(t, ctx, vol, LayoutPitchedPointer), 0, 1, nil, BlockShape{}))
	}
	assert.Equal(t, results[0].Data(), results[1].Data())
}

func TestNormalizePreconditions(t *testing.T) {
	ctx := NewTestContext(t)
	vol := GenerateRampVolume(volume.Cube(4))
	src := UploadOrFail(t, ctx, vol, LayoutPitchedPointer)
	other := UploadOrFail(t, ctx, GenerateRampVolume(volume.Cube(5)), LayoutPitchedPointer)
	freed, err := ctx.Upload(vol, LayoutTexture)
	require.NoError(t, err)
	require.NoError(t, freed.Free())
	otherCtx := NewTestContext(t)
	foreign := UploadOrFail(t, otherCtx, vol, LayoutPitchedPointer)

	nan := float32(math.NaN())
	tests := []struct {
		name     string
		src, out *DeviceVolume
		lo, hi   float32
		block    BlockShape
		sentinel error
	}{
		{"freed source", freed, nil, 0, 1, BlockShape{}, ErrVolumeFreed},
		{"freed output", src, freed, 0, 1, BlockShape{}, ErrVolumeFreed},
		{"dims mismatch", src, other, 0, 1, BlockShape{}, volume.ErrSizeMismatch},
		{"zero width block", src, nil, 0, 1, BlockShape{X: 0, Y: 4}, ErrInvalidBlockShape},
		{"negative block", src, nil, 0, 1, BlockShape{X: -1, Y: 1}, ErrInvalidBlockShape},
		{"block too large", src, nil, 0, 1, BlockShape{X: 64, Y: 32}, ErrInvalidBlockShape},
		{"nan bound", src, nil, nan, 1, BlockShape{}, nil},
		{"infinite bound", src, nil, 0, float32(math.Inf(1)), BlockShape{}, nil},
		{"foreign output", src, foreign, 0, 1, BlockShape{}, nil},
		{"nil source", nil, nil, 0, 1, BlockShape{}, ErrNullPointer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := ctx.MemoryStats()
			_, err := Normalize(tt.src, tt.lo, tt.hi, tt.out, tt.block)
			require.Error(t, err)
			assert.True(t, IsInvalidArgError(err), "got %v", err)
			if tt.sentinel != nil {
				assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			}
			after, _ := ctx.MemoryStats()
			assert.Equal(t, before, after, "failed call leaked device memory")
		})
	}

	// Nothing was written to any volume.
	assert.Equal(t, vol.Data(), DownloadOrFail(t, src).Data())
	assert.Equal(t, vol.Data(), DownloadOrFail(t, foreign).Data())
}

// An allocation failure inside Normalize is a device error and leaves the
// caller's output untouched.
func TestNormalizeOutOfMemoryLeavesOutputUntouched(t *testing.T) {
	vol := GenerateRampVolume(volume.Cube(8))
	// Room for the source and the output, not for reduction partials.
	ctx := NewTestContext(t, WithMemoryLimit(2*512*64))
	src := UploadOrFail(t, ctx, vol, LayoutPitchedPointer)
	sentinelVol := GenerateConstantVolume(volume.Cube(8), -42)
	out := UploadOrFail(t, ctx, sentinelVol, LayoutPitchedPointer)

	_, err := Normalize(src, 0, 1, out, BlockShape{})
	require.Error(t, err)
	assert.True(t, IsDeviceError(err), "got %v", err)
	assert.True(t, errors.Is(err, ErrOutOfMemory))
	assert.Equal(t, sentinelVol.Data(), DownloadOrFail(t, out).Data())

	// Without room for a fresh output the call fails before reducing.
	_, err = Normalize(src, 0, 1, nil, BlockShape{})
	assert.True(t, IsDeviceError(err), "got %v", err)
	assert.Equal(t, vol.Data(), DownloadOrFail(t, src).Data())
}

func TestNormalizeHost(t *testing.T) {
	ctx := NewTestContext(t)
	vol := GenerateVolume(volumeDims(12, 10, 8), 2, -2, 2)
	want, err := cpuref.Normalize(vol, 0, 1, nil)
	require.NoError(t, err)

	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			got, err := ctx.NormalizeHost(vol, 0, 1, nil, layout, BlockShape{X: 8, Y: 8})
			require.NoError(t, err)
			assert.Equal(t, want.Data(), got.Data())

			inPlace := vol.Clone()
			res, err := ctx.NormalizeHost(inPlace, 0, 1, inPlace, layout, BlockShape{})
			require.NoError(t, err)
			assert.Same(t, inPlace, res)
			assert.Equal(t, want.Data(), inPlace.Data())

			wrong, err := volume.New(volume.Cube(3))
			require.NoError(t, err)
			_, err = ctx.NormalizeHost(vol, 0, 1, wrong, layout, BlockShape{})
			assert.True(t, IsInvalidArgError(err))
		})
	}

	allocated, _ := ctx.MemoryStats()
	assert.Zero(t, allocated)
}

func TestBlockShapeResolve(t *testing.T) {
	b, err := BlockShape{}.resolve()
	require.NoError(t, err)
	assert.Equal(t, BlockShape{X: 16, Y: 16}, b)

	// Changing a returned default must not leak into later launches.
	d := DefaultBlockShape()
	d.X = 1
	b, err = BlockShape{}.resolve()
	require.NoError(t, err)
	assert.Equal(t, BlockShape{X: 16, Y: 16}, b)

	b, err = BlockShape{X: 32, Y: 32}.resolve()
	require.NoError(t, err)
	assert.Equal(t, 1024, b.Threads())

	_, err = BlockShape{X: 33, Y: 32}.resolve()
	assert.True(t, errors.Is(err, ErrInvalidBlockShape))
}

func BenchmarkNormalize(b *testing.B) {
	ctx := NewTestContext(b)
	for _, edge := range []int{32, 64, 128} {
		vol := GenerateVolume(volume.Cube(edge), 4321, 0, 1e7)
		b.Run(fmt.Sprintf("cpu/%d", edge), func(b *testing.B) {
			out := vol.Clone()
			b.SetBytes(int64(vol.Count() * 4))
			for i := 0; i < b.N; i++ {
				if _, err := cpuref.Normalize(vol, 0, 1, out); err != nil {
					b.Fatal(err)
				}
			}
		})
		for _, layout := range layouts {
			src := UploadOrFail(b, ctx, vol, layout)
			out, err := ctx.AllocVolume(vol.Dims(), layout)
			if err != nil {
				b.Fatal(err)
			}
			b.Run(fmt.Sprintf("%s/%d", layout, edge), func(b *testing.B) {
				b.SetBytes(int64(vol.Count() * 4))
				for i := 0; i < b.N; i++ {
					if _, err := Normalize(src, 0, 1, out, BlockShape{}); err != nil {
						b.Fatal(err)
					}
				}
			})
			out.Free()
		}
	}
}

func BenchmarkNormalizeBlockShape(b *testing.B) {
	ctx := NewTestContext(b)
	vol := GenerateVolume(volume.Cube(64), 4321, 0, 1e7)
	src := UploadOrFail(b, ctx, vol, LayoutPitchedPointer)
	for _, shape := range []BlockShape{{1, 1}, {8, 8}, {16, 16}, {32, 8}, {32, 32}} {
		b.Run(shape.String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := Normalize(src, 0, 1, src, shape); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
