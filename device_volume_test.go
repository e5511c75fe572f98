package gudavol

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LynnColeArt/gudavol/volume"
)

var layouts = []Layout{LayoutPitchedPointer, LayoutTexture}

func volumeDims(w, h, d int) volume.Dims {
	return volume.Dims{Width: w, Height: h, Depth: d}
}

func volumeOf(n int) volume.Dims {
	return volumeDims(n, 1, 1)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	ctx := NewTestContext(t)
	for _, layout := range layouts {
		for _, dims := range VolumeTestDims() {
			t.Run(layout.String()+"/"+dims.String(), func(t *testing.T) {
				vol := GenerateVolume(dims, 3, -1e6, 1e6)
				dv := UploadOrFail(t, ctx, vol, layout)

				assert.Equal(t, dims, dv.Dims())
				assert.Equal(t, layout, dv.Layout())
				assert.Same(t, ctx, dv.Context())

				back := DownloadOrFail(t, dv)
				if diff := cmp.Diff(vol.Data(), back.Data()); diff != "" {
					t.Fatalf("round trip differs (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestDeviceVolumeAccessors(t *testing.T) {
	ctx := NewTestContext(t)
	vol := GenerateRampVolume(volumeDims(130, 3, 2))

	p := UploadOrFail(t, ctx, vol, LayoutPitchedPointer)
	assert.Equal(t, 1024, p.Pitch())
	assert.Nil(t, p.Texture())
	assert.Equal(t, 1024*3, p.Ptr().SlicePitch())
	assert.Equal(t, vol.At(129, 2, 1), p.fetcher().Fetch(129, 2, 1))

	tx := UploadOrFail(t, ctx, vol, LayoutTexture)
	assert.Zero(t, tx.Pitch())
	require.NotNil(t, tx.Texture())
	assert.True(t, tx.Ptr().Ptr.IsNil())
	assert.Equal(t, vol.At(129, 2, 1), tx.fetcher().Fetch(129, 2, 1))
}

func TestStorerWritesOneVoxel(t *testing.T) {
	ctx := NewTestContext(t)
	dims := volumeDims(7, 5, 3)
	for _, layout := range layouts {
		dv, err := ctx.AllocVolume(dims, layout)
		require.NoError(t, err)

		dv.storer().Store(6, 4, 2, 42)
		back := DownloadOrFail(t, dv)
		for i, v := range back.Data() {
			want := float32(0)
			if i == back.Index(6, 4, 2) {
				want = 42
			}
			require.Equal(t, want, v, "%s voxel %d", layout, i)
		}
		require.NoError(t, dv.Free())
	}
}

func TestParseLayout(t *testing.T) {
	for in, want := range map[string]Layout{
		"pitched":         LayoutPitchedPointer,
		"pitched_pointer": LayoutPitchedPointer,
		" Texture ":       LayoutTexture,
	} {
		got, err := ParseLayout(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLayout("surface")
	assert.True(t, errors.Is(err, ErrInvalidLayout))
	assert.True(t, IsInvalidArgError(err))
}

func TestUploadPreconditions(t *testing.T) {
	ctx := NewTestContext(t)

	_, err := ctx.Upload(nil, LayoutTexture)
	assert.True(t, errors.Is(err, ErrEmptyVolume), "nil volume: %v", err)
	assert.True(t, IsInvalidArgError(err))

	_, err = ctx.Upload(GenerateRampVolume(volume.Cube(2)), Layout(9))
	assert.True(t, errors.Is(err, ErrInvalidLayout), "bad layout: %v", err)

	_, err = ctx.AllocVolume(volumeDims(4, 0, 4), LayoutPitchedPointer)
	assert.True(t, IsInvalidArgError(err))
}

func TestUploadOutOfMemory(t *testing.T) {
	ctx := NewTestContext(t, WithMemoryLimit(1024))
	for _, layout := range layouts {
		_, err := ctx.Upload(GenerateRampVolume(volume.Cube(16)), layout)
		require.Error(t, err)
		assert.True(t, IsDeviceError(err), "%s: %v", layout, err)
		assert.True(t, errors.Is(err, ErrOutOfMemory), "%s: %v", layout, err)
	}
	allocated, _ := ctx.MemoryStats()
	assert.Zero(t, allocated)
}

func TestFreeSemantics(t *testing.T) {
	ctx := NewTestContext(t)
	for _, layout := range layouts {
		dv, err := ctx.Upload(GenerateRampVolume(volume.Cube(3)), layout)
		require.NoError(t, err)

		require.NoError(t, dv.Free())
		assert.True(t, dv.Freed())

		err = dv.Free()
		assert.True(t, errors.Is(err, ErrDoubleFree), "%s second free: %v", layout, err)
		assert.True(t, IsDeviceError(err))

		_, err = dv.Download()
		assert.True(t, errors.Is(err, ErrVolumeFreed), "%s download: %v", layout, err)
		assert.True(t, IsInvalidArgError(err))

		_, err = FindMinMax(dv, StrategyTree)
		assert.True(t, errors.Is(err, ErrVolumeFreed), "%s reduce: %v", layout, err)
	}
	allocated, _ := ctx.MemoryStats()
	assert.Zero(t, allocated)
}

func TestDownloadIntoDimsMismatch(t *testing.T) {
	ctx := NewTestContext(t)
	dv := UploadOrFail(t, ctx, GenerateRampVolume(volume.Cube(4)), LayoutPitchedPointer)

	dst, err := volume.New(volume.Cube(5))
	require.NoError(t, err)
	err = dv.DownloadInto(dst)
	assert.True(t, errors.Is(err, volume.ErrSizeMismatch), "got %v", err)
	assert.True(t, errors.Is(dv.CopyFrom(dst), volume.ErrSizeMismatch))
}

func TestCopyFromOverwrites(t *testing.T) {
	ctx := NewTestContext(t)
	for _, layout := range layouts {
		dv := UploadOrFail(t, ctx, GenerateConstantVolume(volumeDims(5, 3, 2), 1), layout)
		next := GenerateRampVolume(volumeDims(5, 3, 2))
		require.NoError(t, dv.CopyFrom(next))
		assert.Equal(t, next.Data(), DownloadOrFail(t, dv).Data(), layout.String())
	}
}
