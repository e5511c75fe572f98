package gudavol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LynnColeArt/gudavol/volume"
)

func newTexture(t *testing.T, ctx *Context, vol *volume.Volume, desc TextureDesc) *Texture3D {
	t.Helper()
	tex, err := ctx.CreateTexture3D(vol.Dims(), desc)
	require.NoError(t, err)
	t.Cleanup(func() { ctx.DestroyTexture3D(tex) })
	require.NoError(t, tex.CopyFromHost(vol.Data()))
	return tex
}

func TestTextureRoundTrip(t *testing.T) {
	ctx := NewTestContext(t)
	for _, dims := range VolumeTestDims() {
		t.Run(dims.String(), func(t *testing.T) {
			vol := GenerateVolume(dims, 11, -100, 100)
			tex := newTexture(t, ctx, vol, TextureDesc{})

			for z := 0; z < dims.Depth; z++ {
				for y := 0; y < dims.Height; y++ {
					for x := 0; x < dims.Width; x++ {
						if got, want := tex.Fetch(x, y, z), vol.At(x, y, z); got != want {
							t.Fatalf("Fetch(%d,%d,%d) = %v, want %v", x, y, z, got, want)
						}
					}
				}
			}

			back := make([]float32, dims.Count())
			require.NoError(t, tex.CopyToHost(back))
			assert.Equal(t, vol.Data(), back)
		})
	}
}

func TestTextureBrickLayout(t *testing.T) {
	ctx := NewTestContext(t)
	tex, err := ctx.CreateTexture3D(volume.Dims{Width: 9, Height: 5, Depth: 4}, TextureDesc{})
	require.NoError(t, err)
	defer ctx.DestroyTexture3D(tex)

	assert.Equal(t, Dim3{X: 3, Y: 2, Z: 1}, tex.bricks)
	assert.Equal(t, 0, tex.offset(0, 0, 0))
	assert.Equal(t, 3, tex.offset(3, 0, 0))
	assert.Equal(t, textureBrickSize, tex.offset(4, 0, 0))
	assert.Equal(t, TextureBrickEdge, tex.offset(0, 1, 0))
	assert.Equal(t, TextureBrickEdge*TextureBrickEdge, tex.offset(0, 0, 1))
	assert.Equal(t, 3*textureBrickSize, tex.offset(0, 4, 0))
}

func TestTextureAddressModes(t *testing.T) {
	ctx := NewTestContext(t)
	vol := GenerateRampVolume(volume.Dims{Width: 4, Height: 3, Depth: 2})

	tests := []struct {
		mode    AddressMode
		x, y, z int
		want    float32
	}{
		{AddressClamp, -1, 0, 0, vol.At(0, 0, 0)},
		{AddressClamp, 9, 2, 1, vol.At(3, 2, 1)},
		{AddressClamp, 1, -5, 7, vol.At(1, 0, 1)},
		{AddressBorder, -1, 0, 0, 0},
		{AddressBorder, 2, 3, 0, 0},
		{AddressBorder, 2, 1, 1, vol.At(2, 1, 1)},
		{AddressWrap, 4, 0, 0, vol.At(0, 0, 0)},
		{AddressWrap, -1, -1, -1, vol.At(3, 2, 1)},
		{AddressWrap, 9, 7, 2, vol.At(1, 1, 0)},
	}
	for _, tt := range tests {
		tex := newTexture(t, ctx, vol, TextureDesc{AddressMode: tt.mode})
		assert.Equal(t, tt.want, tex.Fetch(tt.x, tt.y, tt.z), "%v fetch (%d,%d,%d)", tt.mode, tt.x, tt.y, tt.z)
	}
}

func TestTextureSample(t *testing.T) {
	ctx := NewTestContext(t)
	// f(x, y, z) = x + 10y + 100z is reproduced exactly by trilinear
	// interpolation inside the volume.
	vol, err := volume.New(volume.Dims{Width: 4, Height: 4, Depth: 4})
	require.NoError(t, err)
	for z := 0; z < 4; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				vol.Set(x, y, z, float32(x+10*y+100*z))
			}
		}
	}

	point := newTexture(t, ctx, vol, TextureDesc{FilterMode: FilterPoint})
	assert.Equal(t, vol.At(1, 2, 3), point.Sample(1.9, 2.1, 3.5))

	linear := newTexture(t, ctx, vol, TextureDesc{FilterMode: FilterLinear})
	assert.Equal(t, vol.At(2, 1, 0), linear.Sample(2.5, 1.5, 0.5), "voxel centre")
	assert.InDelta(t, 1.5+10*1.25+100*2, linear.Sample(2.0, 1.75, 2.5), 1e-4)

	// Clamp addressing flattens the ramp beyond the last centre.
	assert.Equal(t, vol.At(3, 0, 0), linear.Sample(3.9, 0.5, 0.5))
}

func TestTextureStore(t *testing.T) {
	ctx := NewTestContext(t)
	tex, err := ctx.CreateTexture3D(volume.Cube(5), TextureDesc{})
	require.NoError(t, err)
	defer ctx.DestroyTexture3D(tex)

	tex.Store(4, 4, 4, 9)
	assert.Equal(t, float32(9), tex.Fetch(4, 4, 4))

	// Out-of-bounds stores are dropped, including into brick padding.
	tex.Store(5, 0, 0, 1)
	tex.Store(-1, 0, 0, 1)
	for _, v := range tex.data {
		if v != 0 && v != 9 {
			t.Fatalf("stray store: %v", v)
		}
	}
}

func TestTextureErrors(t *testing.T) {
	ctx := NewTestContext(t)

	_, err := ctx.CreateTexture3D(volume.Dims{Width: 0, Height: 1, Depth: 1}, TextureDesc{})
	assert.True(t, IsInvalidArgError(err))

	_, err = ctx.CreateTexture3D(volume.Cube(2), TextureDesc{AddressMode: 7})
	assert.True(t, IsInvalidArgError(err))

	tex, err := ctx.CreateTexture3D(volume.Cube(2), TextureDesc{})
	require.NoError(t, err)
	assert.True(t, IsMemoryError(tex.CopyFromHost(make([]float32, 7))))

	require.NoError(t, ctx.DestroyTexture3D(tex))
	assert.True(t, errors.Is(ctx.DestroyTexture3D(tex), ErrDoubleFree))
	assert.True(t, errors.Is(tex.CopyToHost(make([]float32, 8)), ErrVolumeFreed))
}
