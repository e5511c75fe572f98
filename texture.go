package gudavol

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/LynnColeArt/gudavol/volume"
)

// AddressMode selects what a texture fetch returns outside the volume.
type AddressMode int

const (
	AddressClamp  AddressMode = iota // Clamp coordinates to the edge voxel
	AddressBorder                    // Return zero outside the volume
	AddressWrap                      // Wrap coordinates around each axis
)

func (m AddressMode) String() string {
	switch m {
	case AddressClamp:
		return "clamp"
	case AddressBorder:
		return "border"
	case AddressWrap:
		return "wrap"
	default:
		return fmt.Sprintf("AddressMode(%d)", int(m))
	}
}

// FilterMode selects how Sample combines neighbouring voxels.
type FilterMode int

const (
	FilterPoint  FilterMode = iota // Nearest voxel
	FilterLinear                   // Trilinear interpolation
)

func (m FilterMode) String() string {
	switch m {
	case FilterPoint:
		return "point"
	case FilterLinear:
		return "linear"
	default:
		return fmt.Sprintf("FilterMode(%d)", int(m))
	}
}

// TextureDesc describes how a texture is read. The zero value clamps and
// point-samples.
type TextureDesc struct {
	AddressMode AddressMode
	FilterMode  FilterMode
}

// Texture3D is a 3D float32 texture with surface writes. Voxels are stored
// block-linear: the volume is tiled into TextureBrickEdge³ bricks, bricks
// are laid out x-fastest and the voxels of a brick are contiguous. The
// extent is padded up to whole bricks; padding voxels are never returned
// by Fetch or Sample.
type Texture3D struct {
	ctx    *Context
	dims   volume.Dims
	bricks Dim3
	desc   TextureDesc
	mem    DevicePtr
	data   []float32
	freed  atomic.Bool
}

// CreateTexture3D allocates a zeroed texture of the given extent.
func (ctx *Context) CreateTexture3D(dims volume.Dims, desc TextureDesc) (*Texture3D, error) {
	if !dims.Valid() {
		return nil, wrapInvalidArg("CreateTexture3D", ErrEmptyVolume, fmt.Sprintf("invalid extent %v", dims))
	}
	switch desc.AddressMode {
	case AddressClamp, AddressBorder, AddressWrap:
	default:
		return nil, NewInvalidArgError("CreateTexture3D", fmt.Sprintf("unknown address mode %v", desc.AddressMode))
	}
	switch desc.FilterMode {
	case FilterPoint, FilterLinear:
	default:
		return nil, NewInvalidArgError("CreateTexture3D", fmt.Sprintf("unknown filter mode %v", desc.FilterMode))
	}

	bricks := Dim3{
		X: gridFor(dims.Width, TextureBrickEdge),
		Y: gridFor(dims.Height, TextureBrickEdge),
		Z: gridFor(dims.Depth, TextureBrickEdge),
	}
	mem, err := ctx.Malloc(bricks.Size() * textureBrickSize * 4)
	if err != nil {
		return nil, err
	}
	ctx.log().Debug("texture created", "dims", dims, "bricks", bricks, "address", desc.AddressMode, "filter", desc.FilterMode)
	return &Texture3D{
		ctx:    ctx,
		dims:   dims,
		bricks: bricks,
		desc:   desc,
		mem:    mem,
		data:   mem.Float32(),
	}, nil
}

// DestroyTexture3D releases the texture's storage. A second call reports a
// double free.
func (ctx *Context) DestroyTexture3D(t *Texture3D) error {
	if t.freed.Swap(true) {
		return ErrDoubleFree
	}
	t.data = nil
	return ctx.Free(t.mem)
}

// Dims returns the texture extent without brick padding.
func (t *Texture3D) Dims() volume.Dims { return t.dims }

// Desc returns the sampling description.
func (t *Texture3D) Desc() TextureDesc { return t.desc }

// offset returns the element offset of an in-bounds voxel.
func (t *Texture3D) offset(x, y, z int) int {
	brick := ((z>>textureBrickShift)*t.bricks.Y+(y>>textureBrickShift))*t.bricks.X + (x >> textureBrickShift)
	within := (z&textureBrickMask)<<(2*textureBrickShift) | (y&textureBrickMask)<<textureBrickShift | x&textureBrickMask
	return brick*textureBrickSize + within
}

// address maps i onto [0, n) according to the address mode. ok is false
// when the border colour applies.
func (t *Texture3D) address(i, n int) (int, bool) {
	if i >= 0 && i < n {
		return i, true
	}
	switch t.desc.AddressMode {
	case AddressBorder:
		return 0, false
	case AddressWrap:
		i %= n
		if i < 0 {
			i += n
		}
		return i, true
	default:
		return min(max(i, 0), n-1), true
	}
}

// Fetch returns the voxel at integer coordinates, applying the address
// mode outside the volume.
func (t *Texture3D) Fetch(x, y, z int) float32 {
	x, okx := t.address(x, t.dims.Width)
	y, oky := t.address(y, t.dims.Height)
	z, okz := t.address(z, t.dims.Depth)
	if !okx || !oky || !okz {
		return 0
	}
	return t.data[t.offset(x, y, z)]
}

// Sample reads the texture at unnormalized coordinates where voxel i
// covers [i, i+1) and its centre is at i+0.5.
func (t *Texture3D) Sample(u, v, w float32) float32 {
	if t.desc.FilterMode == FilterPoint {
		return t.Fetch(floor(u), floor(v), floor(w))
	}

	u, v, w = u-0.5, v-0.5, w-0.5
	x0, y0, z0 := floor(u), floor(v), floor(w)
	fx := u - float32(x0)
	fy := v - float32(y0)
	fz := w - float32(z0)

	lerp := func(a, b, f float32) float32 { return a + f*(b-a) }
	c00 := lerp(t.Fetch(x0, y0, z0), t.Fetch(x0+1, y0, z0), fx)
	c10 := lerp(t.Fetch(x0, y0+1, z0), t.Fetch(x0+1, y0+1, z0), fx)
	c01 := lerp(t.Fetch(x0, y0, z0+1), t.Fetch(x0+1, y0, z0+1), fx)
	c11 := lerp(t.Fetch(x0, y0+1, z0+1), t.Fetch(x0+1, y0+1, z0+1), fx)
	c0 := lerp(c00, c10, fy)
	c1 := lerp(c01, c11, fy)
	return lerp(c0, c1, fz)
}

// Store writes v at (x, y, z). Out-of-bounds writes are dropped.
func (t *Texture3D) Store(x, y, z int, v float32) {
	if uint(x) >= uint(t.dims.Width) || uint(y) >= uint(t.dims.Height) || uint(z) >= uint(t.dims.Depth) {
		return
	}
	t.data[t.offset(x, y, z)] = v
}

// CopyFromHost fills the texture from a row-major host array.
func (t *Texture3D) CopyFromHost(src []float32) error {
	if t.freed.Load() {
		return wrapInvalidArg("Texture3D.CopyFromHost", ErrVolumeFreed, "texture destroyed")
	}
	if len(src) != t.dims.Count() {
		return NewMemoryError("Texture3D.CopyFromHost",
			fmt.Sprintf("host array has %d voxels, texture %v needs %d", len(src), t.dims, t.dims.Count()), nil)
	}
	w, h := t.dims.Width, t.dims.Height
	for z := 0; z < t.dims.Depth; z++ {
		for y := 0; y < h; y++ {
			row := src[(z*h+y)*w : (z*h+y+1)*w]
			for x, v := range row {
				t.data[t.offset(x, y, z)] = v
			}
		}
	}
	return nil
}

// CopyToHost writes the texture into a row-major host array.
func (t *Texture3D) CopyToHost(dst []float32) error {
	if t.freed.Load() {
		return wrapInvalidArg("Texture3D.CopyToHost", ErrVolumeFreed, "texture destroyed")
	}
	if len(dst) != t.dims.Count() {
		return NewMemoryError("Texture3D.CopyToHost",
			fmt.Sprintf("host array has %d voxels, texture %v holds %d", len(dst), t.dims, t.dims.Count()), nil)
	}
	w, h := t.dims.Width, t.dims.Height
	for z := 0; z < t.dims.Depth; z++ {
		for y := 0; y < h; y++ {
			row := dst[(z*h+y)*w : (z*h+y+1)*w]
			for x := range row {
				row[x] = t.data[t.offset(x, y, z)]
			}
		}
	}
	return nil
}

func floor(f float32) int {
	return int(math.Floor(float64(f)))
}
