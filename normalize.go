package gudavol

import (
	"fmt"
	"math"
	"time"

	"github.com/LynnColeArt/gudavol/volume"
)

// BlockShape is the x/y thread grouping of the normalize launch. The zero
// value selects DefaultBlockShape(). It never changes the result.
type BlockShape struct {
	X, Y int
}

// Threads returns X*Y.
func (b BlockShape) Threads() int { return b.X * b.Y }

func (b BlockShape) String() string { return fmt.Sprintf("%dx%d", b.X, b.Y) }

// resolve substitutes the default for the zero value and validates the
// result.
func (b BlockShape) resolve() (BlockShape, error) {
	if b == (BlockShape{}) {
		b = DefaultBlockShape()
	}
	if b.X < 1 || b.Y < 1 || b.Threads() > MaxThreadsPerBlock {
		return b, wrapInvalidArg("Normalize", ErrInvalidBlockShape,
			fmt.Sprintf("block %v must have both sides >= 1 and at most %d threads", b, MaxThreadsPerBlock))
	}
	return b, nil
}

// Normalize rescales every voxel of src linearly into [lo, hi] relative to
// the range of src, found with the context's reduce strategy.
//
// When out is nil a new volume with the dims and layout of src is
// returned. When out is src the transform runs in place. Any other out
// must have the dims of src and may use either layout. Preconditions are
// checked and the output allocated before any kernel writes; on failure
// out is left untouched and any volume allocated here is freed.
//
// A constant src maps every voxel to lo.
func Normalize(src *DeviceVolume, lo, hi float32, out *DeviceVolume, block BlockShape) (*DeviceVolume, error) {
	const op = "Normalize"
	if err := src.check(op); err != nil {
		return nil, err
	}
	if !finite(lo) || !finite(hi) {
		return nil, NewInvalidArgError(op, fmt.Sprintf("bounds [%g, %g] must be finite", lo, hi))
	}
	block, err := block.resolve()
	if err != nil {
		return nil, err
	}
	ctx := src.ctx
	if out != nil {
		if err := out.check(op); err != nil {
			return nil, err
		}
		if out.dims != src.dims {
			return nil, wrapInvalidArg(op, volume.ErrSizeMismatch,
				fmt.Sprintf("output dims %v do not match input %v", out.dims, src.dims))
		}
		if out.ctx != ctx {
			return nil, NewInvalidArgError(op, "output belongs to a different context")
		}
	}

	allocated := false
	if out == nil {
		if out, err = ctx.AllocVolume(src.dims, src.layout); err != nil {
			return nil, err
		}
		allocated = true
	}
	fail := func(err error) (*DeviceVolume, error) {
		if allocated {
			out.Free()
		}
		ctx.log().Warn("normalize failed", "dims", src.dims, "err", err)
		return nil, err
	}

	start := time.Now()
	r, err := FindMinMax(src, ctx.strategy)
	if err != nil {
		return fail(err)
	}

	dims := src.dims
	grid := Dim3{X: gridFor(dims.Width, block.X), Y: gridFor(dims.Height, block.Y), Z: dims.Depth}
	fetch, store := src.fetcher(), out.storer()

	stream := ctx.CreateStream()
	err = ctx.LaunchStream(func(tid ThreadID) {
		x, y, z := tid.GlobalX(), tid.GlobalY(), tid.BlockIdx.Z
		if x < dims.Width && y < dims.Height {
			store.Store(x, y, z, volume.Rescale(fetch.Fetch(x, y, z), r, lo, hi))
		}
	}, grid, Dim3{X: block.X, Y: block.Y, Z: 1}, stream)
	if serr := ctx.DestroyStream(stream); serr != nil && err == nil {
		err = NewDeviceError(op, "normalize kernel failed", serr)
	}
	if err != nil {
		return fail(err)
	}

	ctx.log().Debug("normalized",
		"dims", dims,
		"layout", src.layout,
		"out_layout", out.layout,
		"in_place", out == src,
		"block", block,
		"range", r,
		"elapsed", time.Since(start))
	return out, nil
}

// NormalizeHost uploads vol in the given layout, normalizes it on the
// device and downloads the result into out. out follows the rules of
// cpuref.Normalize: nil allocates, vol runs in place, anything else must
// match the dims of vol.
func (ctx *Context) NormalizeHost(vol *volume.Volume, lo, hi float32, out *volume.Volume, layout Layout, block BlockShape) (*volume.Volume, error) {
	if vol == nil || vol.Count() == 0 {
		return nil, wrapInvalidArg("NormalizeHost", ErrEmptyVolume, "nil or empty volume")
	}
	if out != nil && out.Dims() != vol.Dims() {
		return nil, wrapInvalidArg("NormalizeHost", volume.ErrSizeMismatch,
			fmt.Sprintf("output dims %v do not match input %v", out.Dims(), vol.Dims()))
	}

	dv, err := ctx.Upload(vol, layout)
	if err != nil {
		return nil, err
	}
	defer dv.Free()

	if _, err := Normalize(dv, lo, hi, dv, block); err != nil {
		return nil, err
	}
	if out == nil {
		return dv.Download()
	}
	if err := dv.DownloadInto(out); err != nil {
		return nil, err
	}
	return out, nil
}

func finite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
