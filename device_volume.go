package gudavol

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/LynnColeArt/gudavol/volume"
)

// Layout is the physical arrangement of a DeviceVolume.
type Layout int

const (
	// LayoutPitchedPointer stores rows in linear memory padded to
	// PitchAlignment bytes.
	LayoutPitchedPointer Layout = iota
	// LayoutTexture stores voxels in a Texture3D read through fetches.
	LayoutTexture
)

func (l Layout) String() string {
	switch l {
	case LayoutPitchedPointer:
		return "pitched"
	case LayoutTexture:
		return "texture"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// ParseLayout parses a layout name as printed by Layout.String.
// "pitched_pointer" is accepted as an alias.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pitched", "pitched_pointer", "pitchedpointer":
		return LayoutPitchedPointer, nil
	case "texture", "tex":
		return LayoutTexture, nil
	}
	return 0, wrapInvalidArg("ParseLayout", ErrInvalidLayout, fmt.Sprintf("unknown layout %q", s))
}

func (l Layout) valid() bool {
	return l == LayoutPitchedPointer || l == LayoutTexture
}

// Fetcher reads in-bounds voxels of a device volume.
type Fetcher interface {
	Fetch(x, y, z int) float32
}

// Storer writes in-bounds voxels of a device volume.
type Storer interface {
	Store(x, y, z int, v float32)
}

// DeviceVolume is a device-resident copy of a volume in one layout. It is
// owned by the caller that created it and must be released with Free.
type DeviceVolume struct {
	ctx     *Context
	dims    volume.Dims
	layout  Layout
	pitched PitchedPtr
	tex     *Texture3D
	freed   atomic.Bool
}

// Upload copies vol to the device in the requested layout.
func (ctx *Context) Upload(vol *volume.Volume, layout Layout) (*DeviceVolume, error) {
	if vol == nil || vol.Count() == 0 {
		return nil, wrapInvalidArg("Upload", ErrEmptyVolume, "nil or empty volume")
	}
	dv, err := ctx.AllocVolume(vol.Dims(), layout)
	if err != nil {
		return nil, err
	}
	if err := dv.upload(vol.Data()); err != nil {
		dv.Free()
		return nil, err
	}
	ctx.log().Debug("volume uploaded", "dims", dv.dims, "layout", layout)
	return dv, nil
}

// AllocVolume allocates a zero-filled device volume.
func (ctx *Context) AllocVolume(dims volume.Dims, layout Layout) (*DeviceVolume, error) {
	if !dims.Valid() {
		return nil, wrapInvalidArg("AllocVolume", ErrEmptyVolume, fmt.Sprintf("invalid dims %v", dims))
	}
	if !layout.valid() {
		return nil, wrapInvalidArg("AllocVolume", ErrInvalidLayout, layout.String())
	}

	dv := &DeviceVolume{ctx: ctx, dims: dims, layout: layout}
	var err error
	switch layout {
	case LayoutPitchedPointer:
		dv.pitched, err = ctx.MallocPitch(dims.Width*4, dims.Height, dims.Depth)
	case LayoutTexture:
		dv.tex, err = ctx.CreateTexture3D(dims, TextureDesc{})
	}
	if err != nil {
		return nil, NewDeviceError("AllocVolume", fmt.Sprintf("allocating %v %s volume", dims, layout), err)
	}
	return dv, nil
}

func (dv *DeviceVolume) upload(src []float32) error {
	var err error
	switch dv.layout {
	case LayoutPitchedPointer:
		row := dv.dims.Width * 4
		err = dv.ctx.Memcpy2D(dv.pitched.Ptr, dv.pitched.Pitch, src, row, row, dv.dims.Rows(), MemcpyHostToDevice)
	case LayoutTexture:
		err = dv.tex.CopyFromHost(src)
	}
	if err != nil {
		return NewDeviceError("Upload", "host to device copy failed", err)
	}
	return nil
}

// CopyFrom overwrites the device contents with vol, which must have the
// same dims.
func (dv *DeviceVolume) CopyFrom(vol *volume.Volume) error {
	if err := dv.check("CopyFrom"); err != nil {
		return err
	}
	if vol == nil || vol.Dims() != dv.dims {
		return wrapInvalidArg("CopyFrom", volume.ErrSizeMismatch,
			fmt.Sprintf("host volume does not match device dims %v", dv.dims))
	}
	return dv.upload(vol.Data())
}

// Download copies the volume back into a new host volume.
func (dv *DeviceVolume) Download() (*volume.Volume, error) {
	if err := dv.check("Download"); err != nil {
		return nil, err
	}
	vol, err := volume.New(dv.dims)
	if err != nil {
		return nil, err
	}
	if err := dv.DownloadInto(vol); err != nil {
		return nil, err
	}
	return vol, nil
}

// DownloadInto copies the volume into vol, which must have the same dims.
func (dv *DeviceVolume) DownloadInto(vol *volume.Volume) error {
	if err := dv.check("DownloadInto"); err != nil {
		return err
	}
	if vol == nil || vol.Dims() != dv.dims {
		return wrapInvalidArg("DownloadInto", volume.ErrSizeMismatch,
			fmt.Sprintf("host volume does not match device dims %v", dv.dims))
	}
	var err error
	switch dv.layout {
	case LayoutPitchedPointer:
		row := dv.dims.Width * 4
		err = dv.ctx.Memcpy2D(vol.Data(), row, dv.pitched.Ptr, dv.pitched.Pitch, row, dv.dims.Rows(), MemcpyDeviceToHost)
	case LayoutTexture:
		err = dv.tex.CopyToHost(vol.Data())
	}
	if err != nil {
		return NewDeviceError("Download", "device to host copy failed", err)
	}
	return nil
}

// Free releases the device storage. Calling Free twice reports a double
// free; any other use after Free is an invalid argument.
func (dv *DeviceVolume) Free() error {
	if dv.freed.Swap(true) {
		return ErrDoubleFree
	}
	switch dv.layout {
	case LayoutPitchedPointer:
		return dv.ctx.Free(dv.pitched.Ptr)
	default:
		return dv.ctx.DestroyTexture3D(dv.tex)
	}
}

// Freed reports whether Free has been called.
func (dv *DeviceVolume) Freed() bool { return dv.freed.Load() }

// Dims returns the voxel extent.
func (dv *DeviceVolume) Dims() volume.Dims { return dv.dims }

// Layout returns the physical layout.
func (dv *DeviceVolume) Layout() Layout { return dv.layout }

// Context returns the context that owns the storage.
func (dv *DeviceVolume) Context() *Context { return dv.ctx }

// Pitch returns the row pitch in bytes, or 0 for textures.
func (dv *DeviceVolume) Pitch() int {
	if dv.layout != LayoutPitchedPointer {
		return 0
	}
	return dv.pitched.Pitch
}

// Ptr returns the pitched allocation. It is the zero value for textures.
func (dv *DeviceVolume) Ptr() PitchedPtr { return dv.pitched }

// Texture returns the backing texture, or nil for pitched volumes.
func (dv *DeviceVolume) Texture() *Texture3D { return dv.tex }

func (dv *DeviceVolume) check(op string) error {
	if dv == nil {
		return wrapInvalidArg(op, ErrNullPointer, "nil device volume")
	}
	if dv.freed.Load() {
		return wrapInvalidArg(op, ErrVolumeFreed, fmt.Sprintf("%v %s volume", dv.dims, dv.layout))
	}
	return nil
}

// fetcher returns the read path of the layout.
func (dv *DeviceVolume) fetcher() Fetcher {
	if dv.layout == LayoutTexture {
		return dv.tex
	}
	return pitchedView{dv.pitched}
}

// storer returns the write path of the layout.
func (dv *DeviceVolume) storer() Storer {
	if dv.layout == LayoutTexture {
		return dv.tex
	}
	return pitchedView{dv.pitched}
}

// pitchedView addresses voxel (x, y, z) at z*slicePitch + y*pitch + x*4.
type pitchedView struct {
	p PitchedPtr
}

func (v pitchedView) Fetch(x, y, z int) float32 {
	return v.p.Row(y, z)[x]
}

func (v pitchedView) Store(x, y, z int, val float32) {
	v.p.Row(y, z)[x] = val
}

func (v pitchedView) Row(y, z int) []float32 {
	return v.p.Row(y, z)
}
