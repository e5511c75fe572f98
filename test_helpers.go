package gudavol

import (
	"testing"

	"github.com/LynnColeArt/gudavol/volume"
)

// MallocOrFail allocates device memory and fails the test if unsuccessful
func MallocOrFail(t testing.TB, ctx *Context, size int) DevicePtr {
	t.Helper()
	ptr, err := ctx.Malloc(size)
	if err != nil {
		t.Fatalf("Failed to allocate %d bytes: %v", size, err)
	}
	return ptr
}

// UploadOrFail uploads vol and frees it when the test ends.
func UploadOrFail(t testing.TB, ctx *Context, vol *volume.Volume, layout Layout) *DeviceVolume {
	t.Helper()
	dv, err := ctx.Upload(vol, layout)
	if err != nil {
		t.Fatalf("Upload of %v %s volume failed: %v", vol.Dims(), layout, err)
	}
	t.Cleanup(func() {
		if !dv.Freed() {
			dv.Free()
		}
	})
	return dv
}

// DownloadOrFail copies dv back to the host.
func DownloadOrFail(t testing.TB, dv *DeviceVolume) *volume.Volume {
	t.Helper()
	vol, err := dv.Download()
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	return vol
}

// SynchronizeOrFail synchronizes and fails the test if unsuccessful
func SynchronizeOrFail(t testing.TB, ctx *Context) {
	t.Helper()
	if err := ctx.Synchronize(); err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
}

// NewTestContext returns a context destroyed when the test ends.
func NewTestContext(t testing.TB, opts ...Option) *Context {
	t.Helper()
	ctx := NewContext(opts...)
	t.Cleanup(func() { ctx.Destroy() })
	return ctx
}
