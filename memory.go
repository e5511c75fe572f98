package gudavol

import (
	"fmt"
	"sync"
	"unsafe"
)

// MemcpyKind specifies the direction of memory transfer.
// All memory is CPU-accessible; the kinds are kept for CUDA compatibility
// and for the logs.
type MemcpyKind int

const (
	MemcpyHostToHost     MemcpyKind = iota // Host to host transfer
	MemcpyHostToDevice                     // Host to device transfer
	MemcpyDeviceToHost                     // Device to host transfer
	MemcpyDeviceToDevice                   // Device to device transfer
	MemcpyDefault                          // Default transfer (infer direction)
)

func (k MemcpyKind) String() string {
	switch k {
	case MemcpyHostToHost:
		return "HostToHost"
	case MemcpyHostToDevice:
		return "HostToDevice"
	case MemcpyDeviceToHost:
		return "DeviceToHost"
	case MemcpyDeviceToDevice:
		return "DeviceToDevice"
	default:
		return "Default"
	}
}

// DevicePtr represents a pointer to device memory.
type DevicePtr struct {
	ptr    unsafe.Pointer
	size   int
	offset int
}

// MemoryPool manages device memory allocation with reuse.
// It maintains a free list of previously allocated blocks to reduce
// allocation overhead, and enforces an optional byte limit.
type MemoryPool struct {
	mu         sync.Mutex
	allocated  map[uintptr]*allocation
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
	limit      int64
}

type allocation struct {
	buf  []byte // keeps the backing array reachable
	size int
	used bool
}

// NewMemoryPool creates a new memory pool.
func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		allocated: make(map[uintptr]*allocation),
	}
}

// Malloc allocates device memory of the specified size in bytes.
// The memory is zeroed and aligned to MemoryAlignment.
//
// Example:
//
//	ptr, err := ctx.Malloc(1024 * 4) // Allocate 1024 float32s
//	if err != nil {
//	    return err
//	}
//	defer ctx.Free(ptr)
func (ctx *Context) Malloc(size int) (DevicePtr, error) {
	if err := ctx.checkAlive("Malloc"); err != nil {
		return DevicePtr{}, err
	}
	ptr, err := ctx.memory.Allocate(size)
	if err != nil {
		ctx.log().Warn("allocation failed", "bytes", size, "err", err)
		return DevicePtr{}, err
	}
	return ptr, nil
}

// Free releases device memory allocated by Malloc.
// It is safe to call Free with a zero DevicePtr.
func (ctx *Context) Free(ptr DevicePtr) error {
	if ptr.ptr == nil {
		return nil
	}
	return ctx.memory.Free(ptr)
}

// Memcpy copies size bytes between host and device.
// dst and src may each be a DevicePtr or a []byte, []float32, []float64
// or []int32 slice. The copy is bounds-checked against both sides.
//
// Example:
//
//	h := make([]float32, 1024)
//	d, _ := ctx.Malloc(1024 * 4)
//	ctx.Memcpy(d, h, 1024*4, gudavol.MemcpyHostToDevice)
func (ctx *Context) Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	if size < 0 {
		return NewInvalidArgError("Memcpy", fmt.Sprintf("negative size %d", size))
	}
	d, err := bytesOf("dst", dst)
	if err != nil {
		return err
	}
	s, err := bytesOf("src", src)
	if err != nil {
		return err
	}
	if size > len(d) || size > len(s) {
		return NewMemoryError("Memcpy",
			fmt.Sprintf("%s copy of %d bytes exceeds dst %d / src %d", kind, size, len(d), len(s)), nil)
	}
	copy(d[:size], s[:size])
	return nil
}

// bytesOf returns a byte view of a Memcpy operand.
func bytesOf(which string, v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case DevicePtr:
		return b.Byte(), nil
	case []byte:
		return b, nil
	case []float32:
		return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(b))), len(b)*4), nil
	case []float64:
		return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(b))), len(b)*8), nil
	case []int32:
		return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(b))), len(b)*4), nil
	default:
		return nil, NewInvalidArgError("Memcpy", fmt.Sprintf("unsupported %s type: %T", which, v))
	}
}

// MemoryPool methods

// Allocate allocates memory from the pool
func (mp *MemoryPool) Allocate(size int) (DevicePtr, error) {
	if size <= 0 {
		return DevicePtr{}, ErrInvalidSize
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	// Round up to alignment
	alignedSize := max(size, MinAllocationSize)
	alignedSize = (alignedSize + MemoryAlignment - 1) &^ (MemoryAlignment - 1)

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		if alloc.size >= alignedSize && alloc.size <= 2*alignedSize {
			if err := mp.reserve(alloc.size); err != nil {
				return DevicePtr{}, err
			}
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true
			clear(alloc.buf)
			return DevicePtr{ptr: unsafe.Pointer(&alloc.buf[0]), size: size}, nil
		}
	}

	if err := mp.reserve(alignedSize); err != nil {
		return DevicePtr{}, err
	}

	// Over-allocate so the start can be aligned
	raw := make([]byte, alignedSize+MemoryAlignment)
	off := int(-uintptr(unsafe.Pointer(&raw[0])) & (MemoryAlignment - 1))
	buf := raw[off : off+alignedSize : off+alignedSize]

	alloc := &allocation{buf: buf, size: alignedSize, used: true}
	ptr := unsafe.Pointer(&buf[0])
	mp.allocated[uintptr(ptr)] = alloc

	return DevicePtr{ptr: ptr, size: size}, nil
}

// reserve accounts for n bytes, failing when the limit would be exceeded.
// The caller holds mp.mu.
func (mp *MemoryPool) reserve(n int) error {
	if mp.limit > 0 && mp.totalAlloc+int64(n) > mp.limit {
		return NewMemoryError("Malloc",
			fmt.Sprintf("allocating %d bytes with %d of %d in use", n, mp.totalAlloc, mp.limit),
			ErrOutOfMemory)
	}
	mp.totalAlloc += int64(n)
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}
	return nil
}

// Free returns memory to the pool
func (mp *MemoryPool) Free(ptr DevicePtr) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	alloc, ok := mp.allocated[uintptr(ptr.ptr)]
	if !ok || ptr.offset != 0 {
		return NewMemoryError("Free", "pointer not found in allocation pool", nil)
	}

	if !alloc.used {
		return ErrDoubleFree
	}

	// Mark as free and add to free list
	alloc.used = false
	mp.freeList = append(mp.freeList, alloc)
	mp.totalAlloc -= int64(alloc.size)

	return nil
}

// GetStats returns memory pool statistics
func (mp *MemoryPool) GetStats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// DevicePtr methods for convenience

// Float32 returns a float32 slice view of the device memory.
// The slice can be used directly for reading and writing data.
//
// Example:
//
//	d, _ := ctx.Malloc(1024 * 4) // Allocate for 1024 float32s
//	data := d.Float32()
//	data[0] = 3.14 // Direct access
func (d DevicePtr) Float32() []float32 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*float32)(d.ptr), d.size/4)
}

// Byte returns a byte slice view of the device memory.
// The slice covers the requested size of the allocation.
func (d DevicePtr) Byte() []byte {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(d.ptr), d.size)
}

// Offset returns a new DevicePtr offset by the given number of bytes.
// The returned DevicePtr shares the same underlying memory and cannot be
// passed to Free.
func (d DevicePtr) Offset(bytes int) DevicePtr {
	if bytes < 0 || bytes > d.size {
		panic(fmt.Sprintf("gudavol: offset %d outside allocation of %d bytes", bytes, d.size))
	}
	return DevicePtr{
		ptr:    unsafe.Add(d.ptr, bytes),
		size:   d.size - bytes,
		offset: d.offset + bytes,
	}
}

// Size returns the size in bytes of the memory region
func (d DevicePtr) Size() int {
	return d.size
}

// IsNil reports whether the pointer is the zero DevicePtr.
func (d DevicePtr) IsNil() bool {
	return d.ptr == nil
}

// PitchedPtr is a 3D allocation whose rows are padded to Pitch bytes.
// Voxel (x, y, z) lives at byte z*SlicePitch() + y*Pitch + x*4.
type PitchedPtr struct {
	Ptr    DevicePtr
	Pitch  int // Bytes per row, a multiple of PitchAlignment
	Width  int // Row width in bytes actually used
	Height int // Rows per slice
	Depth  int // Slices
}

// SlicePitch returns the byte distance between consecutive z slices.
func (p PitchedPtr) SlicePitch() int {
	return p.Pitch * p.Height
}

// Row returns the float32 view of row y of slice z, trimmed to Width.
func (p PitchedPtr) Row(y, z int) []float32 {
	off := z*p.SlicePitch() + y*p.Pitch
	return unsafe.Slice((*float32)(unsafe.Add(p.Ptr.ptr, off)), p.Width/4)
}

// MallocPitch allocates a 3D region of depth slices of height rows, each
// row widthBytes long and padded to a multiple of PitchAlignment.
func (ctx *Context) MallocPitch(widthBytes, height, depth int) (PitchedPtr, error) {
	if widthBytes <= 0 || height <= 0 || depth <= 0 {
		return PitchedPtr{}, NewInvalidArgError("MallocPitch",
			fmt.Sprintf("invalid extent %dx%dx%d", widthBytes, height, depth))
	}
	pitch := (widthBytes + PitchAlignment - 1) &^ (PitchAlignment - 1)
	ptr, err := ctx.Malloc(pitch * height * depth)
	if err != nil {
		return PitchedPtr{}, err
	}
	return PitchedPtr{Ptr: ptr, Pitch: pitch, Width: widthBytes, Height: height, Depth: depth}, nil
}

// Memcpy2D copies height rows of widthBytes bytes from src to dst,
// advancing by the respective pitches. Either side may be host or device.
func (ctx *Context) Memcpy2D(dst interface{}, dpitch int, src interface{}, spitch int, widthBytes, height int, kind MemcpyKind) error {
	if widthBytes < 0 || height < 0 || widthBytes > dpitch || widthBytes > spitch {
		return NewInvalidArgError("Memcpy2D",
			fmt.Sprintf("width %d with pitches dst %d / src %d", widthBytes, dpitch, spitch))
	}
	if widthBytes == 0 || height == 0 {
		return nil
	}
	d, err := bytesOf("dst", dst)
	if err != nil {
		return err
	}
	s, err := bytesOf("src", src)
	if err != nil {
		return err
	}
	need := func(pitch int) int { return (height-1)*pitch + widthBytes }
	if need(dpitch) > len(d) || need(spitch) > len(s) {
		return NewMemoryError("Memcpy2D",
			fmt.Sprintf("%s copy of %d rows exceeds dst %d / src %d bytes", kind, height, len(d), len(s)), nil)
	}
	for row := 0; row < height; row++ {
		copy(d[row*dpitch:row*dpitch+widthBytes], s[row*spitch:row*spitch+widthBytes])
	}
	return nil
}
