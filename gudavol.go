package gudavol

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// Device represents a compute device. In gudavol this is the CPU with its
// cores and available memory.
type Device struct {
	ID         int      // Unique device identifier
	Name       string   // Human-readable device name
	TotalMem   uint64   // Memory available to the pool in bytes
	NumCores   int      // Number of CPU cores
	MaxThreads int      // Maximum concurrent threads
	Features   []string // SIMD features of the host
}

// Context represents an execution context. It owns the memory pool and
// the streams; a Context must be destroyed when no longer needed.
type Context struct {
	device   *Device
	memory   *MemoryPool
	workers  int
	strategy Strategy
	logger   *slog.Logger

	mu            sync.Mutex
	streams       map[int]*Stream
	streamID      int32
	defaultStream *Stream
	destroyed     bool
}

// Option configures a Context.
type Option func(*Context)

// WithMemoryLimit caps the bytes the context may allocate. Allocations
// beyond the cap fail with ErrOutOfMemory. Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(ctx *Context) {
		ctx.memory.limit = bytes
		if bytes > 0 {
			ctx.device.TotalMem = uint64(bytes)
		}
	}
}

// WithWorkers sets how many goroutines execute the blocks of a launch.
func WithWorkers(n int) Option {
	return func(ctx *Context) {
		if n > 0 {
			ctx.workers = n
		}
	}
}

// WithLogger attaches a logger to the context.
func WithLogger(l *slog.Logger) Option {
	return func(ctx *Context) {
		ctx.logger = l
	}
}

// WithReduceStrategy selects the reduction used by Normalize.
func WithReduceStrategy(s Strategy) Option {
	return func(ctx *Context) {
		ctx.strategy = s
	}
}

// Dim3 represents 3D dimensions for grid and block configurations.
type Dim3 struct {
	X, Y, Z int
}

// Size returns X*Y*Z.
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// ThreadID identifies a thread's position within the execution hierarchy,
// with the semantics of blockIdx, threadIdx, blockDim and gridDim.
type ThreadID struct {
	BlockIdx  Dim3 // Block index within the grid
	ThreadIdx Dim3 // Thread index within the block
	BlockDim  Dim3 // Dimensions of the block
	GridDim   Dim3 // Dimensions of the grid
}

// GlobalX returns blockIdx.x*blockDim.x + threadIdx.x.
func (t ThreadID) GlobalX() int {
	return t.BlockIdx.X*t.BlockDim.X + t.ThreadIdx.X
}

// GlobalY returns blockIdx.y*blockDim.y + threadIdx.y.
func (t ThreadID) GlobalY() int {
	return t.BlockIdx.Y*t.BlockDim.Y + t.ThreadIdx.Y
}

// GlobalZ returns blockIdx.z*blockDim.z + threadIdx.z.
func (t ThreadID) GlobalZ() int {
	return t.BlockIdx.Z*t.BlockDim.Z + t.ThreadIdx.Z
}

// Global returns the linear thread index of a 1D launch.
func (t ThreadID) Global() int {
	return t.GlobalX()
}

// KernelFunc is a per-thread kernel. It must be safe to call concurrently
// from several goroutines.
type KernelFunc func(tid ThreadID)

// Global runtime state
var (
	defaultContext *Context
	initOnce       sync.Once
)

// Default returns the process-wide context, creating it on first use.
// GUDAVOL_WORKERS and GUDAVOL_MEMORY_LIMIT are honoured here.
func Default() *Context {
	initOnce.Do(func() {
		var opts []Option
		if v, err := strconv.Atoi(os.Getenv(EnvWorkers)); err == nil {
			opts = append(opts, WithWorkers(v))
		}
		if v, err := strconv.ParseInt(os.Getenv(EnvMemoryLimit), 10, 64); err == nil {
			opts = append(opts, WithMemoryLimit(v))
		}
		defaultContext = NewContext(opts...)
	})
	return defaultContext
}

// NewContext creates an execution context on the CPU device.
func NewContext(opts ...Option) *Context {
	ctx := &Context{
		device: &Device{
			ID:         0,
			Name:       "CPU",
			TotalMem:   getSystemMemory(),
			NumCores:   runtime.NumCPU(),
			MaxThreads: runtime.NumCPU() * 2, // Hyperthreading
			Features:   cpuFeatures.List(),
		},
		memory:   NewMemoryPool(),
		workers:  runtime.GOMAXPROCS(0),
		strategy: StrategyTree,
		streams:  make(map[int]*Stream),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	ctx.defaultStream = ctx.CreateStream()
	ctx.log().Debug("context created",
		"workers", ctx.workers,
		"memory_limit", ctx.memory.limit,
		"features", ctx.device.Features)
	return ctx
}

// Malloc allocates device memory on the default context.
func Malloc(size int) (DevicePtr, error) {
	return Default().Malloc(size)
}

// Free releases device memory allocated by Malloc.
func Free(ptr DevicePtr) error {
	return Default().Free(ptr)
}

// Memcpy copies memory between host and device on the default context.
func Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	return Default().Memcpy(dst, src, size, kind)
}

// Launch executes a kernel on the default stream of the default context.
func Launch(kernel KernelFunc, grid, block Dim3) error {
	return Default().Launch(kernel, grid, block)
}

// Synchronize waits for all work of the default context.
func Synchronize() error {
	return Default().Synchronize()
}

// GetDevice returns the current device information.
func GetDevice() *Device {
	return Default().device
}

// SetDevice sets the active device. Only device 0 exists.
func SetDevice(id int) error {
	if id != 0 {
		return ErrInvalidDevice
	}
	return nil
}

// GetDeviceCount returns the number of available devices.
func GetDeviceCount() int {
	return 1 // Only CPU
}

// Context methods

// Device returns the device the context runs on.
func (ctx *Context) Device() *Device {
	return ctx.device
}

// Workers returns the number of goroutines used per launch.
func (ctx *Context) Workers() int {
	return ctx.workers
}

// ReduceStrategy returns the strategy Normalize reduces with.
func (ctx *Context) ReduceStrategy() Strategy {
	return ctx.strategy
}

// MemoryStats returns bytes currently allocated and the peak.
func (ctx *Context) MemoryStats() (allocated, peak int64) {
	return ctx.memory.GetStats()
}

func (ctx *Context) log() *slog.Logger {
	if ctx.logger != nil {
		return ctx.logger
	}
	return slogger()
}

// CreateStream creates a new execution stream
func (ctx *Context) CreateStream() *Stream {
	id := int(atomic.AddInt32(&ctx.streamID, 1))
	stream := &Stream{
		id:    id,
		tasks: make(chan func() error, 1000),
		done:  make(chan struct{}),
	}

	// Start worker goroutine for stream
	go stream.worker()

	ctx.mu.Lock()
	ctx.streams[id] = stream
	ctx.mu.Unlock()
	return stream
}

// DestroyStream waits for the stream's queued work and stops its worker.
func (ctx *Context) DestroyStream(s *Stream) error {
	ctx.mu.Lock()
	delete(ctx.streams, s.id)
	ctx.mu.Unlock()
	err := s.Synchronize()
	s.close()
	return err
}

// Launch executes a kernel on the default stream
func (ctx *Context) Launch(kernel KernelFunc, grid, block Dim3) error {
	return ctx.LaunchStream(kernel, grid, block, ctx.defaultStream)
}

// LaunchStream executes a per-thread kernel on a specific stream
func (ctx *Context) LaunchStream(kernel KernelFunc, grid, block Dim3, stream *Stream) error {
	return ctx.launchInternal("Launch", grid, block, 0, stream, func(b *Block) {
		b.Threads(kernel)
	})
}

// LaunchBlocks executes a cooperative block kernel on a specific stream.
// Each block receives sharedFloats float32 values of shared memory.
func (ctx *Context) LaunchBlocks(fn BlockFunc, grid, block Dim3, sharedFloats int, stream *Stream) error {
	return ctx.launchInternal("LaunchBlocks", grid, block, sharedFloats, stream, fn)
}

// Synchronize waits for all streams to complete and returns the first
// error raised by any of them since the previous Synchronize.
func (ctx *Context) Synchronize() error {
	ctx.mu.Lock()
	streams := make([]*Stream, 0, len(ctx.streams))
	for _, s := range ctx.streams {
		streams = append(streams, s)
	}
	ctx.mu.Unlock()

	var first error
	for _, stream := range streams {
		if err := stream.Synchronize(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Destroy waits for outstanding work and stops every stream. The context
// must not be used afterwards.
func (ctx *Context) Destroy() error {
	ctx.mu.Lock()
	if ctx.destroyed {
		ctx.mu.Unlock()
		return ErrContextDestroyed
	}
	ctx.destroyed = true
	streams := ctx.streams
	ctx.streams = make(map[int]*Stream)
	ctx.mu.Unlock()

	var first error
	for _, s := range streams {
		if err := s.Synchronize(); err != nil && first == nil {
			first = err
		}
		s.close()
	}
	return first
}

func (ctx *Context) checkAlive(op string) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.destroyed {
		return NewDeviceError(op, "context destroyed", ErrContextDestroyed)
	}
	return nil
}

// Stream represents an ordered sequence of operations that execute
// asynchronously. Operations within a stream execute in order, but
// operations in different streams may execute concurrently.
type Stream struct {
	id        int
	tasks     chan func() error
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// ID returns the stream identifier.
func (s *Stream) ID() int {
	return s.id
}

// Submit enqueues a task.
func (s *Stream) Submit(task func() error) {
	s.wg.Add(1)
	s.tasks <- task
}

// worker processes tasks for a stream
func (s *Stream) worker() {
	for task := range s.tasks {
		if err := task(); err != nil {
			s.mu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.mu.Unlock()
		}
		s.wg.Done()
	}
	close(s.done)
}

// Synchronize waits for all tasks in the stream to complete and returns
// the first task error since the last call.
func (s *Stream) Synchronize() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.err
	s.err = nil
	return err
}

func (s *Stream) close() {
	s.closeOnce.Do(func() {
		close(s.tasks)
		<-s.done
	})
}

// getSystemMemory returns the memory budget reported for the device
func getSystemMemory() uint64 {
	// This is a simplified version
	return 16 * 1024 * 1024 * 1024 // Default to 16GB
}

func (d *Device) String() string {
	return fmt.Sprintf("%s (id %d, %d cores, %d MiB)", d.Name, d.ID, d.NumCores, d.TotalMem>>20)
}
