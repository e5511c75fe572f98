package gudavol

import (
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// Block is the execution state of one thread block. The threads of a
// block run in phases: every call to Threads executes the phase for all
// threads of the block, and returning from Threads is the barrier between
// phases. Shared is the block's shared memory and is zeroed at launch.
type Block struct {
	Idx    Dim3
	Dim    Dim3
	Grid   Dim3
	Shared []float32
}

// BlockFunc is a cooperative kernel executed once per block.
type BlockFunc func(b *Block)

// Threads runs fn for every thread of the block, in threadIdx order.
func (b *Block) Threads(fn KernelFunc) {
	tid := ThreadID{BlockIdx: b.Idx, BlockDim: b.Dim, GridDim: b.Grid}
	for z := 0; z < b.Dim.Z; z++ {
		for y := 0; y < b.Dim.Y; y++ {
			for x := 0; x < b.Dim.X; x++ {
				tid.ThreadIdx = Dim3{X: x, Y: y, Z: z}
				fn(tid)
			}
		}
	}
}

// Linear returns the linear block index within the grid.
func (b *Block) Linear() int {
	return (b.Idx.Z*b.Grid.Y+b.Idx.Y)*b.Grid.X + b.Idx.X
}

// LinearThread returns the linear index of tid within its block.
func LinearThread(tid ThreadID) int {
	return (tid.ThreadIdx.Z*tid.BlockDim.Y+tid.ThreadIdx.Y)*tid.BlockDim.X + tid.ThreadIdx.X
}

func validateLaunch(op string, grid, block Dim3, sharedFloats int) error {
	if grid.X <= 0 || grid.Y <= 0 || grid.Z <= 0 {
		return NewInvalidArgError(op, fmt.Sprintf("invalid grid %v", grid))
	}
	if block.X <= 0 || block.Y <= 0 || block.Z <= 0 {
		return NewInvalidArgError(op, fmt.Sprintf("invalid block %v", block))
	}
	if block.Size() > MaxThreadsPerBlock {
		return NewInvalidArgError(op,
			fmt.Sprintf("block %v has %d threads, limit is %d", block, block.Size(), MaxThreadsPerBlock))
	}
	if sharedFloats < 0 {
		return NewInvalidArgError(op, "negative shared memory size")
	}
	return nil
}

// launchInternal validates the launch configuration synchronously and
// enqueues the grid on the stream. Blocks are spread over the context's
// workers; a panic inside a block becomes an execution error reported by
// the stream's next Synchronize.
func (ctx *Context) launchInternal(op string, grid, block Dim3, sharedFloats int, stream *Stream, fn BlockFunc) error {
	if err := ctx.checkAlive(op); err != nil {
		return err
	}
	if err := validateLaunch(op, grid, block, sharedFloats); err != nil {
		return err
	}
	if stream == nil {
		stream = ctx.defaultStream
	}

	gridSize := grid.Size()
	numWorkers := ctx.workers
	if gridSize < numWorkers {
		numWorkers = gridSize
	}

	// Cache-aware scheduling: each worker processes a contiguous run of
	// blocks
	blocksPerWorker := (gridSize + numWorkers - 1) / numWorkers
	log := ctx.log()

	stream.Submit(func() error {
		var g errgroup.Group
		for w := 0; w < numWorkers; w++ {
			start := w * blocksPerWorker
			end := min(start+blocksPerWorker, gridSize)
			g.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						log.Error("kernel panic", "op", op, "panic", r, "stack", string(debug.Stack()))
						err = NewExecutionError(op, fmt.Sprintf("kernel panic: %v", r), ErrKernelFailed)
					}
				}()
				b := &Block{Dim: block, Grid: grid}
				if sharedFloats > 0 {
					b.Shared = make([]float32, sharedFloats)
				}
				for id := start; id < end; id++ {
					b.Idx = linearTo3D(id, grid)
					clear(b.Shared)
					fn(b)
				}
				return nil
			})
		}
		return g.Wait()
	})
	return nil
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}

// gridFor returns the number of blocks of size block needed to cover n.
func gridFor(n, block int) int {
	return (n + block - 1) / block
}
