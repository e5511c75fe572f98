package gudavol

import (
	"fmt"
	"strings"
	"time"

	"github.com/LynnColeArt/gudavol/volume"
)

// Strategy selects a device min/max reduction.
type Strategy int

const (
	// StrategyTree reduces one voxel per thread with a shared-memory tree
	// per block, then reduces the per-block partials in a second launch.
	StrategyTree Strategy = iota + 1
	// StrategyRowSweep lets every thread fold whole x-rows before a single
	// tree step per block; the partials are folded on the host.
	StrategyRowSweep
)

// Strategies lists every reduction strategy.
var Strategies = []Strategy{StrategyTree, StrategyRowSweep}

func (s Strategy) String() string {
	switch s {
	case StrategyTree:
		return "tree"
	case StrategyRowSweep:
		return "rowsweep"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses a strategy by name or number.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tree", "1":
		return StrategyTree, nil
	case "rowsweep", "row_sweep", "row-sweep", "2":
		return StrategyRowSweep, nil
	}
	return 0, NewInvalidArgError("ParseStrategy", fmt.Sprintf("unknown strategy %q", s))
}

// MinMaxReducer computes the global (min, max) of a device volume.
type MinMaxReducer interface {
	Reduce(dv *DeviceVolume) (volume.ScalarRange, error)
	Name() string
}

// Reducer returns the reducer implementing s.
func Reducer(s Strategy) (MinMaxReducer, error) {
	switch s {
	case StrategyTree:
		return treeReducer{}, nil
	case StrategyRowSweep:
		return rowSweepReducer{}, nil
	}
	return nil, NewInvalidArgError("Reducer", fmt.Sprintf("unknown strategy %v", s))
}

// FindMinMax reduces dv with the given strategy. Every voxel is read
// exactly once and the result equals a sequential fold bit for bit.
func FindMinMax(dv *DeviceVolume, s Strategy) (volume.ScalarRange, error) {
	r, err := Reducer(s)
	if err != nil {
		return volume.ScalarRange{}, err
	}
	return r.Reduce(dv)
}

// blockTree reduces smin/smax of length ReduceBlockSize to element 0,
// halving the stride every round. Each round is one barrier-separated
// phase of the block.
func blockTree(b *Block, smin, smax []float32) {
	for s := ReduceBlockSize / 2; s > 0; s >>= 1 {
		b.Threads(func(tid ThreadID) {
			i := tid.ThreadIdx.X
			if i < s {
				smin[i] = min(smin[i], smin[i+s])
				smax[i] = max(smax[i], smax[i+s])
			}
		})
	}
}

// reduction runs body on a private stream and turns stream faults into
// device errors. The stream is destroyed before returning.
func reduction(dv *DeviceVolume, name string, body func(ctx *Context, stream *Stream) (volume.ScalarRange, error)) (volume.ScalarRange, error) {
	op := "FindMinMax/" + name
	if err := dv.check(op); err != nil {
		return volume.ScalarRange{}, err
	}
	ctx := dv.ctx
	start := time.Now()

	stream := ctx.CreateStream()
	r, err := body(ctx, stream)
	if serr := ctx.DestroyStream(stream); serr != nil && err == nil {
		err = NewDeviceError(op, "reduction failed", serr)
	}
	if err != nil {
		ctx.log().Warn("reduction failed", "strategy", name, "dims", dv.dims, "err", err)
		return volume.ScalarRange{}, err
	}
	ctx.log().Debug("reduction done", "strategy", name, "dims", dv.dims, "range", r, "elapsed", time.Since(start))
	return r, nil
}

type treeReducer struct{}

func (treeReducer) Name() string { return StrategyTree.String() }

func (treeReducer) Reduce(dv *DeviceVolume) (volume.ScalarRange, error) {
	return reduction(dv, StrategyTree.String(), func(ctx *Context, stream *Stream) (volume.ScalarRange, error) {
		dims := dv.dims
		n := dims.Count()
		blocks := gridFor(n, ReduceBlockSize)
		w, h := dims.Width, dims.Height
		f := dv.fetcher()

		// partials: blocks mins, then blocks maxes, then the final pair
		scratch, err := ctx.Malloc((2*blocks + 2) * 4)
		if err != nil {
			return volume.ScalarRange{}, NewDeviceError("FindMinMax/tree", "allocating partials", err)
		}
		buf := scratch.Float32()
		pmin, pmax, final := buf[:blocks], buf[blocks:2*blocks], buf[2*blocks:]
		block := Dim3{X: ReduceBlockSize, Y: 1, Z: 1}
		identity := volume.Empty()

		err = ctx.LaunchBlocks(func(b *Block) {
			smin, smax := b.Shared[:ReduceBlockSize], b.Shared[ReduceBlockSize:]
			base := b.Linear() * ReduceBlockSize
			b.Threads(func(tid ThreadID) {
				i := tid.ThreadIdx.X
				v := identity
				if g := base + i; g < n {
					x, y, z := g%w, (g/w)%h, g/(w*h)
					v = v.Include(f.Fetch(x, y, z))
				}
				smin[i], smax[i] = v.Min, v.Max
			})
			blockTree(b, smin, smax)
			pmin[b.Linear()], pmax[b.Linear()] = smin[0], smax[0]
		}, Dim3{X: blocks, Y: 1, Z: 1}, block, 2*ReduceBlockSize, stream)
		if err == nil {
			// The launch boundary orders this pass after every block above.
			err = ctx.LaunchBlocks(func(b *Block) {
				smin, smax := b.Shared[:ReduceBlockSize], b.Shared[ReduceBlockSize:]
				b.Threads(func(tid ThreadID) {
					i := tid.ThreadIdx.X
					v := identity
					for j := i; j < blocks; j += ReduceBlockSize {
						v = v.Merge(volume.ScalarRange{Min: pmin[j], Max: pmax[j]})
					}
					smin[i], smax[i] = v.Min, v.Max
				})
				blockTree(b, smin, smax)
				final[0], final[1] = smin[0], smax[0]
			}, Dim3{X: 1, Y: 1, Z: 1}, block, 2*ReduceBlockSize, stream)
		}
		if err != nil {
			ctx.Free(scratch)
			return volume.ScalarRange{}, err
		}
		if err := stream.Synchronize(); err != nil {
			ctx.Free(scratch)
			return volume.ScalarRange{}, NewDeviceError("FindMinMax/tree", "reduction kernel failed", err)
		}

		var pair [2]float32
		err = ctx.Memcpy(pair[:], scratch.Offset(2*blocks*4), 8, MemcpyDeviceToHost)
		ctx.Free(scratch)
		if err != nil {
			return volume.ScalarRange{}, NewDeviceError("FindMinMax/tree", "reading result", err)
		}
		return volume.ScalarRange{Min: pair[0], Max: pair[1]}, nil
	})
}

type rowSweepReducer struct{}

func (rowSweepReducer) Name() string { return StrategyRowSweep.String() }

// rowReader is the contiguous-row fast path of pitched volumes.
type rowReader interface {
	Row(y, z int) []float32
}

func (rowSweepReducer) Reduce(dv *DeviceVolume) (volume.ScalarRange, error) {
	return reduction(dv, StrategyRowSweep.String(), func(ctx *Context, stream *Stream) (volume.ScalarRange, error) {
		dims := dv.dims
		rows := dims.Rows()
		w, h := dims.Width, dims.Height
		blocks := min(gridFor(rows, ReduceBlockSize), ctx.workers*DefaultGridMultiplier)
		stride := blocks * ReduceBlockSize
		f := dv.fetcher()
		rr, fast := f.(rowReader)

		scratch, err := ctx.Malloc(2 * blocks * 4)
		if err != nil {
			return volume.ScalarRange{}, NewDeviceError("FindMinMax/rowsweep", "allocating partials", err)
		}
		buf := scratch.Float32()
		pmin, pmax := buf[:blocks], buf[blocks:]
		identity := volume.Empty()

		err = ctx.LaunchBlocks(func(b *Block) {
			smin, smax := b.Shared[:ReduceBlockSize], b.Shared[ReduceBlockSize:]
			b.Threads(func(tid ThreadID) {
				v := identity
				for r := tid.Global(); r < rows; r += stride {
					y, z := r%h, r/h
					if fast {
						for _, x := range rr.Row(y, z) {
							v = v.Include(x)
						}
						continue
					}
					for x := 0; x < w; x++ {
						v = v.Include(f.Fetch(x, y, z))
					}
				}
				smin[tid.ThreadIdx.X], smax[tid.ThreadIdx.X] = v.Min, v.Max
			})
			blockTree(b, smin, smax)
			pmin[b.Linear()], pmax[b.Linear()] = smin[0], smax[0]
		}, Dim3{X: blocks, Y: 1, Z: 1}, Dim3{X: ReduceBlockSize, Y: 1, Z: 1}, 2*ReduceBlockSize, stream)
		if err != nil {
			ctx.Free(scratch)
			return volume.ScalarRange{}, err
		}
		if err := stream.Synchronize(); err != nil {
			ctx.Free(scratch)
			return volume.ScalarRange{}, NewDeviceError("FindMinMax/rowsweep", "reduction kernel failed", err)
		}

		host := make([]float32, 2*blocks)
		err = ctx.Memcpy(host, scratch, len(host)*4, MemcpyDeviceToHost)
		ctx.Free(scratch)
		if err != nil {
			return volume.ScalarRange{}, NewDeviceError("FindMinMax/rowsweep", "reading partials", err)
		}
		r := identity
		for i := 0; i < blocks; i++ {
			r = r.Merge(volume.ScalarRange{Min: host[i], Max: host[blocks+i]})
		}
		return r, nil
	})
}
