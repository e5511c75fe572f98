// Package gudavol configuration constants
package gudavol

// Thread and block dimensions
const (
	// Threads per block for both reduction strategies. Must be a power
	// of two; the intra-block tree halves the stride every round.
	ReduceBlockSize = 256

	// Maximum threads per block (CUDA compatibility)
	MaxThreadsPerBlock = 1024

	// Default grid size multiplier: the row-sweep reduction launches
	// workers*DefaultGridMultiplier blocks at most.
	DefaultGridMultiplier = 4
)

// Memory pool parameters
const (
	// Minimum allocation size to prevent fragmentation
	MinAllocationSize = 64

	// Memory alignment for allocations
	MemoryAlignment = 64

	// Row alignment of pitched allocations in bytes
	PitchAlignment = 512
)

// Texture layout parameters
const (
	// Edge of the cubic bricks a 3D texture is tiled into
	TextureBrickEdge = 4

	textureBrickShift = 2
	textureBrickMask  = TextureBrickEdge - 1
	textureBrickSize  = TextureBrickEdge * TextureBrickEdge * TextureBrickEdge
)

// Environment overrides read once when the default context is created
const (
	// EnvWorkers sets the number of worker goroutines per launch
	EnvWorkers = "GUDAVOL_WORKERS"

	// EnvMemoryLimit caps device memory in bytes
	EnvMemoryLimit = "GUDAVOL_MEMORY_LIMIT"
)

// DefaultBlockShape returns the shape Normalize uses when the caller passes
// the zero BlockShape.
func DefaultBlockShape() BlockShape { return BlockShape{X: 16, Y: 16} }
