package gudavol

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks available CPU instruction set extensions of the
// host executing the kernels.
type CPUFeatures struct {
	HasSSE4    bool
	HasAVX     bool
	HasAVX2    bool
	HasAVX512F bool
	HasFMA     bool
	HasNEON    bool
	HasSVE     bool
}

// Global CPU feature detection
var cpuFeatures CPUFeatures

func init() {
	detectCPUFeatures()
}

// detectCPUFeatures populates the global cpuFeatures struct
func detectCPUFeatures() {
	cpuFeatures = CPUFeatures{
		HasSSE4:    cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX:     cpu.X86.HasAVX,
		HasAVX2:    cpu.X86.HasAVX2,
		HasAVX512F: cpu.X86.HasAVX512F,
		HasFMA:     cpu.X86.HasFMA,
		// ASIMD is mandatory on arm64
		HasNEON: runtime.GOARCH == "arm64" || cpu.ARM64.HasASIMD,
		HasSVE:  cpu.ARM64.HasSVE,
	}
}

// List returns the names of the detected features.
func (f CPUFeatures) List() []string {
	var features []string
	if f.HasSSE4 {
		features = append(features, "SSE4")
	}
	if f.HasAVX {
		features = append(features, "AVX")
	}
	if f.HasAVX2 {
		features = append(features, "AVX2")
	}
	if f.HasAVX512F {
		features = append(features, "AVX512F")
	}
	if f.HasFMA {
		features = append(features, "FMA")
	}
	if f.HasNEON {
		features = append(features, "NEON")
	}
	if f.HasSVE {
		features = append(features, "SVE")
	}
	return features
}

// GetCPUFeatures returns the features detected at startup.
func GetCPUFeatures() CPUFeatures {
	return cpuFeatures
}
