package volume

// Fillers used by tests and the benchmark harness. All of them take an
// explicit seed; there is no package-level generator state.

// lcg advances Knuth's MMIX linear congruential generator.
func lcg(state uint64) uint64 {
	return state*6364136223846793005 + 1442695040888963407
}

// FillRamp writes 0, 1, 2, ... in flat index order.
func FillRamp(v *Volume) {
	for i := range v.data {
		v.data[i] = float32(i)
	}
}

// FillConstant sets every voxel to c.
func FillConstant(v *Volume, c float32) {
	for i := range v.data {
		v.data[i] = c
	}
}

// FillUniform fills v with deterministic values in [lo, hi).
func FillUniform(v *Volume, seed uint64, lo, hi float32) {
	state := seed
	scale := hi - lo
	for i := range v.data {
		state = lcg(state)
		// top 24 bits give an exactly representable fraction in [0, 1)
		u := float32(state>>40) / float32(1<<24)
		v.data[i] = lo + u*scale
	}
}

// FillUniformInts fills v with deterministic integers in [0, max]
// converted to float32, the distribution used by the volume benchmarks.
func FillUniformInts(v *Volume, seed uint64, max int) {
	state := seed
	n := uint64(max) + 1
	for i := range v.data {
		state = lcg(state)
		v.data[i] = float32((state >> 33) % n)
	}
}
