package volume

import (
	"fmt"
	"math"
)

// ScalarRange is the (min, max) pair produced by a reduction.
// Min <= Max for any volume with at least one finite voxel.
type ScalarRange struct {
	Min, Max float32
}

// Span returns Max - Min.
func (r ScalarRange) Span() float32 {
	return r.Max - r.Min
}

// Constant reports whether every voxel of the source had the same value.
func (r ScalarRange) Constant() bool {
	return r.Max == r.Min
}

// Merge folds o into r. The builtin min and max order -0 below +0, so the
// fold gives the same bits in any order.
func (r ScalarRange) Merge(o ScalarRange) ScalarRange {
	return ScalarRange{Min: min(r.Min, o.Min), Max: max(r.Max, o.Max)}
}

// Include folds a single value into r.
func (r ScalarRange) Include(v float32) ScalarRange {
	return ScalarRange{Min: min(r.Min, v), Max: max(r.Max, v)}
}

// Empty returns the identity of Merge: +Inf as Min and -Inf as Max.
func Empty() ScalarRange {
	return ScalarRange{Min: float32(math.Inf(1)), Max: float32(math.Inf(-1))}
}

func (r ScalarRange) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// Rescale maps v from src linearly onto [lo, hi]:
//
//	lo + (v - src.Min) / (src.Max - src.Min) * (hi - lo)
//
// A constant source maps every voxel to lo. src.Min maps to lo and src.Max
// to hi exactly. The interpolation runs in float64, where no difference of
// two finite float32 values can overflow, and is rounded to float32 once
// and clamped to the target bounds. Every CPU execution path shares this
// function and therefore produces bit-identical output.
func Rescale(v float32, src ScalarRange, lo, hi float32) float32 {
	switch {
	case src.Constant(), v == src.Min:
		return lo
	case v == src.Max:
		return hi
	}
	t := (float64(v) - float64(src.Min)) / (float64(src.Max) - float64(src.Min))
	r := float32(float64(lo) + float64(t*(float64(hi)-float64(lo))))
	return max(min(r, max(lo, hi)), min(lo, hi))
}
