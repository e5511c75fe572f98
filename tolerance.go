// Package gudavol tolerance-based verification for floating-point comparisons
package gudavol

import (
	"fmt"
	"math"

	"github.com/LynnColeArt/gudavol/volume"
)

// ToleranceConfig defines tolerance parameters for floating-point comparison
type ToleranceConfig struct {
	// AbsTol is the absolute tolerance for values near zero
	AbsTol float32

	// RelTol is the relative tolerance as a fraction of the larger value
	RelTol float32

	// ULPTol is the maximum allowed difference in ULPs (Units in Last Place)
	ULPTol int
}

// DefaultTolerance is used to compare normalized output against an
// independently computed reference.
func DefaultTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol: 1e-6,
		RelTol: 1e-5,
		ULPTol: 4,
	}
}

// ExactTolerance accepts only identical values (±0 compare equal).
func ExactTolerance() ToleranceConfig {
	return ToleranceConfig{}
}

// Float32NearEqual checks if two float32 values are equal within tolerance
func Float32NearEqual(a, b float32, tol ToleranceConfig) bool {
	// Check if exactly equal (handles ±0 and matching infinities)
	if a == b {
		return true
	}
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return false
	}

	diff := math.Abs(float64(a) - float64(b))
	if diff <= float64(tol.AbsTol) {
		return true
	}

	larger := math.Max(math.Abs(float64(a)), math.Abs(float64(b)))
	if diff <= larger*float64(tol.RelTol) {
		return true
	}

	return tol.ULPTol > 0 && Float32ULPDiff(a, b) <= tol.ULPTol
}

// Float32ULPDiff computes the difference in ULPs between two float32 values
func Float32ULPDiff(a, b float32) int {
	aBits := math.Float32bits(a)
	bBits := math.Float32bits(b)

	// Different signs, can't use simple subtraction
	if (aBits^bBits)&0x80000000 != 0 {
		return math.MaxInt32
	}

	if aBits > bBits {
		return int(aBits - bBits)
	}
	return int(bBits - aBits)
}

// VerificationResult summarizes a comparison of two voxel arrays
type VerificationResult struct {
	MaxAbsError float32
	MaxULPError int
	NumErrors   int
	TotalItems  int
	FirstError  int // Index of first error, -1 if none
}

// VerifyFloat32Array compares two float32 arrays and returns detailed results
func VerifyFloat32Array(expected, actual []float32, tol ToleranceConfig) VerificationResult {
	result := VerificationResult{
		TotalItems: len(expected),
		FirstError: -1,
	}

	if len(expected) != len(actual) {
		result.NumErrors = len(expected)
		return result
	}

	for i := range expected {
		if Float32NearEqual(expected[i], actual[i], tol) {
			continue
		}
		result.NumErrors++
		if result.FirstError == -1 {
			result.FirstError = i
		}
		absDiff := float32(math.Abs(float64(expected[i]) - float64(actual[i])))
		result.MaxAbsError = max(result.MaxAbsError, absDiff)
		result.MaxULPError = max(result.MaxULPError, Float32ULPDiff(expected[i], actual[i]))
	}

	return result
}

// VerifyVolume compares two host volumes voxel by voxel. Volumes with
// different dims fail on every voxel.
func VerifyVolume(expected, actual *volume.Volume, tol ToleranceConfig) VerificationResult {
	if expected.Dims() != actual.Dims() {
		return VerificationResult{NumErrors: expected.Count(), TotalItems: expected.Count(), FirstError: 0}
	}
	return VerifyFloat32Array(expected.Data(), actual.Data(), tol)
}

// OK reports whether no value was out of tolerance.
func (r VerificationResult) OK() bool {
	return r.NumErrors == 0
}

// String formats the verification result for display
func (r VerificationResult) String() string {
	if r.NumErrors == 0 {
		return "PASS: All values match within tolerance"
	}

	errorRate := float64(r.NumErrors) / float64(max(r.TotalItems, 1)) * 100
	return fmt.Sprintf("FAIL: %d/%d values differ (%.2f%%), max abs error %e, max ULP difference %d, first error at index %d",
		r.NumErrors, r.TotalItems, errorRate, r.MaxAbsError, r.MaxULPError, r.FirstError)
}
