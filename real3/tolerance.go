package real3

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// Tolerance defines how far apart two coordinates may be and still
// compare equal.
type Tolerance struct {
	// Abs is the absolute tolerance for values near zero
	Abs float64

	// Rel is the relative tolerance as a fraction of the larger value
	Rel float64

	// NaNEqual treats NaN as equal to NaN
	NaNEqual bool
}

// DefaultTolerance returns a tolerance suited to the precision of T.
func DefaultTolerance[T Float]() Tolerance {
	if ScalarSize[T]() == 4 {
		return Tolerance{Abs: 1e-6, Rel: 1e-5, NaNEqual: true}
	}
	return Tolerance{Abs: 1e-12, Rel: 1e-10, NaNEqual: true}
}

// NearEqualScalar checks if a and b are equal within tol.
func NearEqualScalar[T Float](a, b T, tol Tolerance) bool {
	fa, fb := float64(a), float64(b)
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return tol.NaNEqual && math.IsNaN(fa) && math.IsNaN(fb)
	}
	if fa == fb {
		return true
	}
	return scalar.EqualWithinAbsOrRel(fa, fb, tol.Abs, tol.Rel)
}

// NearEqual checks if every component of a and b is equal within tol.
func NearEqual[T Float](a, b Real3[T], tol Tolerance) bool {
	return NearEqualScalar(a.X, b.X, tol) &&
		NearEqualScalar(a.Y, b.Y, tol) &&
		NearEqualScalar(a.Z, b.Z, tol)
}

// VerificationResult summarises a comparison of two coordinate buffers.
type VerificationResult struct {
	MaxAbsError float64
	NumErrors   int
	TotalAtoms  int
	FirstError  int // Index of first differing atom, -1 if none
}

// Verify compares two coordinate buffers atom by atom.
func Verify[T Float](expected, actual Coords[T], tol Tolerance) VerificationResult {
	result := VerificationResult{
		TotalAtoms: expected.Len(),
		FirstError: -1,
	}
	if expected.Len() != actual.Len() {
		result.NumErrors = expected.Len()
		result.FirstError = 0
		return result
	}
	for i := 0; i < expected.Len(); i++ {
		e, a := expected.At(i), actual.At(i)
		if NearEqual(e, a, tol) {
			continue
		}
		result.NumErrors++
		if result.FirstError == -1 {
			result.FirstError = i
		}
		if d := math.Sqrt(float64(DistanceSq(e, a))); d > result.MaxAbsError {
			result.MaxAbsError = d
		}
	}
	return result
}

// String formats the verification result for display
func (r VerificationResult) String() string {
	if r.NumErrors == 0 {
		return "PASS: all atoms match within tolerance"
	}
	return fmt.Sprintf("FAIL: %d/%d atoms differ, max distance %e, first at atom %d",
		r.NumErrors, r.TotalAtoms, r.MaxAbsError, r.FirstError)
}
