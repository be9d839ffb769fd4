package vector

import (
	"fmt"
	"math"

	"github.com/custodia-labs/passage/internal/core/domain"
)

// UnitTolerance is the allowed deviation of a stored vector's norm from 1.
const UnitTolerance = 1e-3

// Normalize returns a unit-length copy of v.
func Normalize(v []float32) ([]float32, error) {
	n := Norm(v)
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("%w: vector contains NaN or Inf", domain.ErrInvalidInput)
	}
	if n == 0 {
		return nil, domain.ErrZeroVector
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out, nil
}

// Norm returns the Euclidean norm of v, accumulated in float64.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// IsUnit reports whether v has norm 1 within UnitTolerance.
func IsUnit(v []float32) bool {
	return math.Abs(Norm(v)-1) <= UnitTolerance
}

// Dot returns the exact inner product accumulated in float64.
// Both slices must have the same length.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Dot32 is the fast float32 inner product used while walking a graph.
func Dot32(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Cosine returns the exact similarity of two unit vectors clamped to [-1, 1].
func Cosine(a, b []float32) float64 {
	return Clamp(Dot(a, b))
}

// Clamp bounds a similarity to [-1, 1].
func Clamp(s float64) float64 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	default:
		return s
	}
}
