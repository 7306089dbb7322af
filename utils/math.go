// Package utils contains small numeric helpers shared across packages.
package utils

import (
	"math"
	"math/rand"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Float64AlmostEqual compares two float64s and returns if the difference between them is less than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// Clamp restricts v to the closed interval [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Square is faster than math.Pow(n, 2).
func Square(n float64) float64 {
	return n * n
}

// SampleRandomFloat samples a random float uniformly from [lo, hi) using the given rand.Rand.
func SampleRandomFloat(lo, hi float64, r *rand.Rand) float64 {
	return lo + r.Float64()*(hi-lo)
}
