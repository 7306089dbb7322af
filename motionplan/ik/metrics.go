package ik

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	spatial "github.com/kinetree/kinetree/spatialmath"
	"github.com/kinetree/kinetree/utils"
)

// ErrorModel scores how far an effector is from its target. Lower is better.
type ErrorModel struct {
	// When false only the euclidean distance is scored.
	DirectionAware bool
	// Distances are divided by this before squaring in direction aware mode.
	AverageBoneLength float64

	WeightRatio     float64
	WeightRatioNear float64
	// Fraction of AverageBoneLength under which WeightRatioNear applies.
	NearThreshold float64
}

// NewErrorModel returns the error model the solvers use for a chain with the given average bone length.
func NewErrorModel(opts *Options, averageBoneLength float64) ErrorModel {
	if averageBoneLength <= 0 {
		averageBoneLength = 1
	}
	return ErrorModel{
		DirectionAware:    opts.DirectionAware,
		AverageBoneLength: averageBoneLength,
		WeightRatio:       opts.WeightRatio,
		WeightRatioNear:   opts.WeightRatioNear,
		NearThreshold:     opts.NearThreshold,
	}
}

// PositionError returns the euclidean distance between two points.
func PositionError(effector, target r3.Vector) float64 {
	return effector.Sub(target).Norm()
}

// OrientationError returns 1 - dot(a, b)^2, which is 0 for equal rotations, 1 for rotations pi apart,
// and does not distinguish q from -q.
func OrientationError(a, b quat.Number) float64 {
	d := spatial.QuatDot(spatial.Normalize(a), spatial.Normalize(b))
	return 1 - d*d
}

// OrientationErrorDegrees returns the angle between two rotations in degrees.
func OrientationErrorDegrees(a, b quat.Number) float64 {
	d := spatial.QuatDot(spatial.Normalize(a), spatial.Normalize(b))
	return utils.RadToDeg(math.Acos(utils.Clamp(2*d*d-1, -1, 1)))
}

// Weights returns the position and orientation weights for an effector at the given distance.
func (m ErrorModel) Weights(distance float64) (float64, float64) {
	if distance < m.NearThreshold*m.AverageBoneLength {
		return m.WeightRatioNear, 1
	}
	return m.WeightRatio, 1
}

// Error scores an effector pose against a target pose using the default weights.
func (m ErrorModel) Error(effPos, targetPos r3.Vector, effOrient, targetOrient quat.Number) float64 {
	wPos, wOrient := m.Weights(PositionError(effPos, targetPos))
	return m.WeightedError(effPos, targetPos, effOrient, targetOrient, wPos, wOrient)
}

// JitteredError is Error with the position term scaled by 1+jitter.
func (m ErrorModel) JitteredError(effPos, targetPos r3.Vector, effOrient, targetOrient quat.Number, jitter float64) float64 {
	dist := PositionError(effPos, targetPos)
	if !m.DirectionAware {
		return dist * (1 + jitter)
	}
	wPos, wOrient := m.Weights(dist)
	return m.WeightedError(effPos, targetPos, effOrient, targetOrient, wPos*(1+jitter), wOrient)
}

// WeightedError scores an effector pose against a target pose. Weights are ignored unless the
// model is direction aware.
func (m ErrorModel) WeightedError(effPos, targetPos r3.Vector, effOrient, targetOrient quat.Number, wPos, wOrient float64) float64 {
	dist := PositionError(effPos, targetPos)
	if !m.DirectionAware {
		return dist
	}
	posTerm := utils.Square(dist / m.AverageBoneLength)
	return wPos*posTerm + wOrient*OrientationError(effOrient, targetOrient)
}
