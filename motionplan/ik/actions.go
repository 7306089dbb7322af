package ik

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	spatial "github.com/kinetree/kinetree/spatialmath"
	"github.com/kinetree/kinetree/utils"
)

// FindLocalRotation returns the swing, in node's local frame, that turns the bone towards child onto
// the direction from node to auxChild. With enableWeight the angle is damped by how far the desired
// distance deviates from the rest length of the bone.
func FindLocalRotation(node, child, auxChild *NodeInformation, enableWeight bool) quat.Number {
	bone := child.joint.Translation()
	desired := auxChild.position.Sub(node.position)
	local := spatial.RotateVector(quat.Conj(node.orientation), desired)
	delta := spatial.QuatBetween(bone, local)
	if !enableWeight {
		return delta
	}
	rest := bone.Norm() * node.scale
	if rest < 1e-9 {
		return delta
	}
	return spatial.ScaleAngle(delta, stretchWeight(desired.Norm(), rest))
}

func stretchWeight(distance, rest float64) float64 {
	return math.Pow(defaultStretchWeightBase, -math.Abs(distance-rest)/rest)
}

// FindCCDTwist returns the rotation about the bone from node to child that best turns the effector
// towards target, clamped to maxAngle. Identity is returned when either the effector or the target
// lies too close to the bone axis to define an angle.
func FindCCDTwist(node, child, effector *NodeInformation, target r3.Vector, maxAngle float64) quat.Number {
	axis, angle, _ := ccdTwistAngle(node, child, effector, target, maxAngle)
	return spatial.QuatFromAxisAngle(axis, angle)
}

func ccdTwistAngle(node, child, effector *NodeInformation, target r3.Vector, maxAngle float64) (r3.Vector, float64, bool) {
	axisLocal := child.joint.Translation()
	if axisLocal.Norm() < 1e-9 {
		return r3.Vector{}, 0, false
	}
	axisLocal = axisLocal.Normalize()
	axis := spatial.RotateVector(node.orientation, axisLocal).Normalize()

	toEffector := effector.position.Sub(node.position)
	toTarget := target.Sub(node.position)
	effProj := toEffector.Sub(axis.Mul(toEffector.Dot(axis)))
	targetProj := toTarget.Sub(axis.Mul(toTarget.Dot(axis)))
	if toEffector.Norm() < 1e-9 || toTarget.Norm() < 1e-9 ||
		effProj.Norm() < defaultDegenerateProjection*toEffector.Norm() ||
		targetProj.Norm() < defaultDegenerateProjection*toTarget.Norm() {
		return axisLocal, 0, false
	}
	angle := math.Atan2(axis.Dot(effProj.Cross(targetProj)), effProj.Dot(targetProj))
	return axisLocal, utils.Clamp(angle, -maxAngle, maxAngle), true
}

// FindTwisting returns the rotation about the bone from node to child that best matches the
// effector orientation to target, clamped to maxAngle. Angles under noise are dropped.
func FindTwisting(node, child, effector *NodeInformation, target quat.Number, maxAngle, noise float64) quat.Number {
	axis, angle, _ := orientationTwistAngle(node, child, effector, target, maxAngle, noise)
	return spatial.QuatFromAxisAngle(axis, angle)
}

func orientationTwistAngle(
	node, child, effector *NodeInformation,
	target quat.Number,
	maxAngle, noise float64,
) (r3.Vector, float64, bool) {
	axisLocal := child.joint.Translation()
	if axisLocal.Norm() < 1e-9 {
		return r3.Vector{}, 0, false
	}
	axisLocal = axisLocal.Normalize()
	delta := spatial.Compose(quat.Conj(node.orientation), target, quat.Conj(effector.orientation), node.orientation)
	angle := spatial.SignedTwistAngle(delta, axisLocal)
	if math.Abs(angle) < noise {
		return axisLocal, 0, false
	}
	return axisLocal, utils.Clamp(angle, -maxAngle, maxAngle), true
}

// FindTwist combines the positional and the orientation twist. Without direction awareness, or when
// the orientation twist is under the noise floor, only the positional twist is used.
func FindTwist(node, child, effector *NodeInformation, target spatial.Pose, opts *Options) quat.Number {
	axis, ccd, ccdOK := ccdTwistAngle(node, child, effector, target.Point(), opts.maxStepAngle())
	if !opts.DirectionAware {
		return spatial.QuatFromAxisAngle(axis, ccd)
	}
	_, orient, orientOK := orientationTwistAngle(
		node, child, effector, target.Orientation().Quaternion(), opts.maxStepAngle(), opts.twistNoise())
	switch {
	case ccdOK && orientOK:
		// both angles are about the same axis, so opposing signs cancel
		return spatial.QuatFromAxisAngle(axis, (ccd+orient)/2)
	case orientOK:
		return spatial.QuatFromAxisAngle(axis, orient)
	default:
		return spatial.QuatFromAxisAngle(axis, ccd)
	}
}

// ApplySwingTwist rotates node so child heads towards auxChild, then twists it about the bone when
// twist is enabled. The caches of node and effector are kept current. It returns the local delta
// applied to node overall.
func ApplySwingTwist(node, child, auxChild, effector *NodeInformation, target spatial.Pose, opts *Options) quat.Number {
	before := node.joint.Rotation()
	swing := FindLocalRotation(node, child, auxChild, opts.EnableWeight)
	if opts.Smooth {
		swing = spatial.ClampAngle(swing, opts.smoothAngle())
	}
	node.RotateAndUpdateCache(swing, true, effector)

	if opts.EnableTwist {
		twist := FindTwist(node, child, effector, target, opts)
		if opts.Smooth {
			twist = spatial.ClampAngle(twist, opts.smoothAngle())
		}
		node.RotateAndUpdateCache(twist, true, effector)
	}
	return quat.Mul(quat.Conj(before), node.joint.Rotation())
}
