package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a 6dof pose, position and orientation, with respect to the world frame.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type pose struct {
	point  r3.Vector
	orient Quaternion
}

// NewPose takes in a position and orientation and returns a Pose.
func NewPose(p r3.Vector, o Orientation) Pose {
	if o == nil {
		return NewPoseFromPoint(p)
	}
	return &pose{point: p, orient: Quaternion(Normalize(o.Quaternion()))}
}

// NewPoseFromQuat is NewPose for a raw quaternion.
func NewPoseFromQuat(p r3.Vector, q quat.Number) Pose {
	return &pose{point: p, orient: Quaternion(Normalize(q))}
}

// NewPoseFromPoint takes in a cartesian (x,y,z) and stores it as a vector.
// It will have the same orientation as the frame it is in.
func NewPoseFromPoint(p r3.Vector) Pose {
	return &pose{point: p, orient: Quaternion(IdentityQuat())}
}

// NewZeroPose returns a pose at (0,0,0) with the same orientation as whatever frame it is placed in.
func NewZeroPose() Pose {
	return NewPoseFromPoint(r3.Vector{})
}

func (p *pose) Point() r3.Vector {
	return p.point
}

func (p *pose) Orientation() Orientation {
	o := p.orient
	return &o
}

func (p *pose) String() string {
	aa := p.orient.AxisAngles()
	return fmt.Sprintf("{X:%.3f Y:%.3f Z:%.3f Theta:%.3f RX:%.3f RY:%.3f RZ:%.3f}",
		p.point.X, p.point.Y, p.point.Z, aa.Theta, aa.RX, aa.RY, aa.RZ)
}

// PoseAlmostEqual will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostCoincidentEps(a, b, 1e-6) && OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

// PoseAlmostCoincidentEps will return a bool describing whether 2 poses approximately occupy the same point.
func PoseAlmostCoincidentEps(a, b Pose, epsilon float64) bool {
	return R3VectorAlmostEqual(a.Point(), b.Point(), epsilon)
}
