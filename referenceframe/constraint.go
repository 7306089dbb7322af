package referenceframe

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	spatial "github.com/kinetree/kinetree/spatialmath"
	"github.com/kinetree/kinetree/utils"
)

// Limit represents the limits of motion for a degree of freedom, in radians.
type Limit struct {
	Min float64
	Max float64
}

// Constraint restricts the local rotation a joint may take.
type Constraint interface {
	// ConstrainRotation receives a candidate local delta (the joint would become rotation*delta)
	// and returns the delta that keeps the joint valid. It must leave an already valid delta
	// unchanged.
	ConstrainRotation(candidate quat.Number, j *Joint) quat.Number
}

// ConstraintSampler is implemented by constraints that can draw random valid deltas, used to
// bias exploration towards the reachable set of the joint.
type ConstraintSampler interface {
	SampleRotation(j *Joint, rng *rand.Rand) quat.Number
}

// swing below this angle is numerical noise on a hinge.
const hingeSwingTolerance = 1e-9

// Hinge is a one degree of freedom constraint: the joint may only rotate about Axis, which is
// expressed in the frame of the rest rotation, within Limit.
type Hinge struct {
	rest  quat.Number
	axis  r3.Vector
	limit Limit
}

// NewHinge creates a hinge around axis for a joint whose reference rotation is rest.
func NewHinge(rest quat.Number, axis r3.Vector, limit Limit) (*Hinge, error) {
	if axis.Norm() < 1e-9 {
		return nil, errors.New("hinge axis must be non-zero")
	}
	if limit.Min > limit.Max {
		return nil, errors.Errorf("hinge min %.3f is above max %.3f", limit.Min, limit.Max)
	}
	return &Hinge{rest: spatial.Normalize(rest), axis: axis.Normalize(), limit: limit}, nil
}

// Axis returns the hinge axis in the rest frame.
func (h *Hinge) Axis() r3.Vector {
	return h.axis
}

// Limit returns the allowed angular range.
func (h *Hinge) Limit() Limit {
	return h.limit
}

// Rest returns the reference rotation the hinge angle is measured from.
func (h *Hinge) Rest() quat.Number {
	return h.rest
}

// ConstrainRotation projects the candidate onto the hinge axis and clamps its angle.
func (h *Hinge) ConstrainRotation(candidate quat.Number, j *Joint) quat.Number {
	target := quat.Mul(j.Rotation(), candidate)
	rel := quat.Mul(quat.Conj(h.rest), target)
	swing, _ := spatial.SwingTwist(rel, h.axis)
	theta := spatial.SignedTwistAngle(rel, h.axis)
	clamped := utils.Clamp(theta, h.limit.Min, h.limit.Max)
	if clamped == theta && spatial.QuatAngle(swing) < hingeSwingTolerance {
		return candidate
	}
	return h.deltaTo(j, clamped)
}

// SampleRotation draws a delta that leaves the joint at a uniformly random hinge angle.
func (h *Hinge) SampleRotation(j *Joint, rng *rand.Rand) quat.Number {
	return h.deltaTo(j, utils.SampleRandomFloat(h.limit.Min, h.limit.Max, rng))
}

func (h *Hinge) deltaTo(j *Joint, theta float64) quat.Number {
	allowed := quat.Mul(h.rest, spatial.QuatFromAxisAngle(h.axis, theta))
	return quat.Mul(quat.Conj(j.Rotation()), allowed)
}

// BallAndSocket restricts the swing of the twist axis to a cone and the twist about it to a range.
type BallAndSocket struct {
	rest      quat.Number
	twistAxis r3.Vector
	cone      float64
	twist     Limit
}

// NewBallAndSocket creates a ball and socket constraint. cone is the maximum swing in radians.
func NewBallAndSocket(rest quat.Number, twistAxis r3.Vector, cone float64, twist Limit) (*BallAndSocket, error) {
	if twistAxis.Norm() < 1e-9 {
		return nil, errors.New("twist axis must be non-zero")
	}
	if cone < 0 || cone > math.Pi {
		return nil, errors.Errorf("cone angle %.3f out of range [0, pi]", cone)
	}
	if twist.Min > twist.Max {
		return nil, errors.Errorf("twist min %.3f is above max %.3f", twist.Min, twist.Max)
	}
	return &BallAndSocket{rest: spatial.Normalize(rest), twistAxis: twistAxis.Normalize(), cone: cone, twist: twist}, nil
}

// ConstrainRotation clamps the swing and the twist of the resulting rotation independently.
func (b *BallAndSocket) ConstrainRotation(candidate quat.Number, j *Joint) quat.Number {
	target := quat.Mul(j.Rotation(), candidate)
	rel := quat.Mul(quat.Conj(b.rest), target)
	swing, _ := spatial.SwingTwist(rel, b.twistAxis)
	theta := spatial.SignedTwistAngle(rel, b.twistAxis)
	clamped := utils.Clamp(theta, b.twist.Min, b.twist.Max)
	swingAngle := spatial.QuatAngle(swing)
	if clamped == theta && swingAngle <= b.cone {
		return candidate
	}
	if swingAngle > b.cone {
		swing = spatial.ClampAngle(swing, b.cone)
	}
	allowed := quat.Mul(b.rest, quat.Mul(swing, spatial.QuatFromAxisAngle(b.twistAxis, clamped)))
	return quat.Mul(quat.Conj(j.Rotation()), allowed)
}

// SampleRotation draws a delta leaving the joint at a random swing inside the cone and a random twist.
func (b *BallAndSocket) SampleRotation(j *Joint, rng *rand.Rand) quat.Number {
	b1, b2 := spatial.OrthogonalBasis(b.twistAxis)
	phi := rng.Float64() * 2 * math.Pi
	swingAxis := b1.Mul(math.Cos(phi)).Add(b2.Mul(math.Sin(phi)))
	swing := spatial.QuatFromAxisAngle(swingAxis, rng.Float64()*b.cone)
	twist := spatial.QuatFromAxisAngle(b.twistAxis, utils.SampleRandomFloat(b.twist.Min, b.twist.Max, rng))
	allowed := quat.Mul(b.rest, quat.Mul(swing, twist))
	return quat.Mul(quat.Conj(j.Rotation()), allowed)
}
