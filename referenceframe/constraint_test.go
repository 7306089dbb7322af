package referenceframe

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	spatial "github.com/kinetree/kinetree/spatialmath"
)

func TestHinge(t *testing.T) {
	zAxis := r3.Vector{Z: 1}
	_, err := NewHinge(spatial.IdentityQuat(), r3.Vector{}, Limit{})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewHinge(spatial.IdentityQuat(), zAxis, Limit{Min: 1, Max: -1})
	test.That(t, err, test.ShouldNotBeNil)

	hinge, err := NewHinge(spatial.IdentityQuat(), zAxis, Limit{Min: -math.Pi / 2, Max: math.Pi / 3})
	test.That(t, err, test.ShouldBeNil)
	j := NewJoint("elbow", nil, r3.Vector{}, nil)

	t.Run("valid rotation is unchanged", func(t *testing.T) {
		candidate := spatial.QuatFromAxisAngle(zAxis, 0.5)
		test.That(t, hinge.ConstrainRotation(candidate, j), test.ShouldResemble, candidate)
	})

	t.Run("off axis rotation is projected", func(t *testing.T) {
		candidate := quat.Mul(spatial.QuatFromAxisAngle(zAxis, 0.5), spatial.QuatFromAxisAngle(r3.Vector{X: 1}, 0.3))
		allowed := hinge.ConstrainRotation(candidate, j)
		test.That(t, spatial.SignedTwistAngle(allowed, zAxis), test.ShouldAlmostEqual, 0.5)
		swing, _ := spatial.SwingTwist(allowed, zAxis)
		test.That(t, spatial.QuatAngle(swing), test.ShouldAlmostEqual, 0., 1e-9)
		// idempotent on its own output
		test.That(t, spatial.QuaternionAlmostEqual(hinge.ConstrainRotation(allowed, j), allowed, 1e-12), test.ShouldBeTrue)
	})

	t.Run("angle is clamped to the range", func(t *testing.T) {
		allowed := hinge.ConstrainRotation(spatial.QuatFromAxisAngle(zAxis, 2), j)
		test.That(t, spatial.SignedTwistAngle(allowed, zAxis), test.ShouldAlmostEqual, math.Pi/3)
		allowed = hinge.ConstrainRotation(spatial.QuatFromAxisAngle(zAxis, -2), j)
		test.That(t, spatial.SignedTwistAngle(allowed, zAxis), test.ShouldAlmostEqual, -math.Pi/2)
	})

	t.Run("samples stay inside the range", func(t *testing.T) {
		//nolint:gosec
		rng := rand.New(rand.NewSource(3))
		for i := 0; i < 20; i++ {
			delta := hinge.SampleRotation(j, rng)
			theta := spatial.SignedTwistAngle(quat.Mul(j.Rotation(), delta), zAxis)
			test.That(t, theta, test.ShouldBeBetweenOrEqual, -math.Pi/2-1e-9, math.Pi/3+1e-9)
		}
	})
}

func TestHingeRelativeToRest(t *testing.T) {
	zAxis := r3.Vector{Z: 1}
	rest := spatial.QuatFromAxisAngle(r3.Vector{X: 1}, math.Pi/2)
	hinge, err := NewHinge(rest, zAxis, Limit{Min: -0.2, Max: 0.2})
	test.That(t, err, test.ShouldBeNil)
	j := NewJoint("knee", nil, r3.Vector{}, (*spatial.Quaternion)(&rest))

	allowed := hinge.ConstrainRotation(spatial.IdentityQuat(), j)
	test.That(t, spatial.QuatAngle(allowed), test.ShouldAlmostEqual, 0., 1e-9)

	allowed = hinge.ConstrainRotation(spatial.QuatFromAxisAngle(zAxis, 1), j)
	result := quat.Mul(quat.Conj(rest), quat.Mul(j.Rotation(), allowed))
	test.That(t, spatial.SignedTwistAngle(result, zAxis), test.ShouldAlmostEqual, 0.2)
}

func TestBallAndSocket(t *testing.T) {
	twistAxis := r3.Vector{X: 1}
	_, err := NewBallAndSocket(spatial.IdentityQuat(), twistAxis, 4, Limit{})
	test.That(t, err, test.ShouldNotBeNil)

	bs, err := NewBallAndSocket(spatial.IdentityQuat(), twistAxis, math.Pi/6, Limit{Min: -0.1, Max: 0.1})
	test.That(t, err, test.ShouldBeNil)
	j := NewJoint("shoulder", nil, r3.Vector{}, nil)

	inside := spatial.QuatFromAxisAngle(r3.Vector{Y: 1}, 0.2)
	test.That(t, bs.ConstrainRotation(inside, j), test.ShouldResemble, inside)

	outside := quat.Mul(spatial.QuatFromAxisAngle(r3.Vector{Y: 1}, 1.2), spatial.QuatFromAxisAngle(twistAxis, 0.5))
	allowed := bs.ConstrainRotation(outside, j)
	swing, _ := spatial.SwingTwist(allowed, twistAxis)
	test.That(t, spatial.QuatAngle(swing), test.ShouldAlmostEqual, math.Pi/6)
	test.That(t, spatial.SignedTwistAngle(allowed, twistAxis), test.ShouldAlmostEqual, 0.1)
	test.That(t, spatial.QuaternionAlmostEqual(bs.ConstrainRotation(allowed, j), allowed, 1e-9), test.ShouldBeTrue)

	//nolint:gosec
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 20; i++ {
		sample := bs.SampleRotation(j, rng)
		swing, _ := spatial.SwingTwist(sample, twistAxis)
		test.That(t, spatial.QuatAngle(swing), test.ShouldBeLessThanOrEqualTo, math.Pi/6+1e-9)
	}
}
