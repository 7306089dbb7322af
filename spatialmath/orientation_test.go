package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

// represent a 45 degree rotation around the x axis in all the representations
var (
	th    = math.Pi / 4.
	q45x  = quat.Number{Real: math.Cos(th / 2.), Imag: math.Sin(th / 2.), Jmag: 0, Kmag: 0}
	aa45x = &R4AA{th, 1., 0., 0.}
)

func TestZeroOrientation(t *testing.T) {
	zero := NewZeroOrientation()
	test.That(t, zero.AxisAngles(), test.ShouldResemble, NewR4AA())
	test.That(t, zero.Quaternion(), test.ShouldResemble, quat.Number{Real: 1, Imag: 0, Jmag: 0, Kmag: 0})
}

func TestAxisAngleRoundTrip(t *testing.T) {
	q := aa45x.ToQuat()
	test.That(t, q.Real, test.ShouldAlmostEqual, q45x.Real)
	test.That(t, q.Imag, test.ShouldAlmostEqual, q45x.Imag)

	aa := QuatToR4AA(q45x)
	test.That(t, aa.Theta, test.ShouldAlmostEqual, aa45x.Theta)
	test.That(t, aa.RX, test.ShouldAlmostEqual, 1.)

	// the antipodal quaternion is the same rotation
	aa = QuatToR4AA(quat.Scale(-1, q45x))
	test.That(t, aa.Theta, test.ShouldAlmostEqual, aa45x.Theta)
	test.That(t, aa.RX, test.ShouldAlmostEqual, 1.)

	test.That(t, R3ToR4(r3.Vector{}), test.ShouldResemble, NewR4AA())
	test.That(t, (&R4AA{Theta: 1}).ToQuat(), test.ShouldResemble, IdentityQuat())
}

func TestOrientationBetween(t *testing.T) {
	o1 := &R4AA{Theta: 0.3, RZ: 1}
	o2 := &R4AA{Theta: 0.8, RZ: 1}
	between := OrientationBetween(o1, o2)
	test.That(t, between.AxisAngles().Theta, test.ShouldAlmostEqual, 0.5)
	test.That(t, between.AxisAngles().RZ, test.ShouldAlmostEqual, 1.)
	test.That(t, OrientationAlmostEqual(o1, o1), test.ShouldBeTrue)
	test.That(t, OrientationAlmostEqual(o1, o2), test.ShouldBeFalse)
}

func TestRotateVector(t *testing.T) {
	q := QuatFromAxisAngle(r3.Vector{Z: 1}, math.Pi/2)
	v := RotateVector(q, r3.Vector{X: 1})
	test.That(t, R3VectorAlmostEqual(v, r3.Vector{Y: 1}, 1e-9), test.ShouldBeTrue)

	v = RotateVector(Compose(q, q), r3.Vector{X: 1})
	test.That(t, R3VectorAlmostEqual(v, r3.Vector{X: -1}, 1e-9), test.ShouldBeTrue)

	v = RotateVector(Inverse(q), r3.Vector{X: 1})
	test.That(t, R3VectorAlmostEqual(v, r3.Vector{Y: -1}, 1e-9), test.ShouldBeTrue)
}

func TestQuatBetween(t *testing.T) {
	for _, tc := range []struct {
		name     string
		from, to r3.Vector
	}{
		{"orthogonal", r3.Vector{X: 1}, r3.Vector{Y: 2}},
		{"oblique", r3.Vector{X: 1, Y: 1}, r3.Vector{Z: 3, X: -1}},
		{"parallel", r3.Vector{X: 2}, r3.Vector{X: 5}},
		{"antiparallel", r3.Vector{Y: 1}, r3.Vector{Y: -4}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			q := QuatBetween(tc.from, tc.to)
			got := RotateVector(q, tc.from.Normalize())
			test.That(t, R3VectorAlmostEqual(got, tc.to.Normalize(), 1e-9), test.ShouldBeTrue)
		})
	}
	test.That(t, QuatBetween(r3.Vector{}, r3.Vector{X: 1}), test.ShouldResemble, IdentityQuat())
}

func TestClampAndScaleAngle(t *testing.T) {
	q := QuatFromAxisAngle(r3.Vector{X: 1, Y: 1}, 1.0)
	test.That(t, QuatAngle(ClampAngle(q, 0.25)), test.ShouldAlmostEqual, 0.25)
	test.That(t, QuatAngle(ClampAngle(q, 2)), test.ShouldAlmostEqual, 1.)
	test.That(t, QuatAngle(ScaleAngle(q, 0.5)), test.ShouldAlmostEqual, 0.5)
	axis := QuatToR4AA(ClampAngle(q, 0.25)).Axis()
	test.That(t, R3VectorAlmostEqual(axis, r3.Vector{X: 1, Y: 1}.Normalize(), 1e-9), test.ShouldBeTrue)
}

func TestSwingTwist(t *testing.T) {
	axis := r3.Vector{Z: 1}
	twistIn := QuatFromAxisAngle(axis, 0.7)
	swingIn := QuatFromAxisAngle(r3.Vector{X: 1}, 0.4)
	q := quat.Mul(swingIn, twistIn)

	swing, twist := SwingTwist(q, axis)
	test.That(t, QuaternionAlmostEqual(quat.Mul(swing, twist), q, 1e-9), test.ShouldBeTrue)
	test.That(t, QuaternionAlmostEqual(twist, twistIn, 1e-9), test.ShouldBeTrue)
	test.That(t, SignedTwistAngle(q, axis), test.ShouldAlmostEqual, 0.7)
	test.That(t, SignedTwistAngle(Inverse(twistIn), axis), test.ShouldAlmostEqual, -0.7)
	test.That(t, SignedTwistAngle(q, r3.Vector{}), test.ShouldEqual, 0.)
}

func TestOrthogonalBasis(t *testing.T) {
	for _, v := range []r3.Vector{{X: 1}, {Y: 3}, {X: 1, Y: 2, Z: -3}} {
		b1, b2 := OrthogonalBasis(v)
		test.That(t, b1.Norm(), test.ShouldAlmostEqual, 1.)
		test.That(t, b2.Norm(), test.ShouldAlmostEqual, 1.)
		test.That(t, b1.Dot(v), test.ShouldAlmostEqual, 0.)
		test.That(t, b2.Dot(v), test.ShouldAlmostEqual, 0.)
		test.That(t, b1.Dot(b2), test.ShouldAlmostEqual, 0.)
	}
}

func TestPose(t *testing.T) {
	p := NewPose(r3.Vector{X: 1, Y: 2, Z: 3}, &R4AA{Theta: math.Pi / 2, RZ: 1})
	test.That(t, p.Point(), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, p.Orientation().AxisAngles().Theta, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, PoseAlmostEqual(p, NewPoseFromQuat(p.Point(), p.Orientation().Quaternion())), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(p, NewPoseFromPoint(p.Point())), test.ShouldBeFalse)
	test.That(t, NewPose(r3.Vector{}, nil).Orientation().Quaternion(), test.ShouldResemble, IdentityQuat())
}
