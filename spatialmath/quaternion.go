package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// below this norm a vector has no usable direction.
const vectorEpsilon = 1e-9

// IdentityQuat returns the quaternion representing no rotation.
func IdentityQuat() quat.Number {
	return quat.Number{Real: 1}
}

// Normalize returns q scaled to unit length. A zero quaternion normalizes to the identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < 1e-12 {
		return IdentityQuat()
	}
	return quat.Scale(1/n, q)
}

// Inverse returns the inverse of a unit quaternion.
func Inverse(q quat.Number) quat.Number {
	return quat.Conj(q)
}

// Compose returns the rotation that applies b first and then a, i.e. a*b.
func Compose(a, b quat.Number, rest ...quat.Number) quat.Number {
	out := quat.Mul(a, b)
	for _, q := range rest {
		out = quat.Mul(out, q)
	}
	return out
}

// RotateVector rotates v by the unit quaternion q.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// QuatFromAxisAngle returns the rotation of theta radians about axis. A zero axis gives the identity.
func QuatFromAxisAngle(axis r3.Vector, theta float64) quat.Number {
	return (&R4AA{Theta: theta, RX: axis.X, RY: axis.Y, RZ: axis.Z}).ToQuat()
}

// QuatDot returns the four dimensional dot product of two quaternions.
func QuatDot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// QuatAngle returns the rotation angle of q in [0, pi].
func QuatAngle(q quat.Number) float64 {
	q = Normalize(q)
	sinHalf := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	return 2 * math.Atan2(sinHalf, math.Abs(q.Real))
}

// QuatBetween returns the minimal rotation taking the direction of from onto the direction of to.
// If either vector has no direction the identity is returned.
func QuatBetween(from, to r3.Vector) quat.Number {
	if from.Norm() < vectorEpsilon || to.Norm() < vectorEpsilon {
		return IdentityQuat()
	}
	a := from.Normalize()
	b := to.Normalize()
	d := a.Dot(b)
	if d > 1-1e-12 {
		return IdentityQuat()
	}
	if d < -1+1e-12 {
		axis, _ := OrthogonalBasis(a)
		return QuatFromAxisAngle(axis, math.Pi)
	}
	c := a.Cross(b)
	return Normalize(quat.Number{Real: 1 + d, Imag: c.X, Jmag: c.Y, Kmag: c.Z})
}

// ClampAngle limits the rotation angle of q to maxAngle radians, keeping its axis.
func ClampAngle(q quat.Number, maxAngle float64) quat.Number {
	aa := QuatToR4AA(q)
	if aa.Theta <= maxAngle {
		return q
	}
	aa.Theta = maxAngle
	return aa.ToQuat()
}

// ScaleAngle multiplies the rotation angle of q by w, keeping its axis.
func ScaleAngle(q quat.Number, w float64) quat.Number {
	aa := QuatToR4AA(q)
	aa.Theta *= w
	return aa.ToQuat()
}

// SwingTwist decomposes q into swing * twist, where twist is the rotation about axis and swing
// carries no component about it.
func SwingTwist(q quat.Number, axis r3.Vector) (swing, twist quat.Number) {
	if axis.Norm() < vectorEpsilon {
		return q, IdentityQuat()
	}
	a := axis.Normalize()
	v := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	p := a.Mul(v.Dot(a))
	twist = quat.Number{Real: q.Real, Imag: p.X, Jmag: p.Y, Kmag: p.Z}
	if quat.Abs(twist) < 1e-9 {
		// rotation of pi about an axis orthogonal to the twist axis
		return q, IdentityQuat()
	}
	twist = Normalize(twist)
	swing = quat.Mul(q, quat.Conj(twist))
	return swing, twist
}

// SignedTwistAngle returns the angle in (-pi, pi] of the twist component of q about axis.
func SignedTwistAngle(q quat.Number, axis r3.Vector) float64 {
	if axis.Norm() < vectorEpsilon {
		return 0
	}
	_, twist := SwingTwist(q, axis)
	a := axis.Normalize()
	s := r3.Vector{X: twist.Imag, Y: twist.Jmag, Z: twist.Kmag}.Dot(a)
	angle := 2 * math.Atan2(s, twist.Real)
	if angle > math.Pi {
		angle -= 2 * math.Pi
	} else if angle <= -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}

// OrthogonalBasis returns two unit vectors that together with v form a right handed orthogonal basis.
func OrthogonalBasis(v r3.Vector) (r3.Vector, r3.Vector) {
	if v.Norm() < vectorEpsilon {
		return r3.Vector{X: 1}, r3.Vector{Y: 1}
	}
	n := v.Normalize()
	ref := r3.Vector{X: 1}
	if math.Abs(n.X) > 0.9 {
		ref = r3.Vector{Y: 1}
	}
	b1 := n.Cross(ref).Normalize()
	b2 := n.Cross(b1).Normalize()
	return b1, b2
}

// QuaternionAlmostEqual is an equality test for two quaternions representing the same rotation.
// q and -q are treated as equal.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	d := QuatDot(Normalize(a), Normalize(b))
	return 1-math.Abs(d) <= tol
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns if the all elementwise differences are less than epsilon.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon && math.Abs(a.Z-b.Z) < epsilon
}
