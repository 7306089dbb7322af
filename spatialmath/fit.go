package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// singular values below this fraction of the largest one are treated as zero.
const rankTolerance = 1e-9

// MeanPoint returns the centroid of the given points, or the origin for an empty slice.
func MeanPoint(points []r3.Vector) r3.Vector {
	var sum r3.Vector
	if len(points) == 0 {
		return sum
	}
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(points)))
}

// OptimalRotation returns the rotation R minimizing sum |R*current[i] - desired[i]|^2 (Kabsch).
// Points are treated as offsets from a shared pivot, so no centering is done. When the
// correspondences do not span a plane the minimal rotation between their mean directions is used.
func OptimalRotation(current, desired []r3.Vector) (quat.Number, error) {
	if len(current) != len(desired) {
		return IdentityQuat(), errors.Errorf("point count mismatch: %d current, %d desired", len(current), len(desired))
	}
	if len(current) == 0 {
		return IdentityQuat(), nil
	}
	if len(current) == 1 {
		return QuatBetween(current[0], desired[0]), nil
	}

	cov := mat.NewDense(3, 3, nil)
	for i := range current {
		c := []float64{current[i].X, current[i].Y, current[i].Z}
		d := []float64{desired[i].X, desired[i].Y, desired[i].Z}
		for r := 0; r < 3; r++ {
			for k := 0; k < 3; k++ {
				cov.Set(r, k, cov.At(r, k)+c[r]*d[k])
			}
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(cov, mat.SVDFull); !ok {
		return IdentityQuat(), errors.New("failed to factorize covariance")
	}
	values := svd.Values(nil)
	if values[0] < rankTolerance || values[1] < rankTolerance*values[0] {
		return QuatBetween(MeanPoint(current), MeanPoint(desired)), nil
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// reflection correction
	var vut mat.Dense
	vut.Mul(&v, u.T())
	sign := 1.
	if mat.Det(&vut) < 0 {
		sign = -1.
	}
	diag := mat.NewDiagDense(3, []float64{1, 1, sign})
	var rot, tmp mat.Dense
	tmp.Mul(&v, diag)
	rot.Mul(&tmp, u.T())

	m := mgl64.Ident4()
	for r := 0; r < 3; r++ {
		for k := 0; k < 3; k++ {
			m.Set(r, k, rot.At(r, k))
		}
	}
	q := mgl64.Mat4ToQuat(m)
	return Normalize(quat.Number{Real: q.W, Imag: q.V[0], Jmag: q.V[1], Kmag: q.V[2]}), nil
}
