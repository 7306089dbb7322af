// Package referenceframe defines the joints, constraints and chains the kinematic solvers operate on.
package referenceframe

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	spatial "github.com/kinetree/kinetree/spatialmath"
)

// Joint is an oriented point of a skeleton. Its pose is expressed relative to its parent: first
// translated by Translation (scaled by the parent's world scale), then rotated by Rotation.
type Joint struct {
	name        string
	parent      *Joint
	children    []*Joint
	rotation    quat.Number
	translation r3.Vector
	scale       float64
	constraint  Constraint
}

// NewJoint creates a joint under parent (which may be nil) with the given local translation and rotation.
func NewJoint(name string, parent *Joint, translation r3.Vector, rotation spatial.Orientation) *Joint {
	q := spatial.IdentityQuat()
	if rotation != nil {
		q = spatial.Normalize(rotation.Quaternion())
	}
	j := &Joint{
		name:        name,
		translation: translation,
		rotation:    q,
		scale:       1,
	}
	if parent != nil {
		j.parent = parent
		parent.children = append(parent.children, j)
	}
	return j
}

// Name returns the name of the joint.
func (j *Joint) Name() string {
	return j.name
}

// Parent returns the parent joint, nil for a skeleton root.
func (j *Joint) Parent() *Joint {
	return j.parent
}

// Children returns the joints attached to this one.
func (j *Joint) Children() []*Joint {
	return j.children
}

// Rotation returns the local rotation.
func (j *Joint) Rotation() quat.Number {
	return j.rotation
}

// SetRotation overwrites the local rotation without consulting the constraint. q is stored as is
// and must be a unit quaternion.
func (j *Joint) SetRotation(q quat.Number) {
	j.rotation = q
}

// Translation returns the local offset from the parent.
func (j *Joint) Translation() r3.Vector {
	return j.translation
}

// SetTranslation overwrites the local offset from the parent.
func (j *Joint) SetTranslation(t r3.Vector) {
	j.translation = t
}

// Scale returns the local uniform scale.
func (j *Joint) Scale() float64 {
	return j.scale
}

// SetScale sets the local uniform scale.
func (j *Joint) SetScale(s float64) {
	j.scale = s
}

// Constraint returns the constraint of the joint, nil if it is free.
func (j *Joint) Constraint() Constraint {
	return j.constraint
}

// SetConstraint attaches c to the joint. A nil constraint frees the joint.
func (j *Joint) SetConstraint(c Constraint) {
	j.constraint = c
}

// WithoutConstraint runs fn with the constraint detached and reattaches it afterwards.
func (j *Joint) WithoutConstraint(fn func()) {
	c := j.constraint
	j.constraint = nil
	defer func() { j.constraint = c }()
	fn()
}

// Rotate post-multiplies the local rotation by delta after passing it through the constraint.
// It returns the delta that was actually applied.
func (j *Joint) Rotate(delta quat.Number) quat.Number {
	if j.constraint != nil {
		delta = j.constraint.ConstrainRotation(delta, j)
	}
	delta = spatial.Normalize(delta)
	j.rotation = spatial.Normalize(quat.Mul(j.rotation, delta))
	return delta
}

// Orientation returns the world orientation, recomputed from the root.
func (j *Joint) Orientation() quat.Number {
	if j.parent == nil {
		return j.rotation
	}
	return quat.Mul(j.parent.Orientation(), j.rotation)
}

// WorldScale returns the product of the scales from the root down to this joint.
func (j *Joint) WorldScale() float64 {
	if j.parent == nil {
		return j.scale
	}
	return j.parent.WorldScale() * j.scale
}

// Position returns the world position, recomputed from the root.
func (j *Joint) Position() r3.Vector {
	if j.parent == nil {
		return j.translation
	}
	offset := spatial.RotateVector(j.parent.Orientation(), j.translation.Mul(j.parent.WorldScale()))
	return j.parent.Position().Add(offset)
}

// Pose returns the world pose of the joint.
func (j *Joint) Pose() spatial.Pose {
	return spatial.NewPoseFromQuat(j.Position(), j.Orientation())
}

// BoneLength returns the world length of the offset from the parent.
func (j *Joint) BoneLength() float64 {
	if j.parent == nil {
		return 0
	}
	return j.translation.Mul(j.parent.WorldScale()).Norm()
}

// Walk visits j and all of its descendants depth first.
func (j *Joint) Walk(fn func(*Joint)) {
	fn(j)
	for _, c := range j.children {
		c.Walk(fn)
	}
}

// FindJoint returns the descendant of j (or j itself) with the given name.
func (j *Joint) FindJoint(name string) (*Joint, bool) {
	if j.name == name {
		return j, true
	}
	for _, c := range j.children {
		if found, ok := c.FindJoint(name); ok {
			return found, true
		}
	}
	return nil, false
}

func (j *Joint) String() string {
	return fmt.Sprintf("joint %q", j.name)
}
