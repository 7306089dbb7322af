package referenceframe

import (
	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/num/quat"

	spatial "github.com/kinetree/kinetree/spatialmath"
)

// Chain is an ordered list of joints, root first and effector last, where each joint is the
// parent of the next.
type Chain []*Joint

// NewChain validates that the given joints form an unbroken parent chain.
func NewChain(joints ...*Joint) (Chain, error) {
	if len(joints) == 0 {
		return nil, ErrEmptyChain
	}
	for i := 1; i < len(joints); i++ {
		if joints[i].Parent() != joints[i-1] {
			return nil, NewChainBrokenError(joints[i-1].Name(), joints[i].Name())
		}
	}
	return Chain(joints), nil
}

// ChainBetween walks parent links up from effector until root and returns the chain between them.
func ChainBetween(root, effector *Joint) (Chain, error) {
	var reversed []*Joint
	for j := effector; j != nil; j = j.Parent() {
		reversed = append(reversed, j)
		if j == root {
			return NewChain(lo.Reverse(reversed)...)
		}
	}
	return nil, NewNotAncestorError(root.Name(), effector.Name())
}

// Root returns the first joint of the chain.
func (c Chain) Root() *Joint {
	return c[0]
}

// Effector returns the last joint of the chain.
func (c Chain) Effector() *Joint {
	return c[len(c)-1]
}

// Names returns the joint names in chain order.
func (c Chain) Names() []string {
	return lo.Map(c, func(j *Joint, _ int) string { return j.Name() })
}

// Reach returns the summed world length of the bones of the chain.
func (c Chain) Reach() float64 {
	return lo.SumBy(c[1:], func(j *Joint) float64 { return j.BoneLength() })
}

// AverageBoneLength returns the mean world bone length, or 1 for a chain without bones.
func (c Chain) AverageBoneLength() float64 {
	if len(c) < 2 {
		return 1
	}
	avg := c.Reach() / float64(len(c)-1)
	if avg < 1e-9 {
		return 1
	}
	return avg
}

// Rotations returns the local rotations of the chain's joints.
func (c Chain) Rotations() []quat.Number {
	return lo.Map(c, func(j *Joint, _ int) quat.Number { return j.Rotation() })
}

// CopyRotationsFrom overwrites the local rotations of c with those of other, bypassing constraints.
// The two chains must have the same length.
func (c Chain) CopyRotationsFrom(other Chain) {
	for i, j := range c {
		j.SetRotation(other[i].Rotation())
	}
}

// Clone returns a structurally identical copy of the chain detached from the original skeleton.
// The copy's root hangs under a static anchor joint holding the world pose of the original root's
// parent, so the copy has the same world poses as the original. Constraints are shared.
func (c Chain) Clone() Chain {
	anchor := newAnchor(c.Root())
	out := make(Chain, 0, len(c))
	parent := anchor
	for _, j := range c {
		cp := NewJoint(j.Name(), parent, j.Translation(), nil)
		cp.SetRotation(j.Rotation())
		cp.SetScale(j.Scale())
		cp.SetConstraint(j.Constraint())
		out = append(out, cp)
		parent = cp
	}
	return out
}

// SyncAnchor moves the anchor of a cloned chain to the current world pose of original's root parent.
func (c Chain) SyncAnchor(original Chain) {
	anchor := c.Root().Parent()
	if anchor == nil {
		return
	}
	pos, orient, scale := parentFrame(original.Root())
	anchor.SetTranslation(pos)
	anchor.SetRotation(orient)
	anchor.SetScale(scale)
}

func newAnchor(root *Joint) *Joint {
	pos, orient, scale := parentFrame(root)
	anchor := NewJoint(root.Name()+"_anchor", nil, pos, nil)
	anchor.SetRotation(orient)
	anchor.SetScale(scale)
	return anchor
}

func parentFrame(root *Joint) (r3.Vector, quat.Number, float64) {
	if p := root.Parent(); p != nil {
		return p.Position(), p.Orientation(), p.WorldScale()
	}
	return r3.Vector{}, spatial.IdentityQuat(), 1
}
