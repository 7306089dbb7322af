package ik

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kinetree/kinetree/referenceframe"
	spatial "github.com/kinetree/kinetree/spatialmath"
)

// NodeInformation caches the world pose of a joint so a chain can be updated one joint at a time.
// Entries of a chain are linked to the entry of the previous joint; the first entry reads its
// parent frame from the joint hierarchy.
type NodeInformation struct {
	joint       *referenceframe.Joint
	parent      *NodeInformation
	position    r3.Vector
	orientation quat.Number
	scale       float64
}

// NodeSnapshot is the restorable state of a cache entry and its joint.
type NodeSnapshot struct {
	rotation    quat.Number
	position    r3.Vector
	orientation quat.Number
	scale       float64
}

// NewNodeInformationChain builds linked, up to date cache entries for every joint of chain.
func NewNodeInformationChain(chain referenceframe.Chain) []*NodeInformation {
	nodes := make([]*NodeInformation, len(chain))
	var parent *NodeInformation
	for i, j := range chain {
		nodes[i] = &NodeInformation{joint: j, parent: parent}
		nodes[i].UpdateCacheUsingReference()
		parent = nodes[i]
	}
	return nodes
}

// Joint returns the joint this entry caches.
func (n *NodeInformation) Joint() *referenceframe.Joint {
	return n.joint
}

// PositionCache returns the cached world position.
func (n *NodeInformation) PositionCache() r3.Vector {
	return n.position
}

// OrientationCache returns the cached world orientation.
func (n *NodeInformation) OrientationCache() quat.Number {
	return n.orientation
}

// SetCache overwrites the cached pose.
func (n *NodeInformation) SetCache(pos r3.Vector, orient quat.Number) {
	n.position = pos
	n.orientation = orient
}

// UpdateCacheUsingReference recomputes the entry from its parent entry, which must already be up to date.
func (n *NodeInformation) UpdateCacheUsingReference() {
	if n.parent == nil {
		n.position = n.joint.Position()
		n.orientation = n.joint.Orientation()
		n.scale = n.joint.WorldScale()
		return
	}
	p := n.parent
	offset := spatial.RotateVector(p.orientation, n.joint.Translation().Mul(p.scale))
	n.position = p.position.Add(offset)
	n.orientation = quat.Mul(p.orientation, n.joint.Rotation())
	n.scale = p.scale * n.joint.Scale()
}

// RotateAndUpdateCache post-multiplies the joint's local rotation by delta, passing it through the
// joint's constraint when useConstraint is set, and updates this entry and tip. Entries between
// the two are left stale. The applied delta is returned.
func (n *NodeInformation) RotateAndUpdateCache(delta quat.Number, useConstraint bool, tip *NodeInformation) quat.Number {
	var applied quat.Number
	if useConstraint {
		applied = n.joint.Rotate(delta)
	} else {
		n.joint.WithoutConstraint(func() {
			applied = n.joint.Rotate(delta)
		})
	}
	old := n.orientation
	n.orientation = spatial.Normalize(quat.Mul(old, applied))
	if tip == nil || tip == n {
		return applied
	}
	worldDelta := quat.Mul(quat.Mul(old, applied), quat.Conj(old))
	tip.position = n.position.Add(spatial.RotateVector(worldDelta, tip.position.Sub(n.position)))
	tip.orientation = spatial.Normalize(quat.Mul(worldDelta, tip.orientation))
	return applied
}

// Snapshot captures the joint rotation and the cached pose.
func (n *NodeInformation) Snapshot() NodeSnapshot {
	return NodeSnapshot{
		rotation:    n.joint.Rotation(),
		position:    n.position,
		orientation: n.orientation,
		scale:       n.scale,
	}
}

// Restore puts back a snapshot taken from this entry, bypassing the joint's constraint.
func (n *NodeInformation) Restore(s NodeSnapshot) {
	n.joint.SetRotation(s.rotation)
	n.position = s.position
	n.orientation = s.orientation
	n.scale = s.scale
}

// refreshFrom recomputes entries from index from to the end of nodes.
func refreshFrom(nodes []*NodeInformation, from int) {
	for _, n := range nodes[from:] {
		n.UpdateCacheUsingReference()
	}
}

// snapshotFrom captures entries from index from to the end of nodes.
func snapshotFrom(nodes []*NodeInformation, from int) []NodeSnapshot {
	out := make([]NodeSnapshot, 0, len(nodes)-from)
	for _, n := range nodes[from:] {
		out = append(out, n.Snapshot())
	}
	return out
}

func restoreFrom(nodes []*NodeInformation, from int, snaps []NodeSnapshot) {
	for i, s := range snaps {
		nodes[from+i].Restore(s)
	}
}
