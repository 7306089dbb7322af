package ik

import (
	"fmt"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/kinetree/kinetree/referenceframe"
	spatial "github.com/kinetree/kinetree/spatialmath"
)

// makeChain builds a chain rooted at the origin whose joints are offset by the given translations.
// The first translation is the root's.
func makeChain(t *testing.T, translations ...r3.Vector) referenceframe.Chain {
	t.Helper()
	var joints []*referenceframe.Joint
	var parent *referenceframe.Joint
	for i, tr := range translations {
		j := referenceframe.NewJoint(fmt.Sprintf("j%d", i), parent, tr, nil)
		joints = append(joints, j)
		parent = j
	}
	chain, err := referenceframe.NewChain(joints...)
	test.That(t, err, test.ShouldBeNil)
	return chain
}

// planarChain is five joints, four bones of 50 along +Y.
func planarChain(t *testing.T) referenceframe.Chain {
	t.Helper()
	bone := r3.Vector{Y: 50}
	return makeChain(t, r3.Vector{}, bone, bone, bone, bone)
}

// spatialArm is a six joint arm with bones along every axis.
func spatialArm(t *testing.T) referenceframe.Chain {
	t.Helper()
	return makeChain(t,
		r3.Vector{},
		r3.Vector{Z: 30},
		r3.Vector{X: 20, Z: 10},
		r3.Vector{Y: 25},
		r3.Vector{X: 15},
		r3.Vector{Z: 10},
	)
}

func assertCacheMatchesJoints(t *testing.T, nodes []*NodeInformation) {
	t.Helper()
	for _, n := range nodes {
		test.That(t, spatial.R3VectorAlmostEqual(n.PositionCache(), n.Joint().Position(), 1e-9), test.ShouldBeTrue)
		test.That(t, spatial.QuaternionAlmostEqual(n.OrientationCache(), n.Joint().Orientation(), 1e-12), test.ShouldBeTrue)
	}
}
