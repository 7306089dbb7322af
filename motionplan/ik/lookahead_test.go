package ik

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kinetree/kinetree/logging"
	"github.com/kinetree/kinetree/referenceframe"
	spatial "github.com/kinetree/kinetree/spatialmath"
)

func newAlignedSolver(t *testing.T, chain referenceframe.Chain, opts *Options, target r3.Vector) *ChainSolver {
	t.Helper()
	s, err := NewChainSolver(chain, opts, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	s.SetTarget(spatial.NewPoseFromPoint(target))
	s.align()
	return s
}

func TestLookAheadLeavesChainUntouched(t *testing.T) {
	for _, depth := range []int{1, 2, 3} {
		opts := NewDefaultOptions()
		opts.LookAheadDepth = depth
		s := newAlignedSolver(t, spatialArm(t), opts, r3.Vector{X: 30, Y: -20, Z: 40})

		before := snapshotFrom(s.nodes, 0)
		rotations := s.working.Rotations()
		for idx := 0; idx < len(s.nodes)-1; idx++ {
			s.lookAhead(idx, false)
			s.lookAhead(idx, true)
		}
		test.That(t, snapshotFrom(s.nodes, 0), test.ShouldResemble, before)
		test.That(t, s.working.Rotations(), test.ShouldResemble, rotations)
	}
}

func TestLookAheadPlies(t *testing.T) {
	opts := NewDefaultOptions()
	opts.LookAheadDepth = 4
	s := newAlignedSolver(t, spatialArm(t), opts, r3.Vector{X: -10, Y: 35, Z: 20})
	last := len(s.nodes) - 1

	// nothing below the effector to rotate
	test.That(t, s.lookAhead(last, false), test.ShouldResemble, spatial.IdentityQuat())
	test.That(t, s.Stats().LeavesEvaluated, test.ShouldEqual, 0)

	// the depth is capped by the joints left, so every first ply candidate yields one leaf
	delta := s.lookAhead(last-1, false)
	test.That(t, spatial.QuatAngle(delta), test.ShouldBeGreaterThan, 0.)
	leaves := s.Stats().LeavesEvaluated
	test.That(t, leaves, test.ShouldBeGreaterThanOrEqualTo, 5)
	test.That(t, leaves, test.ShouldBeLessThanOrEqualTo, 7)
	test.That(t, s.Stats().SearchCalls, test.ShouldEqual, 2)
}

func TestLookAheadExploreUsesSampler(t *testing.T) {
	chain := planarChain(t)
	limit := referenceframe.Limit{Min: -0.2, Max: 0.2}
	hinge, err := referenceframe.NewHinge(spatial.IdentityQuat(), r3.Vector{Z: 1}, limit)
	test.That(t, err, test.ShouldBeNil)
	chain[1].SetConstraint(hinge)

	opts := NewDefaultOptions()
	opts.EnableTwist = false
	opts.ExploreSamples = 8
	s := newAlignedSolver(t, chain, opts, r3.Vector{X: 150})

	candidates := s.candidates(1, false, true)
	test.That(t, len(candidates), test.ShouldEqual, 1+opts.ExploreSamples)
	for _, c := range candidates[1:] {
		test.That(t, spatial.SignedTwistAngle(c, r3.Vector{Z: 1}), test.ShouldBeBetweenOrEqual, limit.Min-1e-9, limit.Max+1e-9)
	}

	candidates = s.candidates(2, true, true)
	test.That(t, len(candidates), test.ShouldEqual, 5+opts.ExploreSamples)
	for _, c := range candidates[5:] {
		test.That(t, spatial.QuatAngle(c), test.ShouldBeLessThanOrEqualTo, opts.exploreAngle()+1e-9)
	}
}

func TestJitteredErrorVaries(t *testing.T) {
	opts := NewDefaultOptions()
	opts.EnableTwist = false
	s := newAlignedSolver(t, planarChain(t), opts, r3.Vector{X: 150})
	dist := PositionError(s.effector().PositionCache(), r3.Vector{X: 150})

	a, b := s.jitteredError(), s.jitteredError()
	test.That(t, a, test.ShouldNotEqual, b)
	for _, e := range []float64{a, b} {
		test.That(t, e, test.ShouldBeBetweenOrEqual, dist*(1-defaultLeafJitter), dist*(1+defaultLeafJitter))
	}

	s.leafJitter = 0
	test.That(t, s.jitteredError(), test.ShouldEqual, dist)
}

func TestGreedyStepScoresAtHorizon(t *testing.T) {
	opts := NewDefaultOptions()
	opts.EnableTwist = false
	target := r3.Vector{X: 50, Y: 150}
	s := newAlignedSolver(t, planarChain(t), opts, target)
	s.leafJitter = 0
	// the rollout turns joints 2 and 3 straight at the target
	for _, n := range s.auxNodes[3:] {
		n.SetCache(target, spatial.IdentityQuat())
	}
	before := snapshotFrom(s.nodes, 0)

	straight := spatial.IdentityQuat()
	right := spatial.QuatFromAxisAngle(r3.Vector{Z: 1}, -math.Pi/2)

	// straight leaves the tip at (0, 200), closer than (150, 50) right away
	immediate := func(c quat.Number) float64 {
		var e float64
		s.withApplied(1, c, func(quat.Number) { e = s.jitteredError() })
		return e
	}
	test.That(t, immediate(straight), test.ShouldAlmostEqual, 50*math.Sqrt2)
	test.That(t, immediate(right), test.ShouldAlmostEqual, 100*math.Sqrt2)

	// after the remaining joints correct, only turning right reaches the target
	horizon := func(c quat.Number) float64 {
		var e float64
		s.withApplied(1, c, func(quat.Number) { e = s.rollout(2, 2) })
		return e
	}
	test.That(t, horizon(straight), test.ShouldAlmostEqual, 100-50*math.Sqrt2, 1e-6)
	test.That(t, horizon(right), test.ShouldAlmostEqual, 0., 1e-6)

	chosen := s.greedyStep(1, []quat.Number{straight, right}, 2)
	test.That(t, spatial.QuaternionAlmostEqual(chosen, right, 1e-9), test.ShouldBeTrue)
	test.That(t, snapshotFrom(s.nodes, 0), test.ShouldResemble, before)
}
