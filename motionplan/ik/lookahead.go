package ik

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kinetree/kinetree/referenceframe"
	spatial "github.com/kinetree/kinetree/spatialmath"
	"github.com/kinetree/kinetree/utils"
)

// searchLeaf is a rotation sequence, one delta per joint from the search start, and its error at
// the search horizon.
type searchLeaf struct {
	sequence []quat.Number
	err      float64
}

// lookAhead searches rotation sequences for the joints from idx outwards and returns the first
// delta of the best one. The working chain and its caches are left exactly as they were.
func (s *ChainSolver) lookAhead(idx int, explore bool) quat.Number {
	s.stats.SearchCalls++
	plies := s.opts.LookAheadDepth
	if plies < 1 {
		plies = 1
	}
	if remaining := len(s.nodes) - 1 - idx; plies > remaining {
		plies = remaining
	}
	if plies < 1 {
		return spatial.IdentityQuat()
	}

	var leaves []searchLeaf
	s.search(idx, 0, plies, nil, explore, &leaves)
	if len(leaves) == 0 {
		return spatial.IdentityQuat()
	}
	best := lo.MinBy(leaves, func(a, b searchLeaf) bool { return a.err < b.err })
	return best.sequence[0]
}

// search expands every candidate at the first ply. Deeper plies follow only the candidate whose
// rollout scores best at the horizon.
func (s *ChainSolver) search(idx, ply, plies int, seq []quat.Number, explore bool, leaves *[]searchLeaf) {
	if ply == plies {
		s.stats.LeavesEvaluated++
		*leaves = append(*leaves, searchLeaf{
			sequence: append([]quat.Number(nil), seq...),
			err:      s.jitteredError(),
		})
		return
	}

	candidates := s.candidates(idx, ply == 0, explore)
	if ply == 0 {
		for _, c := range candidates {
			s.withApplied(idx, c, func(applied quat.Number) {
				s.search(idx+1, ply+1, plies, append(seq, applied), explore, leaves)
			})
		}
		return
	}

	best := s.greedyStep(idx, candidates, plies-ply-1)
	s.withApplied(idx, best, func(applied quat.Number) {
		s.search(idx+1, ply+1, plies, append(seq, applied), explore, leaves)
	})
}

// greedyStep returns the candidate for joint idx whose rollout through the next remaining joints
// ends with the lowest error.
func (s *ChainSolver) greedyStep(idx int, candidates []quat.Number, remaining int) quat.Number {
	bestErr := math.Inf(1)
	bestDelta := spatial.IdentityQuat()
	for _, c := range candidates {
		s.withApplied(idx, c, func(applied quat.Number) {
			if e := s.rollout(idx+1, remaining); e < bestErr {
				bestErr = e
				bestDelta = applied
			}
		})
	}
	return bestDelta
}

// rollout applies the direct swing-twist correction to the n joints from idx outwards and returns
// the error at the end. The chain is restored before it returns.
func (s *ChainSolver) rollout(idx, n int) float64 {
	if n == 0 {
		return s.jitteredError()
	}
	var e float64
	s.withApplied(idx, s.simulateSwingTwist(idx), func(quat.Number) {
		e = s.rollout(idx+1, n-1)
	})
	return e
}

// candidates returns the deltas worth trying on joint idx.
func (s *ChainSolver) candidates(idx int, choose, explore bool) []quat.Number {
	node, child, eff := s.nodes[idx], s.nodes[idx+1], s.effector()

	var base quat.Number
	if s.rng.Float64() < defaultPureSwingProbability {
		base = FindLocalRotation(node, child, s.auxNodes[idx+1], s.opts.EnableWeight)
	} else {
		base = s.simulateSwingTwist(idx)
	}
	out := []quat.Number{base}

	if choose {
		b1, b2 := spatial.OrthogonalBasis(child.joint.Translation())
		angle := utils.DegToRad(defaultChooseAngle)
		for _, axis := range []r3.Vector{b1, b2} {
			out = append(out,
				quat.Mul(base, spatial.QuatFromAxisAngle(axis, angle)),
				quat.Mul(base, spatial.QuatFromAxisAngle(axis, -angle)))
		}
		if s.opts.EnableTwist {
			twist := FindCCDTwist(node, child, eff, s.target.Point(), s.opts.maxStepAngle())
			if spatial.QuatAngle(twist) > 1e-9 {
				out = append(out, quat.Mul(base, twist), quat.Mul(base, quat.Conj(twist)))
			}
		}
	}

	if explore {
		sampler, constrained := node.joint.Constraint().(referenceframe.ConstraintSampler)
		for i := 0; i < s.opts.ExploreSamples; i++ {
			if constrained {
				out = append(out, sampler.SampleRotation(node.joint, s.rng))
			} else {
				out = append(out, s.randomRotation())
			}
		}
	}
	return out
}

// simulateSwingTwist returns the delta ApplySwingTwist would apply to joint idx.
func (s *ChainSolver) simulateSwingTwist(idx int) quat.Number {
	var delta quat.Number
	s.scoped(idx, func() {
		delta = ApplySwingTwist(s.nodes[idx], s.nodes[idx+1], s.auxNodes[idx+1], s.effector(), s.target, s.opts)
	})
	return delta
}

func (s *ChainSolver) randomRotation() quat.Number {
	axis := r3.Vector{X: s.rng.NormFloat64(), Y: s.rng.NormFloat64(), Z: s.rng.NormFloat64()}
	limit := s.opts.exploreAngle()
	return spatial.QuatFromAxisAngle(axis, utils.SampleRandomFloat(-limit, limit, s.rng))
}

// scoped runs fn and then restores joint idx and every cache entry from idx outwards.
func (s *ChainSolver) scoped(idx int, fn func()) {
	snaps := snapshotFrom(s.nodes, idx)
	defer restoreFrom(s.nodes, idx, snaps)
	fn()
}

// withApplied rotates joint idx by delta, brings the caches up to date and runs fn with the delta
// that was actually applied. Everything is restored when fn returns.
func (s *ChainSolver) withApplied(idx int, delta quat.Number, fn func(applied quat.Number)) {
	s.scoped(idx, func() {
		applied := s.nodes[idx].RotateAndUpdateCache(delta, true, s.effector())
		refreshFrom(s.nodes, idx+1)
		fn(applied)
	})
}

// jitteredError scores the working effector with its position term scaled by a small random factor.
func (s *ChainSolver) jitteredError() float64 {
	eff := s.effector()
	jitter := utils.SampleRandomFloat(-s.leafJitter, s.leafJitter, s.rng)
	return s.model.JitteredError(eff.PositionCache(), s.target.Point(), eff.OrientationCache(), s.target.Orientation().Quaternion(), jitter)
}

func (s *ChainSolver) effector() *NodeInformation {
	return s.nodes[len(s.nodes)-1]
}
