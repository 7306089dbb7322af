// Package ik contains the swing-twist inverse kinematics solvers for single chains and branching skeletons.
package ik

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/num/quat"

	"github.com/kinetree/kinetree/logging"
	"github.com/kinetree/kinetree/referenceframe"
	spatial "github.com/kinetree/kinetree/spatialmath"
)

// State is the phase a ChainSolver is in.
type State int

// chain solver states.
const (
	StateIdle State = iota
	StateAligning
	StateWalking
	StateExploring
	StateEvaluating
	StateConverged
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAligning:
		return "aligning"
	case StateWalking:
		return "walking"
	case StateExploring:
		return "exploring"
	case StateEvaluating:
		return "evaluating"
	case StateConverged:
		return "converged"
	default:
		return "unknown"
	}
}

// ChainSolver moves the effector of a chain towards a target one iteration at a time. The joints
// of the chain it was created with are only written when a strictly better pose has been found.
type ChainSolver struct {
	name   string
	opts   *Options
	logger logging.Logger
	events EventSink
	rng    *rand.Rand
	model  ErrorModel

	// relative spread of the position weight when scoring look-ahead leaves
	leafJitter float64

	original referenceframe.Chain
	working  referenceframe.Chain
	aux      referenceframe.Chain
	nodes    []*NodeInformation
	auxNodes []*NodeInformation

	// index of the first joint the walk may rotate
	first int

	target spatial.Pose

	state       State
	best        float64
	bestPos     float64
	bestOrient  float64
	lockCounter int
	explore     bool
	converged   bool
	iteration   int
	stats       Stats
}

// NewChainSolver creates a solver for chain. A nil opts uses the defaults.
func NewChainSolver(chain referenceframe.Chain, opts *Options, logger logging.Logger) (*ChainSolver, error) {
	return newChainSolver(chain, opts, logger, false)
}

// newChainSolver creates a solver that leaves the chain root untouched when fixedRoot is set.
func newChainSolver(chain referenceframe.Chain, opts *Options, logger logging.Logger, fixedRoot bool) (*ChainSolver, error) {
	if len(chain) == 0 {
		return nil, errNoJoints
	}
	if opts == nil {
		opts = NewDefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewBlankLogger("ik")
	}
	//nolint:gosec
	rng := rand.New(rand.NewSource(opts.RandomSeed))
	s := &ChainSolver{
		name:       chain.Effector().Name(),
		opts:       opts,
		logger:     logger,
		rng:        rng,
		leafJitter: defaultLeafJitter,
		original:   chain,
		working:    chain.Clone(),
		aux:        chain.Clone(),
		best:       math.Inf(1),
	}
	if fixedRoot {
		s.first = 1
	}
	s.nodes = NewNodeInformationChain(s.working)
	s.auxNodes = NewNodeInformationChain(s.aux)
	s.model = NewErrorModel(opts, chain.AverageBoneLength())
	return s, nil
}

// Name returns the name of the chain's effector.
func (s *ChainSolver) Name() string {
	return s.name
}

// Chain returns the chain the solver writes its results to.
func (s *ChainSolver) Chain() referenceframe.Chain {
	return s.original
}

// Options returns the solver configuration.
func (s *ChainSolver) Options() *Options {
	return s.opts
}

// SetEventSink registers sink to be notified of solver progress. A nil sink disables notifications.
func (s *ChainSolver) SetEventSink(sink EventSink) {
	s.events = sink
}

// Target returns the current target, nil when none is set.
func (s *ChainSolver) Target() spatial.Pose {
	return s.target
}

// SetTarget sets the pose the effector should reach and resets the solver. A nil target makes
// every iteration a no-op that reports convergence.
func (s *ChainSolver) SetTarget(target spatial.Pose) {
	s.target = target
	s.Reset()
}

// Reset reloads the working chain from the output chain and restarts best state tracking from
// the current pose.
func (s *ChainSolver) Reset() {
	s.working.SyncAnchor(s.original)
	s.working.CopyRotationsFrom(s.original)
	refreshFrom(s.nodes, 0)
	s.model = NewErrorModel(s.opts, s.original.AverageBoneLength())

	s.state = StateIdle
	s.lockCounter = 0
	s.explore = false
	s.converged = false
	s.iteration = 0
	if s.target == nil {
		s.best, s.bestPos, s.bestOrient = 0, 0, 0
		return
	}
	s.best, s.bestPos, s.bestOrient = s.evaluate()
	s.converged = s.withinThresholds()
}

// State returns the phase of the last iteration.
func (s *ChainSolver) State() State {
	return s.state
}

// Stats returns the work counters of this solver.
func (s *ChainSolver) Stats() Stats {
	return s.stats
}

// Error returns the error of the best pose found, which is the pose of the output chain.
func (s *ChainSolver) Error() float64 {
	return s.best
}

// PositionError returns the effector distance of the best pose found.
func (s *ChainSolver) PositionError() float64 {
	return s.bestPos
}

// OrientationErrorDegrees returns the effector orientation error of the best pose found.
func (s *ChainSolver) OrientationErrorDegrees() float64 {
	return s.bestOrient
}

// Converged reports whether the best pose is within the configured thresholds.
func (s *ChainSolver) Converged() bool {
	return s.target == nil || s.converged
}

// Solve iterates until convergence, the iteration budget, or ctx is done. Not reaching the
// target is not an error; check Converged and Error.
func (s *ChainSolver) Solve(ctx context.Context) error {
	for i := 0; i < s.opts.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Iterate() {
			return nil
		}
	}
	return nil
}

// Iterate runs one outer iteration and reports whether the solver has converged.
func (s *ChainSolver) Iterate() bool {
	if s.target == nil {
		s.state = StateConverged
		return true
	}
	s.iteration++
	s.stats.Iterations++

	explore := s.explore
	s.explore = false

	s.state = StateAligning
	s.align()

	s.state = StateWalking
	if explore {
		s.state = StateExploring
	}
	s.walk(explore)

	s.state = StateEvaluating
	total, pos, orient := s.evaluate()
	if s.best-total > defaultImprovementTolerance*(1+s.best) {
		s.lockCounter = 0
	} else {
		s.lockCounter++
	}
	if total < s.best {
		s.original.CopyRotationsFrom(s.working)
		s.best, s.bestPos, s.bestOrient = total, pos, orient
		s.stats.Improvements++
		s.notify(EventRotationsChanged)
	}
	s.logger.Debugw("iteration", "chain", s.name, "iteration", s.iteration, "error", total, "best", s.best)

	if s.withinThresholds() {
		s.converged = true
		s.state = StateConverged
		s.logger.Infow("chain converged", "chain", s.name, "iterations", s.iteration, "error", s.best)
		s.notify(EventConverged)
		return true
	}
	if s.lockCounter > s.opts.LockThreshold {
		s.lockCounter = 0
		s.explore = true
		s.stats.Explorations++
		s.logger.Infow("no progress, exploring", "chain", s.name, "iteration", s.iteration, "best", s.best)
		s.notify(EventExplore)
	}
	return false
}

// align copies the working pose into the auxiliary chain and moves it rigidly so its tip sits on
// the target, turned towards the target orientation in direction aware mode.
func (s *ChainSolver) align() {
	s.aux.CopyRotationsFrom(s.working)
	anchor := s.aux.Root().Parent()
	workingAnchor := s.working.Root().Parent()
	anchor.SetTranslation(workingAnchor.Translation())
	anchor.SetRotation(workingAnchor.Rotation())
	anchor.SetScale(workingAnchor.Scale())

	eff := s.effector()
	tip := eff.PositionCache()
	align := spatial.IdentityQuat()
	if s.opts.DirectionAware {
		targetOrient := s.target.Orientation().Quaternion()
		align = spatial.ClampAngle(quat.Mul(targetOrient, quat.Conj(eff.OrientationCache())), s.opts.maxAlignAngle())
	}
	moved := spatial.RotateVector(align, anchor.Translation().Sub(tip)).Add(s.target.Point())
	anchor.SetTranslation(moved)
	anchor.SetRotation(spatial.Normalize(quat.Mul(align, anchor.Rotation())))
	refreshFrom(s.auxNodes, 0)
}

// walk corrects every movable joint in turn, from the root outwards.
func (s *ChainSolver) walk(explore bool) {
	n := len(s.nodes)
	eff := s.nodes[n-1]
	for i := s.first + 1; i < n; i++ {
		node := s.nodes[i-1]
		if explore || (s.opts.LookAheadDepth > 0 && i < n-1) {
			delta := s.lookAhead(i-1, explore)
			node.RotateAndUpdateCache(delta, true, eff)
		} else {
			ApplySwingTwist(node, s.nodes[i], s.auxNodes[i], eff, s.target, s.opts)
		}
		s.nodes[i].UpdateCacheUsingReference()
	}
}

// evaluate scores the working effector, returning the total error, the distance and the
// orientation error in degrees.
func (s *ChainSolver) evaluate() (float64, float64, float64) {
	eff := s.effector()
	targetOrient := s.target.Orientation().Quaternion()
	total := s.model.Error(eff.PositionCache(), s.target.Point(), eff.OrientationCache(), targetOrient)
	return total, PositionError(eff.PositionCache(), s.target.Point()),
		OrientationErrorDegrees(eff.OrientationCache(), targetOrient)
}

func (s *ChainSolver) withinThresholds() bool {
	if s.bestPos > s.opts.MaxPositionError {
		return false
	}
	return !s.opts.DirectionAware || s.bestOrient <= s.opts.MaxOrientationErrorDegrees
}

func (s *ChainSolver) notify(kind EventKind) {
	if s.events == nil {
		return
	}
	s.events.Notify(Event{Kind: kind, Chain: s.name, Iteration: s.iteration, Error: s.best})
}
