package ik

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"github.com/kinetree/kinetree/logging"
	"github.com/kinetree/kinetree/referenceframe"
	spatial "github.com/kinetree/kinetree/spatialmath"
)

// treeNode is one chain of a decomposed skeleton. Child chains start at the effector of their
// parent chain.
type treeNode struct {
	solver   *ChainSolver
	parent   *treeNode
	children []*treeNode

	// target bound with AddTarget, nil if none
	target spatial.Pose
	// target the solver last ran against
	goal spatial.Pose
}

// TreeSolver solves a branching skeleton by splitting it into chains at its root, its branch
// points and its leaves. Child chains are solved first; each parent chain is then turned so its
// children's attachment points best follow their targets, and solved again.
type TreeSolver struct {
	opts    *Options
	logger  logging.Logger
	events  EventSink
	root    *treeNode
	nodes   []*treeNode
	targets map[string]spatial.Pose

	iteration int
}

// NewTreeSolver decomposes the skeleton below root into chains. A nil opts uses the defaults.
func NewTreeSolver(root *referenceframe.Joint, opts *Options, logger logging.Logger) (*TreeSolver, error) {
	if root == nil {
		return nil, errNilSkeleton
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
	t := &TreeSolver{
		opts:    opts,
		logger:  logger,
		targets: map[string]spatial.Pose{},
	}
	var err error
	t.root, err = t.build([]*referenceframe.Joint{root}, nil, false)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, n := range t.nodes {
		name := n.solver.Name()
		if seen[name] {
			return nil, NewDuplicateEffectorError(name)
		}
		seen[name] = true
	}
	t.logger.Debugw("skeleton decomposed", "chains", len(t.nodes))
	return t, nil
}

// build extends start through single child joints and recurses at branch points.
func (t *TreeSolver) build(start []*referenceframe.Joint, parent *treeNode, fixedRoot bool) (*treeNode, error) {
	joints := start
	last := joints[len(joints)-1]
	for len(last.Children()) == 1 {
		last = last.Children()[0]
		joints = append(joints, last)
	}
	chain, err := referenceframe.NewChain(joints...)
	if err != nil {
		return nil, err
	}

	opts := *t.opts
	opts.RandomSeed += int64(len(t.nodes))
	solver, err := newChainSolver(chain, &opts, t.logger.Sublogger(last.Name()), fixedRoot)
	if err != nil {
		return nil, err
	}
	node := &treeNode{solver: solver, parent: parent}
	t.nodes = append(t.nodes, node)

	if len(last.Children()) < 2 {
		return node, nil
	}
	for _, c := range last.Children() {
		child, err := t.build([]*referenceframe.Joint{last, c}, node, true)
		if err != nil {
			return nil, err
		}
		node.children = append(node.children, child)
	}
	return node, nil
}

// ChainSolvers returns the solver of every chain, parents before children.
func (t *TreeSolver) ChainSolvers() []*ChainSolver {
	return lo.Map(t.nodes, func(n *treeNode, _ int) *ChainSolver { return n.solver })
}

// SetEventSink registers sink with the tree and every chain solver.
func (t *TreeSolver) SetEventSink(sink EventSink) {
	t.events = sink
	for _, n := range t.nodes {
		n.solver.SetEventSink(sink)
	}
}

// AddTarget binds target to the chain whose effector is named effector.
func (t *TreeSolver) AddTarget(effector string, target spatial.Pose) error {
	node, ok := lo.Find(t.nodes, func(n *treeNode) bool { return n.solver.Name() == effector })
	if !ok {
		return NewEffectorNotFoundError(effector)
	}
	node.target = target
	t.targets[effector] = target
	return nil
}

// Targets returns the bound targets keyed by effector name.
func (t *TreeSolver) Targets() map[string]spatial.Pose {
	out := make(map[string]spatial.Pose, len(t.targets))
	for k, v := range t.targets {
		out[k] = v
	}
	return out
}

// Errors returns the current error of every targeted effector.
func (t *TreeSolver) Errors() map[string]float64 {
	out := make(map[string]float64, len(t.targets))
	for _, n := range t.nodes {
		if n.target == nil {
			continue
		}
		eff := n.solver.Chain().Effector()
		out[n.solver.Name()] = n.solver.model.Error(
			eff.Position(), n.target.Point(), eff.Orientation(), n.target.Orientation().Quaternion())
	}
	return out
}

// Error returns the summed error of all targeted effectors.
func (t *TreeSolver) Error() float64 {
	return lo.Sum(lo.Values(t.Errors()))
}

// Converged reports whether every targeted effector is within the configured thresholds.
func (t *TreeSolver) Converged() bool {
	for _, n := range t.nodes {
		if n.target == nil {
			continue
		}
		eff := n.solver.Chain().Effector()
		if PositionError(eff.Position(), n.target.Point()) > t.opts.MaxPositionError {
			return false
		}
		if t.opts.DirectionAware &&
			OrientationErrorDegrees(eff.Orientation(), n.target.Orientation().Quaternion()) > t.opts.MaxOrientationErrorDegrees {
			return false
		}
	}
	return true
}

// Solve runs passes until convergence, the iteration budget, or ctx is done.
func (t *TreeSolver) Solve(ctx context.Context) error {
	for i := 0; i < t.opts.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t.Iterate() {
			return nil
		}
	}
	return nil
}

// Iterate runs one bottom-up pass over the tree and reports whether it has converged.
func (t *TreeSolver) Iterate() bool {
	t.iteration++
	t.solveNode(t.root)
	converged := t.Converged()
	total := t.Error()
	t.logger.Debugw("tree pass", "iteration", t.iteration, "error", total, "converged", converged)
	if t.events != nil {
		t.events.Notify(Event{Kind: EventTreeIteration, Iteration: t.iteration, Error: total})
	}
	return converged
}

// solveNode solves the children of n, realigns n to them and solves n. It reports whether n or
// any chain below it had a target.
func (t *TreeSolver) solveNode(n *treeNode) bool {
	var moved []*treeNode
	for _, c := range n.children {
		if t.solveNode(c) {
			moved = append(moved, c)
		}
	}
	if len(moved) == 0 {
		if n.target == nil {
			return false
		}
		t.runChain(n, n.target)
		return true
	}
	goal := t.realign(n, moved)
	if n.target != nil {
		goal = n.target
	}
	t.runChain(n, goal)
	return true
}

func (t *TreeSolver) runChain(n *treeNode, goal spatial.Pose) {
	n.goal = goal
	n.solver.SetTarget(goal)
	for i := 0; i < t.opts.TreeSubIterations; i++ {
		if n.solver.Iterate() {
			return
		}
	}
}

// realign turns the effector of n so the first joints of its moved children best follow the
// displacement their targets ask for, and returns the target n should be solved against.
func (t *TreeSolver) realign(n *treeNode, moved []*treeNode) spatial.Pose {
	tip := n.solver.Chain().Effector()
	tipPos := tip.Position()

	current := make([]r3.Vector, 0, len(moved))
	desired := make([]r3.Vector, 0, len(moved))
	for _, c := range moved {
		chain := c.solver.Chain()
		attach := chain[1].Position().Sub(tipPos)
		residual := c.goal.Point().Sub(chain.Effector().Position())
		current = append(current, attach)
		desired = append(desired, attach.Add(residual))
	}

	rot, err := spatial.OptimalRotation(current, desired)
	if err != nil {
		t.logger.Warnw("could not fit branch rotation", "chain", n.solver.Name(), "error", err)
		rot = spatial.IdentityQuat()
	}
	orient := tip.Orientation()
	tip.Rotate(spatial.Compose(spatial.Inverse(orient), rot, orient))

	residuals := make([]r3.Vector, len(current))
	for i := range current {
		residuals[i] = desired[i].Sub(spatial.RotateVector(rot, current[i]))
	}
	goal := spatial.NewPoseFromQuat(tipPos.Add(spatial.MeanPoint(residuals)), tip.Orientation())
	if t.events != nil {
		t.events.Notify(Event{Kind: EventTreeRealigned, Chain: n.solver.Name(), Iteration: t.iteration, Error: t.Error()})
	}
	return goal
}
