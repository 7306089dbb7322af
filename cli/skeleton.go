package cli

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/kinetree/kinetree/logging"
	"github.com/kinetree/kinetree/motionplan/ik"
	"github.com/kinetree/kinetree/referenceframe"
)

// effectorResult is the outcome for one targeted effector.
type effectorResult struct {
	name      string
	target    string
	reached   string
	distance  float64
	err       float64
	converged bool
}

// SolveAction is the corresponding action for 'solve'.
func SolveAction(c *cli.Context) error {
	logger := newLogger(c)
	skel, opts, err := loadSkeleton(c)
	if err != nil {
		return err
	}
	if c.IsSet(solveFlagIterations) {
		opts.MaxIterations = c.Int(solveFlagIterations)
		if err := opts.Validate(); err != nil {
			return err
		}
	}

	solver, err := ik.NewTreeSolver(skel.Root, opts, logger)
	if err != nil {
		return err
	}
	names := sortedTargetNames(skel)
	for _, name := range names {
		if err := solver.AddTarget(name, skel.Targets[name]); err != nil {
			return errors.Wrapf(err, "cannot bind target of skeleton %q", skel.Name)
		}
	}
	if c.Bool(solveFlagEvents) {
		solver.SetEventSink(ik.NewLoggingEventSink(logger))
	}

	start := time.Now()
	if err := solver.Solve(c.Context); err != nil {
		return err
	}
	elapsed := time.Since(start)
	if out := c.String(solveFlagOutput); out != "" {
		if err := saveRotationsToDisk(out, skel); err != nil {
			return err
		}
	}

	errs := solver.Errors()
	results := lo.Map(names, func(name string, _ int) effectorResult {
		target := skel.Targets[name]
		eff := skel.Joints[name]
		dist := ik.PositionError(eff.Position(), target.Point())
		return effectorResult{
			name:      name,
			target:    formatVector(target.Point()),
			reached:   formatVector(eff.Position()),
			distance:  dist,
			err:       errs[name],
			converged: dist <= opts.MaxPositionError,
		}
	})
	printf(c.App.Writer, "%s", resultsTable(results))

	summary, err := summarizeErrors(lo.Map(results, func(r effectorResult, _ int) float64 { return r.distance }))
	if err != nil {
		printf(c.App.Writer, "skeleton %q has no targets", skel.Name)
		return nil
	}
	printf(c.App.Writer, "%s", summary)
	printf(c.App.Writer, "converged: %d/%d in %s", lo.CountBy(results, func(r effectorResult) bool { return r.converged }),
		len(results), elapsed.Round(time.Microsecond))
	return nil
}

// InspectAction is the corresponding action for 'inspect'.
func InspectAction(c *cli.Context) error {
	skel, opts, err := loadSkeleton(c)
	if err != nil {
		return err
	}
	solver, err := ik.NewTreeSolver(skel.Root, opts, newLogger(c))
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Effector", "Joints", "Reach", "Target"})
	for i, s := range solver.ChainSolvers() {
		_, targeted := skel.Targets[s.Name()]
		t.AppendRow(table.Row{
			i,
			s.Name(),
			strings.Join(s.Chain().Names(), " > "),
			fmt.Sprintf("%.2f", s.Chain().Reach()),
			targeted,
		})
	}
	printf(c.App.Writer, "%s", t.Render())
	printf(c.App.Writer, "%d chains, %d joints", len(solver.ChainSolvers()), len(skel.Joints))
	return nil
}

func newLogger(c *cli.Context) logging.Logger {
	if c.Bool(generalFlagDebug) {
		return logging.NewDebugLogger("kinetree")
	}
	return logging.NewLogger("kinetree")
}

// loadSkeleton parses the skeleton file and the solver options it carries.
func loadSkeleton(c *cli.Context) (*referenceframe.Skeleton, *ik.Options, error) {
	path := c.String(generalFlagSkeleton)
	skel, err := referenceframe.ParseSkeletonJSONFile(path)
	if err != nil {
		return nil, nil, err
	}
	opts, err := ik.NewOptionsFromExtra(skel.Solver)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid solver options in %q", path)
	}
	return skel, opts, nil
}

func sortedTargetNames(skel *referenceframe.Skeleton) []string {
	names := lo.Keys(skel.Targets)
	slices.Sort(names)
	return names
}

func resultsTable(results []effectorResult) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Effector", "Target", "Reached", "Distance", "Error", "Converged"})
	for _, r := range results {
		t.AppendRow(table.Row{
			r.name,
			r.target,
			r.reached,
			fmt.Sprintf("%.4f", r.distance),
			fmt.Sprintf("%.4f", r.err),
			r.converged,
		})
	}
	return t.Render()
}
