package cli

import (
	"context"
	"fmt"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/kinetree/kinetree/motionplan/ik"
	"github.com/kinetree/kinetree/referenceframe"
	"github.com/kinetree/kinetree/utils"
)

const (
	sweepHistogramBins  = 10
	sweepHistogramWidth = 40
)

// SweepAction is the corresponding action for 'sweep'.
func SweepAction(c *cli.Context) error {
	logger := newLogger(c)
	path := c.String(generalFlagSkeleton)
	_, opts, err := loadSkeleton(c)
	if err != nil {
		return err
	}
	seeds := c.Int(sweepFlagSeeds)
	if seeds < 1 {
		return errors.Errorf("--%s must be positive, got %d", sweepFlagSeeds, seeds)
	}

	// every run parses its own copy of the skeleton, solvers never share joints
	fs := lo.Times(seeds, func(i int) utils.FloatFunc {
		seed := opts.RandomSeed + int64(i)
		return func(ctx context.Context) (float64, error) {
			skel, err := referenceframe.ParseSkeletonJSONFile(path)
			if err != nil {
				return 0, err
			}
			runOpts := *opts
			runOpts.RandomSeed = seed
			solver, err := ik.NewTreeSolver(skel.Root, &runOpts, logger.Sublogger(fmt.Sprintf("seed%d", seed)))
			if err != nil {
				return 0, err
			}
			for name, target := range skel.Targets {
				if err := solver.AddTarget(name, target); err != nil {
					return 0, err
				}
			}
			if err := solver.Solve(ctx); err != nil {
				return 0, err
			}
			return solver.Error(), nil
		}
	})

	elapsed, errs, err := utils.GetInParallel(c.Context, c.Int(sweepFlagParallel), fs)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Seed", "Error"})
	for i, e := range errs {
		t.AppendRow(table.Row{opts.RandomSeed + int64(i), fmt.Sprintf("%.4f", e)})
	}
	printf(c.App.Writer, "%s", t.Render())

	summary, err := summarizeErrors(errs)
	if err != nil {
		return err
	}
	median, err := stats.Median(errs)
	if err != nil {
		return err
	}
	best := lo.MinBy(lo.Range(len(errs)), func(a, b int) bool { return errs[a] < errs[b] })
	printf(c.App.Writer, "%s, median: %.4f", summary, median)
	printf(c.App.Writer, "best seed: %d (error %.4f), %d solves in %s",
		opts.RandomSeed+int64(best), errs[best], len(errs), elapsed)

	// a histogram of identical errors has no bucket width
	if minErr, maxErr := lo.Min(errs), lo.Max(errs); maxErr > minErr {
		bins := min(len(errs), sweepHistogramBins)
		return histogram.Fprint(c.App.Writer, histogram.Hist(bins, errs), histogram.Linear(sweepHistogramWidth))
	}
	return nil
}
