// Package cli contains the kinetree command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	generalFlagDebug    = "debug"
	generalFlagSkeleton = "skeleton"

	solveFlagIterations = "iterations"
	solveFlagEvents     = "events"
	solveFlagOutput     = "output"

	sweepFlagSeeds    = "seeds"
	sweepFlagParallel = "parallel"
)

var skeletonFlag = &cli.StringFlag{
	Name:     generalFlagSkeleton,
	Aliases:  []string{"s"},
	Required: true,
	Usage:    "load the skeleton and its targets from `FILE`",
}

var app = &cli.App{
	Name:            "kinetree",
	Usage:           "solve inverse kinematics for skeletons described in JSON",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "solve",
			Usage:     "move every targeted effector of a skeleton towards its target",
			UsageText: "kinetree solve --skeleton <file> [--iterations <n>] [--output <file>]",
			Flags: []cli.Flag{
				skeletonFlag,
				&cli.IntFlag{
					Name:  solveFlagIterations,
					Usage: "override the solver iteration budget",
				},
				&cli.BoolFlag{
					Name:  solveFlagEvents,
					Usage: "log every solver event at debug level",
				},
				&cli.StringFlag{
					Name:    solveFlagOutput,
					Aliases: []string{"o"},
					Usage:   "write the solved joint rotations as JSON to `FILE`",
				},
			},
			Action: SolveAction,
		},
		{
			Name:      "sweep",
			Usage:     "solve a skeleton once per random seed in parallel and summarize the errors",
			UsageText: "kinetree sweep --skeleton <file> [--seeds <n>] [--parallel <n>]",
			Flags: []cli.Flag{
				skeletonFlag,
				&cli.IntFlag{
					Name:  sweepFlagSeeds,
					Value: 8,
					Usage: "number of seeds to try, starting at the configured seed",
				},
				&cli.IntFlag{
					Name:  sweepFlagParallel,
					Usage: "maximum number of concurrent solves, 0 for one per seed",
				},
			},
			Action: SweepAction,
		},
		{
			Name:      "inspect",
			Usage:     "print the chains a skeleton is split into",
			UsageText: "kinetree inspect --skeleton <file>",
			Flags:     []cli.Flag{skeletonFlag},
			Action:    InspectAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
