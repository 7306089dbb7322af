package ik

import (
	"testing"

	"go.uber.org/multierr"
	"go.viam.com/test"
)

func TestNewOptionsFromExtra(t *testing.T) {
	t.Run("empty map gives defaults", func(t *testing.T) {
		opts, err := NewOptionsFromExtra(nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, opts, test.ShouldResemble, NewDefaultOptions())
		test.That(t, opts.MaxIterations, test.ShouldEqual, 50)
		test.That(t, opts.EnableTwist, test.ShouldBeTrue)
		test.That(t, opts.LockThreshold, test.ShouldEqual, 4)
	})

	t.Run("values override defaults", func(t *testing.T) {
		opts, err := NewOptionsFromExtra(map[string]interface{}{
			"max_iterations":   20.,
			"enable_twist":     false,
			"direction_aware":  true,
			"look_ahead_depth": 2,
			"random_seed":      "7",
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, opts.MaxIterations, test.ShouldEqual, 20)
		test.That(t, opts.EnableTwist, test.ShouldBeFalse)
		test.That(t, opts.DirectionAware, test.ShouldBeTrue)
		test.That(t, opts.LookAheadDepth, test.ShouldEqual, 2)
		test.That(t, opts.RandomSeed, test.ShouldEqual, int64(7))
		test.That(t, opts.WeightRatio, test.ShouldEqual, 3.)
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		_, err := NewOptionsFromExtra(map[string]interface{}{"max_iter": 3, "beam_width": 2})
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "[beam_width max_iter]")
	})

	t.Run("invalid values are all reported", func(t *testing.T) {
		_, err := NewOptionsFromExtra(map[string]interface{}{
			"max_iterations":      0,
			"look_ahead_depth":    -1,
			"tree_sub_iterations": 0,
		})
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, len(multierr.Errors(err)), test.ShouldEqual, 3)
	})
}

func TestOptionsValidate(t *testing.T) {
	opts := NewDefaultOptions()
	test.That(t, opts.Validate(), test.ShouldBeNil)

	opts.MaxAlignAngleDegrees = 0
	opts.WeightRatioNear = -1
	err := opts.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "max_align_angle_degrees")
	test.That(t, err.Error(), test.ShouldContainSubstring, "weight ratios")
}
