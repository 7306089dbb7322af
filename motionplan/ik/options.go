package ik

import (
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/kinetree/kinetree/utils"
)

// default values for the swing-twist solvers.
const (
	defaultMaxIterations        = 50
	defaultMaxPositionError     = 0.01
	defaultMaxOrientationError  = 1.
	defaultSmoothAngle          = 15.
	defaultMaxStepAngle         = 15.
	defaultMaxAlignAngle        = 20.
	defaultTwistNoise           = 5.
	defaultLockThreshold        = 4
	defaultExploreSamples       = 4
	defaultExploreAngle         = 30.
	defaultWeightRatio          = 3.
	defaultWeightRatioNear      = 1.2
	defaultNearThreshold        = 0.1
	defaultTreeSubIterations    = 10
	defaultRandomSeed           = 1
	defaultChooseAngle          = 5.
	defaultPureSwingProbability = 0.2
	defaultLeafJitter           = 0.05
	defaultStretchWeightBase    = 1.5
	defaultDegenerateProjection = 0.1
	defaultImprovementTolerance = 1e-6
)

// Options configures a chain or tree solver. Angles are in degrees.
type Options struct {
	// Maximum number of outer iterations Solve will run.
	MaxIterations int `json:"max_iterations"`

	// Convergence thresholds, checked against the best state found so far.
	MaxPositionError           float64 `json:"max_position_error"`
	MaxOrientationErrorDegrees float64 `json:"max_orientation_error_degrees"`

	// Number of joints the look-ahead search considers before committing to a rotation. Zero disables it.
	LookAheadDepth int `json:"look_ahead_depth"`

	// When set the target orientation takes part in the error and in the twist heuristic.
	DirectionAware bool `json:"direction_aware"`
	EnableTwist    bool `json:"enable_twist"`

	// Damp swing corrections of bones whose desired length deviates from their rest length.
	EnableWeight bool `json:"enable_weight"`

	// Bound every applied swing and twist to SmoothAngleDegrees.
	Smooth             bool    `json:"smooth"`
	SmoothAngleDegrees float64 `json:"smooth_angle_degrees"`

	MaxStepAngleDegrees  float64 `json:"max_step_angle_degrees"`
	MaxAlignAngleDegrees float64 `json:"max_align_angle_degrees"`
	TwistNoiseDegrees    float64 `json:"twist_noise_degrees"`

	// Iterations without improvement tolerated before exploring.
	LockThreshold       int     `json:"lock_threshold"`
	ExploreSamples      int     `json:"explore_samples"`
	ExploreAngleDegrees float64 `json:"explore_angle_degrees"`

	WeightRatio     float64 `json:"weight_ratio"`
	WeightRatioNear float64 `json:"weight_ratio_near"`
	// Fraction of the average bone length under which the effector counts as near its target.
	NearThreshold float64 `json:"near_threshold"`

	// Chain solver iterations per tree solver pass.
	TreeSubIterations int `json:"tree_sub_iterations"`

	RandomSeed int64 `json:"random_seed"`
}

// NewDefaultOptions returns the default solver configuration.
func NewDefaultOptions() *Options {
	return &Options{
		MaxIterations:              defaultMaxIterations,
		MaxPositionError:           defaultMaxPositionError,
		MaxOrientationErrorDegrees: defaultMaxOrientationError,
		EnableTwist:                true,
		SmoothAngleDegrees:         defaultSmoothAngle,
		MaxStepAngleDegrees:        defaultMaxStepAngle,
		MaxAlignAngleDegrees:       defaultMaxAlignAngle,
		TwistNoiseDegrees:          defaultTwistNoise,
		LockThreshold:              defaultLockThreshold,
		ExploreSamples:             defaultExploreSamples,
		ExploreAngleDegrees:        defaultExploreAngle,
		WeightRatio:                defaultWeightRatio,
		WeightRatioNear:            defaultWeightRatioNear,
		NearThreshold:              defaultNearThreshold,
		TreeSubIterations:          defaultTreeSubIterations,
		RandomSeed:                 defaultRandomSeed,
	}
}

// NewOptionsFromExtra decodes a free-form attribute map over the defaults. Unknown keys are rejected.
func NewOptionsFromExtra(extra map[string]interface{}) (*Options, error) {
	opts := NewDefaultOptions()
	if len(extra) == 0 {
		return opts, nil
	}
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           opts,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(extra); err != nil {
		return nil, errors.Wrap(err, "failed to decode solver options")
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return nil, errors.Errorf("unknown solver options %v", md.Unused)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate reports every out of range option.
func (o *Options) Validate() error {
	var err error
	if o.MaxIterations < 1 {
		err = multierr.Append(err, errors.Errorf("max_iterations must be positive, got %d", o.MaxIterations))
	}
	if o.MaxPositionError < 0 {
		err = multierr.Append(err, errors.New("max_position_error must not be negative"))
	}
	if o.MaxOrientationErrorDegrees < 0 {
		err = multierr.Append(err, errors.New("max_orientation_error_degrees must not be negative"))
	}
	if o.LookAheadDepth < 0 {
		err = multierr.Append(err, errors.New("look_ahead_depth must not be negative"))
	}
	for name, v := range map[string]float64{
		"smooth_angle_degrees":    o.SmoothAngleDegrees,
		"max_step_angle_degrees":  o.MaxStepAngleDegrees,
		"max_align_angle_degrees": o.MaxAlignAngleDegrees,
		"explore_angle_degrees":   o.ExploreAngleDegrees,
	} {
		if v <= 0 || v > 180 {
			err = multierr.Append(err, errors.Errorf("%s must be in (0, 180], got %.3f", name, v))
		}
	}
	if o.TwistNoiseDegrees < 0 {
		err = multierr.Append(err, errors.New("twist_noise_degrees must not be negative"))
	}
	if o.LockThreshold < 0 {
		err = multierr.Append(err, errors.New("lock_threshold must not be negative"))
	}
	if o.ExploreSamples < 0 {
		err = multierr.Append(err, errors.New("explore_samples must not be negative"))
	}
	if o.WeightRatio <= 0 || o.WeightRatioNear <= 0 {
		err = multierr.Append(err, errors.New("weight ratios must be positive"))
	}
	if o.NearThreshold < 0 {
		err = multierr.Append(err, errors.New("near_threshold must not be negative"))
	}
	if o.TreeSubIterations < 1 {
		err = multierr.Append(err, errors.Errorf("tree_sub_iterations must be positive, got %d", o.TreeSubIterations))
	}
	return err
}

func (o *Options) maxStepAngle() float64 {
	return utils.DegToRad(o.MaxStepAngleDegrees)
}

func (o *Options) maxAlignAngle() float64 {
	return utils.DegToRad(o.MaxAlignAngleDegrees)
}

func (o *Options) smoothAngle() float64 {
	return utils.DegToRad(o.SmoothAngleDegrees)
}

func (o *Options) twistNoise() float64 {
	return utils.DegToRad(o.TwistNoiseDegrees)
}

func (o *Options) exploreAngle() float64 {
	return utils.DegToRad(o.ExploreAngleDegrees)
}
