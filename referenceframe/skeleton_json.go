package referenceframe

import (
	"encoding/json"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	spatial "github.com/kinetree/kinetree/spatialmath"
	"github.com/kinetree/kinetree/utils"
)

// supported constraint types.
const (
	HingeConstraintType         = "hinge"
	BallAndSocketConstraintType = "ball_and_socket"
)

// ErrNoSkeletonInformation is used when a skeleton file is empty.
var ErrNoSkeletonInformation = errors.New("no skeleton information")

// SkeletonConfigJSON represents all supported fields in a skeleton JSON file.
type SkeletonConfigJSON struct {
	Name    string                 `json:"name"`
	Joints  []JointConfig          `json:"joints"`
	Targets []TargetConfig         `json:"targets,omitempty"`
	Solver  map[string]interface{} `json:"solver,omitempty"`
}

// JointConfig describes a single joint. Orientation is an axis angle in radians.
type JointConfig struct {
	ID          string            `json:"id"`
	Parent      string            `json:"parent,omitempty"`
	Translation r3.Vector         `json:"translation"`
	Orientation *spatial.R4AA     `json:"orientation,omitempty"`
	Scale       float64           `json:"scale,omitempty"`
	Constraint  *ConstraintConfig `json:"constraint,omitempty"`
}

// ConstraintConfig holds the type of a constraint and its free-form attributes.
type ConstraintConfig struct {
	Type       string                 `json:"type"`
	Attributes map[string]interface{} `json:"attributes"`
}

// HingeConfig are the attributes of a hinge constraint.
type HingeConfig struct {
	Axis       r3.Vector `json:"axis"`
	MinDegrees float64   `json:"min_degrees"`
	MaxDegrees float64   `json:"max_degrees"`
}

// BallAndSocketConfig are the attributes of a ball and socket constraint.
type BallAndSocketConfig struct {
	TwistAxis       r3.Vector `json:"twist_axis"`
	ConeDegrees     float64   `json:"cone_degrees"`
	MinTwistDegrees float64   `json:"min_twist_degrees"`
	MaxTwistDegrees float64   `json:"max_twist_degrees"`
}

// TargetConfig binds a world pose to an effector joint.
type TargetConfig struct {
	Effector    string        `json:"effector"`
	Position    r3.Vector     `json:"position"`
	Orientation *spatial.R4AA `json:"orientation,omitempty"`
}

// Skeleton is a parsed skeleton file.
type Skeleton struct {
	Name    string
	Root    *Joint
	Joints  map[string]*Joint
	Targets map[string]spatial.Pose
	Solver  map[string]interface{}
}

// ParseSkeletonJSONFile reads and parses a skeleton file.
func ParseSkeletonJSONFile(filename string) (*Skeleton, error) {
	//nolint:gosec
	jsonData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read skeleton file %q", filename)
	}
	return UnmarshalSkeletonJSON(jsonData)
}

// UnmarshalSkeletonJSON will parse the given JSON data into a skeleton.
func UnmarshalSkeletonJSON(jsonData []byte) (*Skeleton, error) {
	if len(jsonData) == 0 {
		return nil, ErrNoSkeletonInformation
	}
	cfg := &SkeletonConfigJSON{}
	if err := json.Unmarshal(jsonData, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}
	return cfg.ParseConfig()
}

// ParseConfig converts the config into joints, constraints and targets.
func (cfg *SkeletonConfigJSON) ParseConfig() (*Skeleton, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	skel := &Skeleton{
		Name:    cfg.Name,
		Joints:  map[string]*Joint{},
		Targets: map[string]spatial.Pose{},
		Solver:  cfg.Solver,
	}

	// parents may be declared after their children, so keep passing over the list until nothing new is built
	pending := cfg.Joints
	for len(pending) > 0 {
		var next []JointConfig
		for _, jc := range pending {
			var parent *Joint
			if jc.Parent != "" {
				p, ok := skel.Joints[jc.Parent]
				if !ok {
					next = append(next, jc)
					continue
				}
				parent = p
			}
			j, err := jc.build(parent)
			if err != nil {
				return nil, errors.Wrapf(err, "joint %q", jc.ID)
			}
			skel.Joints[jc.ID] = j
			if parent == nil {
				skel.Root = j
			}
		}
		if len(next) == len(pending) {
			return nil, errors.Errorf("joint %q has a parent cycle", next[0].ID)
		}
		pending = next
	}

	for _, tc := range cfg.Targets {
		var orient spatial.Orientation
		if tc.Orientation != nil {
			orient = tc.Orientation
		}
		skel.Targets[tc.Effector] = spatial.NewPose(tc.Position, orient)
	}
	return skel, nil
}

func (cfg *SkeletonConfigJSON) validate() error {
	var err error
	ids := map[string]bool{}
	roots := 0
	for _, jc := range cfg.Joints {
		if jc.ID == "" {
			err = multierr.Append(err, errors.New("joint with empty id"))
			continue
		}
		if ids[jc.ID] {
			err = multierr.Append(err, NewDuplicateJointError(jc.ID))
		}
		ids[jc.ID] = true
		if jc.Parent == "" {
			roots++
		}
	}
	if len(cfg.Joints) > 0 && roots != 1 {
		err = multierr.Append(err, errors.Errorf("skeleton must have exactly one root, found %d", roots))
	}
	if len(cfg.Joints) == 0 {
		err = multierr.Append(err, ErrEmptyChain)
	}
	for _, jc := range cfg.Joints {
		if jc.Parent != "" && !ids[jc.Parent] {
			err = multierr.Append(err, NewJointNotFoundError(jc.Parent))
		}
	}
	for _, tc := range cfg.Targets {
		if !ids[tc.Effector] {
			err = multierr.Append(err, NewJointNotFoundError(tc.Effector))
		}
	}
	return err
}

func (jc *JointConfig) build(parent *Joint) (*Joint, error) {
	var orient spatial.Orientation
	if jc.Orientation != nil {
		orient = jc.Orientation
	}
	j := NewJoint(jc.ID, parent, jc.Translation, orient)
	if jc.Scale != 0 {
		j.SetScale(jc.Scale)
	}
	if jc.Constraint != nil {
		c, err := jc.Constraint.ParseConfig(j)
		if err != nil {
			return nil, err
		}
		j.SetConstraint(c)
	}
	return j, nil
}

// ParseConfig decodes the attribute map into the constraint named by Type. The joint's current
// rotation becomes the constraint's rest rotation.
func (cc *ConstraintConfig) ParseConfig(j *Joint) (Constraint, error) {
	switch cc.Type {
	case HingeConstraintType:
		var conf HingeConfig
		if err := decodeAttributes(cc.Attributes, &conf); err != nil {
			return nil, err
		}
		return NewHinge(j.Rotation(), conf.Axis, Limit{
			Min: utils.DegToRad(conf.MinDegrees),
			Max: utils.DegToRad(conf.MaxDegrees),
		})
	case BallAndSocketConstraintType:
		var conf BallAndSocketConfig
		if err := decodeAttributes(cc.Attributes, &conf); err != nil {
			return nil, err
		}
		return NewBallAndSocket(j.Rotation(), conf.TwistAxis, utils.DegToRad(conf.ConeDegrees), Limit{
			Min: utils.DegToRad(conf.MinTwistDegrees),
			Max: utils.DegToRad(conf.MaxTwistDegrees),
		})
	default:
		return nil, NewUnsupportedConstraintError(cc.Type)
	}
}

func decodeAttributes(attributes map[string]interface{}, result interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: result})
	if err != nil {
		return err
	}
	return errors.Wrap(decoder.Decode(attributes), "failed to decode constraint attributes")
}
