package referenceframe

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	"go.viam.com/test"

	spatial "github.com/kinetree/kinetree/spatialmath"
)

func TestParseSkeletonJSONFile(t *testing.T) {
	t.Run("planar arm", func(t *testing.T) {
		skel, err := ParseSkeletonJSONFile("testjson/planar_arm.json")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, skel.Name, test.ShouldEqual, "planar_arm")
		test.That(t, skel.Root.Name(), test.ShouldEqual, "base")
		test.That(t, len(skel.Joints), test.ShouldEqual, 5)
		test.That(t, skel.Solver["max_iterations"], test.ShouldEqual, 20.)

		chain, err := ChainBetween(skel.Root, skel.Joints["hand"])
		test.That(t, err, test.ShouldBeNil)
		test.That(t, chain.Names(), test.ShouldResemble, []string{"base", "shoulder", "elbow", "wrist", "hand"})
		test.That(t, chain.Reach(), test.ShouldAlmostEqual, 200.)

		target, ok := skel.Targets["hand"]
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, target.Point(), test.ShouldResemble, r3.Vector{X: 150})
	})

	t.Run("humanoid constraints", func(t *testing.T) {
		skel, err := ParseSkeletonJSONFile("testjson/humanoid.json")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(skel.Targets), test.ShouldEqual, 3)

		hinge, ok := skel.Joints["lower_arm_l"].Constraint().(*Hinge)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, hinge.Axis(), test.ShouldResemble, r3.Vector{Y: 1})
		test.That(t, hinge.Limit().Min, test.ShouldAlmostEqual, -150*math.Pi/180)
		test.That(t, hinge.Limit().Max, test.ShouldAlmostEqual, 0.)

		_, ok = skel.Joints["upper_arm_l"].Constraint().(*BallAndSocket)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, skel.Joints["upper_arm_r"].Constraint(), test.ShouldBeNil)
		test.That(t, len(skel.Joints["chest"].Children()), test.ShouldEqual, 3)
	})

	t.Run("cycle", func(t *testing.T) {
		_, err := ParseSkeletonJSONFile("testjson/cycle.json")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "cycle")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ParseSkeletonJSONFile("testjson/nope.json")
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestUnmarshalSkeletonJSON(t *testing.T) {
	_, err := UnmarshalSkeletonJSON(nil)
	test.That(t, err, test.ShouldBeError, ErrNoSkeletonInformation)

	_, err = UnmarshalSkeletonJSON([]byte(`{"joints": [`))
	test.That(t, err, test.ShouldNotBeNil)

	t.Run("out of order parents", func(t *testing.T) {
		skel, err := UnmarshalSkeletonJSON([]byte(`{"joints": [
			{"id": "tip", "parent": "mid", "translation": {"X": 1}},
			{"id": "mid", "parent": "root", "translation": {"X": 1}, "scale": 2},
			{"id": "root", "translation": {"Z": 5}, "orientation": {"th": 1.5707963267948966, "x": 0, "y": 0, "z": 1}}
		]}`))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, skel.Root.Name(), test.ShouldEqual, "root")
		tip := skel.Joints["tip"]
		test.That(t, spatial.R3VectorAlmostEqual(tip.Position(), r3.Vector{Y: 3, Z: 5}, 1e-9), test.ShouldBeTrue)
	})

	t.Run("validation collects every problem", func(t *testing.T) {
		_, err := UnmarshalSkeletonJSON([]byte(`{
			"joints": [
				{"id": "a"},
				{"id": "a"},
				{"id": "b", "parent": "ghost"},
				{"id": "c"}
			],
			"targets": [{"effector": "nobody"}]
		}`))
		test.That(t, err, test.ShouldNotBeNil)
		errs := multierr.Errors(err)
		test.That(t, len(errs), test.ShouldEqual, 4)
		test.That(t, err.Error(), test.ShouldContainSubstring, NewDuplicateJointError("a").Error())
		test.That(t, err.Error(), test.ShouldContainSubstring, NewJointNotFoundError("ghost").Error())
		test.That(t, err.Error(), test.ShouldContainSubstring, NewJointNotFoundError("nobody").Error())
		test.That(t, err.Error(), test.ShouldContainSubstring, "exactly one root")
	})

	t.Run("unknown constraint", func(t *testing.T) {
		_, err := UnmarshalSkeletonJSON([]byte(`{"joints": [
			{"id": "a", "constraint": {"type": "slider"}}
		]}`))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, NewUnsupportedConstraintError("slider").Error())
	})

	t.Run("bad constraint attributes", func(t *testing.T) {
		_, err := UnmarshalSkeletonJSON([]byte(`{"joints": [
			{"id": "a", "constraint": {"type": "hinge", "attributes": {"axis": {"X": 0}, "min_degrees": 0, "max_degrees": 10}}}
		]}`))
		test.That(t, err, test.ShouldNotBeNil)
	})
}
