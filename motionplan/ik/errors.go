package ik

import "github.com/pkg/errors"

var (
	errNoJoints    = errors.New("cannot solve a chain without joints")
	errNilSkeleton = errors.New("tree solver needs a root joint")
)

// NewEffectorNotFoundError is returned when a target names a joint that is not the effector of any chain.
func NewEffectorNotFoundError(name string) error {
	return errors.Errorf("%q is not the effector of any chain", name)
}

// NewDuplicateEffectorError is returned when two chains of a tree end at the same joint name.
func NewDuplicateEffectorError(name string) error {
	return errors.Errorf("more than one chain ends at %q", name)
}
