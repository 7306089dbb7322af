package referenceframe

import "github.com/pkg/errors"

// ErrEmptyChain is returned when a chain is built from no joints.
var ErrEmptyChain = errors.New("chain must contain at least one joint")

// NewChainBrokenError returns an error indicating that child is not attached to parent.
func NewChainBrokenError(parent, child string) error {
	return errors.Errorf("joint %q is not a child of %q", child, parent)
}

// NewNotAncestorError returns an error indicating that root is not above effector in the skeleton.
func NewNotAncestorError(root, effector string) error {
	return errors.Errorf("joint %q is not an ancestor of %q", root, effector)
}

// NewJointNotFoundError returns an error indicating that no joint has the given name.
func NewJointNotFoundError(name string) error {
	return errors.Errorf("joint %q not found", name)
}

// NewDuplicateJointError returns an error indicating that a joint name is used twice.
func NewDuplicateJointError(name string) error {
	return errors.Errorf("joint %q defined more than once", name)
}

// NewUnsupportedConstraintError returns an error for an unknown constraint type.
func NewUnsupportedConstraintError(kind string) error {
	return errors.Errorf("unsupported constraint type %q", kind)
}
