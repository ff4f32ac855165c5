// Package skeleton holds the runtime joint hierarchy.
//
// A Skeleton is immutable once built. Joints are stored so that every parent
// precedes its children, which lets hierarchy jobs run in a single forward pass.
package skeleton

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

const (
	// MaxJointsNumBits is the bit width used to pack joint indices.
	MaxJointsNumBits = 10
	// MaxJoints is the largest number of joints a skeleton can hold.
	// The all-ones index is reserved for "no parent" in packed form.
	MaxJoints = 1<<MaxJointsNumBits - 1
	// MaxSoaJoints is the SoA batch count for a skeleton of MaxJoints.
	MaxSoaJoints = (MaxJoints + math.SoaWidth - 1) / math.SoaWidth
	// NoParent is the parent index of root joints.
	NoParent = -1
)

// Skeleton errors.
var (
	ErrTooManyJoints  = errors.New("skeleton: too many joints")
	ErrMismatchedData = errors.New("skeleton: joint arrays have different lengths")
	ErrParentOrder    = errors.New("skeleton: parent must precede its children")
	ErrEmptyName      = errors.New("skeleton: joint name is empty")
)

// Skeleton is a joint hierarchy with a bind pose.
type Skeleton struct {
	names    []string
	parents  []int16
	leaves   []bool
	bindPose []math.SoaTransform

	// Child/sibling links let traversals run without scanning.
	firstChild  []int16
	nextSibling []int16
	firstRoot   int16
}

// New builds a skeleton from per-joint names, parent indices and bind-pose
// transforms. Names must be non-empty and each parent index must be NoParent
// or smaller than the joint's own index.
func New(names []string, parents []int, bindPose []math.Transform) (*Skeleton, error) {
	n := len(names)
	if len(parents) != n || len(bindPose) != n {
		return nil, fmt.Errorf("%w: %d names, %d parents, %d transforms",
			ErrMismatchedData, n, len(parents), len(bindPose))
	}
	if n > MaxJoints {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyJoints, n, MaxJoints)
	}
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("%w: joint %d", ErrEmptyName, i)
		}
	}

	s := &Skeleton{
		names:       append([]string(nil), names...),
		parents:     make([]int16, n),
		leaves:      make([]bool, n),
		bindPose:    math.PackTransforms(bindPose),
		firstChild:  make([]int16, n),
		nextSibling: make([]int16, n),
		firstRoot:   NoParent,
	}

	for i := range s.firstChild {
		s.firstChild[i] = NoParent
		s.nextSibling[i] = NoParent
		s.leaves[i] = true
	}

	// Walk backwards so prepending keeps siblings in storage order.
	for i := n - 1; i >= 0; i-- {
		p := parents[i]
		if p != NoParent && (p < 0 || p >= i) {
			return nil, fmt.Errorf("%w: joint %d has parent %d", ErrParentOrder, i, p)
		}
		s.parents[i] = int16(p)
		if p == NoParent {
			s.nextSibling[i] = s.firstRoot
			s.firstRoot = int16(i)
			continue
		}
		s.leaves[p] = false
		s.nextSibling[i] = s.firstChild[p]
		s.firstChild[p] = int16(i)
	}

	return s, nil
}

// NumJoints returns the number of joints.
func (s *Skeleton) NumJoints() int {
	return len(s.names)
}

// NumSoaJoints returns the number of SoA batches needed for the joints.
func (s *Skeleton) NumSoaJoints() int {
	return len(s.bindPose)
}

// JointNames returns the joint names. The slice must not be modified.
func (s *Skeleton) JointNames() []string {
	return s.names
}

// JointName returns the name of joint j.
func (s *Skeleton) JointName(j int) string {
	return s.names[j]
}

// Parent returns the parent of joint j, or NoParent.
func (s *Skeleton) Parent(j int) int {
	return int(s.parents[j])
}

// JointParents returns a copy of every joint's parent index.
func (s *Skeleton) JointParents() []int {
	out := make([]int, len(s.parents))
	for i, p := range s.parents {
		out[i] = int(p)
	}
	return out
}

// IsLeaf reports whether joint j has no children.
func (s *Skeleton) IsLeaf(j int) bool {
	return s.leaves[j]
}

// BindPose returns the SoA bind pose. The slice must not be modified.
func (s *Skeleton) BindPose() []math.SoaTransform {
	return s.bindPose
}

// JointBindPose unpacks the bind-pose transform of joint j.
func (s *Skeleton) JointBindPose(j int) math.Transform {
	return math.GetTransform(s.bindPose, j)
}

// FindJoint returns the index of the first joint named name, or -1.
func (s *Skeleton) FindJoint(name string) int {
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	return -1
}
