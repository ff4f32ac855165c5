// Package offline holds the editable animation assets and the builders that
// turn them into the runtime skeleton and animation types.
package offline

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-anim/pkg/math"
	"github.com/Faultbox/midgard-anim/pkg/skeleton"
)

// Raw asset validation errors.
var (
	ErrTooManyJoints   = errors.New("offline: too many joints")
	ErrInvalidDuration = errors.New("offline: duration must be positive")
	ErrTooManyTracks   = errors.New("offline: too many tracks")
	ErrKeyOutOfRange   = errors.New("offline: key time outside [0, duration]")
	ErrKeyOrder        = errors.New("offline: key times must be strictly increasing")
	ErrReferencePose   = errors.New("offline: reference pose has fewer joints than tracks")
	ErrEmptyName       = errors.New("offline: joint name is empty")
)

// RawJoint is one joint of an editable skeleton with its bind-pose local
// transform and its children.
type RawJoint struct {
	Name      string
	Transform math.Transform
	Children  []RawJoint
}

// RawSkeleton is an editable joint hierarchy. It may have several roots.
type RawSkeleton struct {
	Roots []RawJoint
}

// NumJoints counts every joint of the hierarchy.
func (s *RawSkeleton) NumJoints() int {
	n := 0
	s.IterateDepthFirst(func(*RawJoint, *RawJoint) { n++ })
	return n
}

// Validate reports whether the hierarchy fits the runtime limits and every
// joint is named.
func (s *RawSkeleton) Validate() error {
	if n := s.NumJoints(); n > skeleton.MaxJoints {
		return fmt.Errorf("%w: %d > %d", ErrTooManyJoints, n, skeleton.MaxJoints)
	}
	var unnamed string
	s.IterateDepthFirst(func(j, parent *RawJoint) {
		if j.Name == "" && unnamed == "" {
			unnamed = "root"
			if parent != nil {
				unnamed = "child of " + parent.Name
			}
		}
	})
	if unnamed != "" {
		return fmt.Errorf("%w: %s", ErrEmptyName, unnamed)
	}
	return nil
}

// IterateDepthFirst calls fn for every joint, parents before children. The
// parent argument is nil for roots.
func (s *RawSkeleton) IterateDepthFirst(fn func(joint, parent *RawJoint)) {
	for i := range s.Roots {
		iterateDepthFirst(&s.Roots[i], nil, fn)
	}
}

func iterateDepthFirst(j, parent *RawJoint, fn func(joint, parent *RawJoint)) {
	fn(j, parent)
	for i := range j.Children {
		iterateDepthFirst(&j.Children[i], j, fn)
	}
}

// IterateBreadthFirst calls fn for every joint level by level, starting with
// the roots. This is the order the runtime skeleton stores joints in.
func (s *RawSkeleton) IterateBreadthFirst(fn func(joint, parent *RawJoint)) {
	type item struct{ joint, parent *RawJoint }

	queue := make([]item, 0, len(s.Roots))
	for i := range s.Roots {
		queue = append(queue, item{&s.Roots[i], nil})
	}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		fn(it.joint, it.parent)
		for i := range it.joint.Children {
			queue = append(queue, item{&it.joint.Children[i], it.joint})
		}
	}
}
