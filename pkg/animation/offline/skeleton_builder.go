package offline

import (
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/pkg/math"
	"github.com/Faultbox/midgard-anim/pkg/skeleton"
)

// BuildSkeleton converts raw into a runtime skeleton. Joints are laid out
// breadth-first so every parent precedes its children, and bind-pose
// rotations are normalized.
func BuildSkeleton(raw *RawSkeleton) (*skeleton.Skeleton, error) {
	if err := raw.Validate(); err != nil {
		logger.Named("offline").Warn("rejected raw skeleton", zap.Error(err))
		return nil, err
	}

	n := raw.NumJoints()
	names := make([]string, 0, n)
	parents := make([]int, 0, n)
	pose := make([]math.Transform, 0, n)
	index := make(map[*RawJoint]int, n)

	raw.IterateBreadthFirst(func(j, parent *RawJoint) {
		p := skeleton.NoParent
		if parent != nil {
			p = index[parent]
		}
		index[j] = len(names)

		t := j.Transform
		t.Rotation = t.Rotation.NormalizeSafe(math.QuatIdentity())

		names = append(names, j.Name)
		parents = append(parents, p)
		pose = append(pose, t)
	})

	s, err := skeleton.New(names, parents, pose)
	if err != nil {
		return nil, err
	}

	logger.Named("offline").Debug("built skeleton",
		zap.Int("joints", s.NumJoints()),
		zap.Int("roots", len(raw.Roots)))
	return s, nil
}
