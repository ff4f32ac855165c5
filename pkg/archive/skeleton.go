package archive

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/pkg/math"
	"github.com/Faultbox/midgard-anim/pkg/skeleton"
)

// noParentIndex encodes skeleton.NoParent in the 16-bit parent table.
const noParentIndex = skeleton.MaxJoints

// WriteSkeleton serializes s.
func WriteSkeleton(w io.Writer, s *skeleton.Skeleton) error {
	out := newWriter(w)
	out.header(SkeletonTag, SkeletonVersion)
	writeSkeletonBody(out, s)
	return out.flush()
}

func writeSkeletonBody(out *writer, s *skeleton.Skeleton) {
	n := s.NumJoints()
	out.u32(uint32(n))
	for _, name := range s.JointNames() {
		out.str(name)
	}
	for j := 0; j < n; j++ {
		p := s.Parent(j)
		if p == skeleton.NoParent {
			p = noParentIndex
		}
		out.u16(uint16(p))
	}
	for j := 0; j < n; j++ {
		writeTransform(out, s.JointBindPose(j))
	}
}

func writeTransform(out *writer, t math.Transform) {
	for _, v := range t.Translation.Array() {
		out.f32(v)
	}
	for _, v := range t.Rotation.Array() {
		out.f32(v)
	}
	for _, v := range t.Scale.Array() {
		out.f32(v)
	}
}

// ReadSkeleton deserializes a skeleton written by WriteSkeleton.
func ReadSkeleton(r io.Reader) (*skeleton.Skeleton, error) {
	in := newReader(r)
	in.expect(SkeletonTag, SkeletonVersion)
	return readSkeletonBody(in)
}

func readSkeletonBody(in *reader) (*skeleton.Skeleton, error) {
	n := in.count("joint", skeleton.MaxJoints)
	names := make([]string, n)
	for j := range names {
		names[j] = in.str()
	}
	parents := make([]int, n)
	for j := range parents {
		p := int(in.u16())
		if p == noParentIndex {
			p = skeleton.NoParent
		}
		parents[j] = p
	}
	pose := make([]math.Transform, n)
	for j := range pose {
		pose[j] = readTransform(in)
	}
	if in.err != nil {
		logger.Named("archive").Warn("rejected skeleton", zap.Error(in.err))
		return nil, in.err
	}

	s, err := skeleton.New(names, parents, pose)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	logger.Named("archive").Debug("loaded skeleton", zap.Int("joints", n))
	return s, nil
}

func readTransform(in *reader) math.Transform {
	var t, s [3]float32
	var q [4]float32
	for i := range t {
		t[i] = in.f32()
	}
	for i := range q {
		q[i] = in.f32()
	}
	for i := range s {
		s[i] = in.f32()
	}
	return math.Transform{
		Translation: math.Vec3FromArray(t),
		Rotation:    math.QuatFromArray(q),
		Scale:       math.Vec3FromArray(s),
	}
}
