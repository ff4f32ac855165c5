package offline_test

import (
	"testing"

	"github.com/Faultbox/midgard-anim/pkg/animation"
	"github.com/Faultbox/midgard-anim/pkg/animation/offline"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

func TestSampleBlendLocalToModel(t *testing.T) {
	rawSkeleton := &offline.RawSkeleton{Roots: []offline.RawJoint{{
		Name:      "root",
		Transform: math.Transform{Translation: math.Vec3{Y: 1}, Rotation: math.QuatIdentity(), Scale: math.Vec3One()},
		Children: []offline.RawJoint{{
			Name:      "child",
			Transform: math.Transform{Translation: math.Vec3{X: 1}, Rotation: math.QuatIdentity(), Scale: math.Vec3One()},
		}},
	}}}
	rawAnimation := &offline.RawAnimation{
		Duration: 1,
		Tracks: []offline.JointTrack{
			{Translations: []offline.TranslationKey{
				{Time: 0, Value: math.Vec3{}},
				{Time: 1, Value: math.Vec3{Y: 2}},
			}},
			{},
		},
	}

	skel, err := offline.BuildSkeleton(rawSkeleton)
	if err != nil {
		t.Fatalf("BuildSkeleton: %v", err)
	}
	anim, err := offline.BuildAnimation(rawAnimation)
	if err != nil {
		t.Fatalf("BuildAnimation: %v", err)
	}

	locals := make([]math.SoaTransform, skel.NumSoaJoints())
	sampling := animation.SamplingJob{
		Animation: anim,
		Context:   animation.NewSamplingContext(skel.NumJoints()),
		Ratio:     0.5,
		Skeleton:  skel,
		Output:    locals,
	}
	if !sampling.Run() {
		t.Fatalf("sampling: %v", sampling.Check())
	}

	if got := math.GetTransform(locals, 0).Translation; got != (math.Vec3{Y: 1}) {
		t.Errorf("root local translation = %v, want (0, 1, 0)", got)
	}
	if got := math.GetTransform(locals, 1); got != skel.JointBindPose(1) {
		t.Errorf("child local = %+v, want bind pose", got)
	}

	blended := make([]math.SoaTransform, skel.NumSoaJoints())
	blending := animation.NewBlendingJob(skel.BindPose(), blended)
	blending.Layers = []animation.BlendingLayer{{Transform: locals, Weight: 1}}
	if !blending.Run() {
		t.Fatalf("blending: %v", blending.Check())
	}

	models := make([]math.Mat4, skel.NumJoints())
	ltm := animation.LocalToModelJob{Skeleton: skel, Input: blended, Output: models}
	if !ltm.Run() {
		t.Fatalf("local-to-model: %v", ltm.Check())
	}

	if got := models[0].Translation(); got != (math.Vec3{Y: 1}) {
		t.Errorf("root model translation = %v, want (0, 1, 0)", got)
	}
	if got := models[1].Translation(); got != (math.Vec3{X: 1, Y: 1}) {
		t.Errorf("child model translation = %v, want (1, 1, 0)", got)
	}
}
