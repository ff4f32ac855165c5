package animation

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/Faultbox/midgard-anim/pkg/math"
	"github.com/Faultbox/midgard-anim/pkg/skeleton"
)

func twoJointSkeleton(t *testing.T) *skeleton.Skeleton {
	t.Helper()
	root := math.TransformIdentity()
	root.Translation = math.Vec3{Y: 1}
	child := math.TransformIdentity()
	child.Translation = math.Vec3{X: 1}
	s, err := skeleton.New([]string{"root", "child"}, []int{skeleton.NoParent, 0}, []math.Transform{root, child})
	if err != nil {
		t.Fatalf("skeleton.New: %v", err)
	}
	return s
}

func TestSamplingJobValidate(t *testing.T) {
	a := mustAnimation(t, 1, make([]TrackKeys, 5))

	tests := []struct {
		name  string
		job   SamplingJob
		valid bool
	}{
		{"default", SamplingJob{}, false},
		{"no context", SamplingJob{Animation: a, Output: make([]math.SoaTransform, 2)}, false},
		{"no animation", SamplingJob{Context: NewSamplingContext(5), Output: make([]math.SoaTransform, 2)}, false},
		{"small context", SamplingJob{Animation: a, Context: NewSamplingContext(4), Output: make([]math.SoaTransform, 2)}, false},
		{"small output", SamplingJob{Animation: a, Context: NewSamplingContext(5), Output: make([]math.SoaTransform, 1)}, false},
		{"valid", SamplingJob{Animation: a, Context: NewSamplingContext(5), Output: make([]math.SoaTransform, 2)}, true},
		{"bigger buffers", SamplingJob{Animation: a, Context: NewSamplingContext(40), Output: make([]math.SoaTransform, 9)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.job.Validate(); got != tt.valid {
				t.Errorf("Validate() = %v, want %v (%v)", got, tt.valid, tt.job.Check())
			}
			if !tt.valid && !errors.Is(tt.job.Check(), ErrInvalidJob) {
				t.Errorf("Check() should wrap ErrInvalidJob, got %v", tt.job.Check())
			}
		})
	}
}

func TestSamplingJobInvalidDoesNotWrite(t *testing.T) {
	a := mustAnimation(t, 1, []TrackKeys{{Translations: []Float3Key{f3(0, 1, 2, 3)}}})
	out := []math.SoaTransform{{}}
	job := SamplingJob{Animation: a, Context: NewSamplingContext(0), Output: out}
	if job.Run() {
		t.Fatal("Run should fail with an undersized context")
	}
	if out[0] != (math.SoaTransform{}) {
		t.Error("invalid job wrote output")
	}
}

func TestSamplingBindPoseFallback(t *testing.T) {
	s := twoJointSkeleton(t)
	// Root has translation keys only, child has nothing at all.
	a := mustAnimation(t, 1, []TrackKeys{
		{Translations: []Float3Key{f3(0, 0, 0, 0), f3(1, 0, 2, 0)}},
		{},
	})

	ctx := NewSamplingContext(2)
	out := make([]math.SoaTransform, 1)
	for _, ratio := range []float32{0, 0.25, 0.5, 1} {
		job := SamplingJob{Animation: a, Context: ctx, Ratio: ratio, Skeleton: s, Output: out}
		if !job.Run() {
			t.Fatalf("Run failed: %v", job.Check())
		}
		child := out[0].Lane(1)
		if child != s.JointBindPose(1) {
			t.Errorf("ratio %v: child = %v, want bind pose %v", ratio, child, s.JointBindPose(1))
		}
		root := out[0].Lane(0)
		if root.Rotation != s.JointBindPose(0).Rotation || root.Scale != s.JointBindPose(0).Scale {
			t.Errorf("ratio %v: root rotation/scale should come from bind pose, got %v", ratio, root)
		}
	}

	// Without a skeleton, missing components are identity.
	job := SamplingJob{Animation: a, Context: ctx, Ratio: 0.5, Output: out}
	job.Run()
	if got := out[0].Lane(1); got != math.TransformIdentity() {
		t.Errorf("child without skeleton = %v, want identity", got)
	}
}

func TestSamplingInterpolation(t *testing.T) {
	a := mustAnimation(t, 1, []TrackKeys{{
		Translations: []Float3Key{f3(0, 0, 0, 0), f3(1, 0, 2, 0)},
		Rotations: []QuatKey{
			qk(0, math.QuatIdentity()),
			qk(1, math.QuatFromAxisAngle(math.Vec3{Y: 1}, 1.5)),
		},
		Scales: []Float3Key{f3(0, 1, 1, 1), f3(0.5, 2, 2, 2), f3(1, 4, 4, 4)},
	}})

	ctx := NewSamplingContext(1)
	out := make([]math.SoaTransform, 1)
	job := SamplingJob{Animation: a, Context: ctx, Ratio: 0.5, Output: out}
	if !job.Run() {
		t.Fatalf("Run failed: %v", job.Check())
	}

	got := out[0].Lane(0)
	if got.Translation != (math.Vec3{Y: 1}) {
		t.Errorf("translation = %v, want (0, 1, 0)", got.Translation)
	}
	if got.Scale != (math.Vec3{X: 2, Y: 2, Z: 2}) {
		t.Errorf("scale = %v, want (2, 2, 2)", got.Scale)
	}
	want := math.QuatFromAxisAngle(math.Vec3{Y: 1}, 0.75)
	if d := got.Rotation.Dot(want); d < 0.9999 {
		t.Errorf("rotation = %v, want %v", got.Rotation, want)
	}

	// Padding lanes are identity.
	for lane := 1; lane < 4; lane++ {
		if out[0].Lane(lane) != math.TransformIdentity() {
			t.Errorf("padding lane %d = %v", lane, out[0].Lane(lane))
		}
	}
}

func TestSamplingShortestPath(t *testing.T) {
	// The second key is stored in the opposite hemisphere.
	q1 := math.QuatFromAxisAngle(math.Vec3{Z: 1}, 0.5).Negate()
	a := mustAnimation(t, 1, []TrackKeys{{
		Rotations: []QuatKey{qk(0, math.QuatIdentity()), qk(1, q1)},
	}})

	out := make([]math.SoaTransform, 1)
	job := SamplingJob{Animation: a, Context: NewSamplingContext(1), Ratio: 0.5, Output: out}
	job.Run()

	want := math.QuatFromAxisAngle(math.Vec3{Z: 1}, 0.25)
	if d := out[0].Lane(0).Rotation.Dot(want); d < 0.9999 {
		t.Errorf("rotation = %v, want %v", out[0].Lane(0).Rotation, want)
	}
}

func TestSamplingClamping(t *testing.T) {
	a := mustAnimation(t, 4, []TrackKeys{{
		Translations: []Float3Key{f3(0.25, 1, 0, 0), f3(0.5, 2, 0, 0), f3(0.75, 3, 0, 0)},
	}})

	sample := func(r float32) math.Vec3 {
		out := make([]math.SoaTransform, 1)
		job := SamplingJob{Animation: a, Context: NewSamplingContext(1), Ratio: r, Output: out}
		if !job.Run() {
			t.Fatalf("Run failed: %v", job.Check())
		}
		return out[0].Lane(0).Translation
	}

	tests := []struct {
		name  string
		ratio float32
		want  float32
	}{
		{"below zero", -3, 1},
		{"before first key", 0.1, 1},
		{"first key", 0.25, 1},
		{"between", 0.375, 1.5},
		{"last key", 0.75, 3},
		{"after last key", 0.9, 3},
		{"above one", 7, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sample(tt.ratio).X; got != tt.want {
				t.Errorf("x = %v, want %v", got, tt.want)
			}
		})
	}
}

func randomAnimation(t *testing.T, rng *rand.Rand, numTracks int) *Animation {
	tracks := make([]TrackKeys, numTracks)
	for i := range tracks {
		n := rng.Intn(8)
		var ratio float32
		for k := 0; k < n; k++ {
			ratio += rng.Float32()*0.2 + 0.01
			if ratio > 1 {
				break
			}
			tracks[i].Translations = append(tracks[i].Translations, f3(ratio, rng.Float32(), rng.Float32(), rng.Float32()))
			axis := math.Vec3{X: rng.Float32(), Y: rng.Float32(), Z: 1}.Normalize()
			tracks[i].Rotations = append(tracks[i].Rotations, qk(ratio, math.QuatFromAxisAngle(axis, rng.Float32()*6)))
		}
	}
	return mustAnimation(t, 2, tracks)
}

func TestSamplingCacheCoherency(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := randomAnimation(t, rng, 9)

	warm := NewSamplingContext(a.NumTracks())
	warmOut := make([]math.SoaTransform, a.NumSoaTracks())
	freshOut := make([]math.SoaTransform, a.NumSoaTracks())

	ratios := []float32{0}
	for r := float32(0); r < 1.1; r += 0.013 {
		ratios = append(ratios, r)
	}
	// Backward steps and seeks are as valid as forward ones.
	ratios = append(ratios, 0.5, 0.2, 0.95, 0.94, -1, 1)

	for _, r := range ratios {
		warmJob := SamplingJob{Animation: a, Context: warm, Ratio: r, Output: warmOut}
		freshJob := SamplingJob{Animation: a, Context: NewSamplingContext(a.NumTracks()), Ratio: r, Output: freshOut}
		if !warmJob.Run() || !freshJob.Run() {
			t.Fatal("sampling failed")
		}
		for i := range warmOut {
			if warmOut[i] != freshOut[i] {
				t.Fatalf("ratio %v batch %d: warm %v != fresh %v", r, i, warmOut[i], freshOut[i])
			}
		}
	}
}

func TestSamplingContextRebind(t *testing.T) {
	a := mustAnimation(t, 1, []TrackKeys{{Translations: []Float3Key{f3(0, 0, 0, 0), f3(0.5, 1, 0, 0), f3(1, 2, 0, 0)}}})
	b := mustAnimation(t, 1, []TrackKeys{{Translations: []Float3Key{f3(0, 5, 0, 0), f3(1, 6, 0, 0)}}})

	ctx := NewSamplingContext(1)
	out := make([]math.SoaTransform, 1)

	(&SamplingJob{Animation: a, Context: ctx, Ratio: 1, Output: out}).Run()
	if ctx.translationCursors[0] != 1 {
		t.Fatalf("cursor = %d, want 1", ctx.translationCursors[0])
	}

	// Switching animation resets the cursors instead of reusing a stale bracket.
	(&SamplingJob{Animation: b, Context: ctx, Ratio: 0.5, Output: out}).Run()
	if got := out[0].Lane(0).Translation.X; got != 5.5 {
		t.Errorf("x = %v, want 5.5", got)
	}
	if ctx.animation != b {
		t.Error("context should be bound to the last animation")
	}

	ctx.Invalidate()
	if ctx.animation != nil || ctx.translationCursors[0] != 0 {
		t.Error("Invalidate should reset the context")
	}

	ctx.Resize(10)
	if ctx.MaxTracks() != 10 || ctx.MaxSoaTracks() != 3 {
		t.Errorf("after Resize: %d tracks, %d soa", ctx.MaxTracks(), ctx.MaxSoaTracks())
	}
}
