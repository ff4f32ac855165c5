package animation

import (
	"testing"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

func uniformPose(n int, tr math.Transform) []math.SoaTransform {
	src := make([]math.Transform, n)
	for i := range src {
		src[i] = tr
	}
	return math.PackTransforms(src)
}

func translated(x, y, z float32) math.Transform {
	t := math.TransformIdentity()
	t.Translation = math.Vec3{X: x, Y: y, Z: z}
	return t
}

func nearTransform(a, b math.Transform, tol float32) bool {
	return a.Translation.Distance(b.Translation) <= tol &&
		a.Scale.Distance(b.Scale) <= tol &&
		a.Rotation.Dot(b.Rotation) >= 1-tol
}

func TestBlendingJobValidate(t *testing.T) {
	bind := uniformPose(5, math.TransformIdentity())
	layer := BlendingLayer{Transform: make([]math.SoaTransform, 2), Weight: 1}

	tests := []struct {
		name  string
		job   BlendingJob
		valid bool
	}{
		{"default", BlendingJob{}, false},
		{"no layers", BlendingJob{Threshold: DefaultBlendingThreshold, BindPose: bind, Output: make([]math.SoaTransform, 2)}, true},
		{"small output", BlendingJob{Threshold: DefaultBlendingThreshold, BindPose: bind, Output: make([]math.SoaTransform, 1)}, false},
		{"negative threshold", BlendingJob{Threshold: -1, BindPose: bind, Output: make([]math.SoaTransform, 2)}, false},
		{"zero threshold", BlendingJob{BindPose: bind, Output: make([]math.SoaTransform, 2)}, false},
		{"constructor", *NewBlendingJob(bind, make([]math.SoaTransform, 2)), true},
		{"valid layer", BlendingJob{Threshold: DefaultBlendingThreshold, Layers: []BlendingLayer{layer}, BindPose: bind, Output: make([]math.SoaTransform, 2)}, true},
		{
			name:  "small layer",
			job:   BlendingJob{Threshold: DefaultBlendingThreshold, Layers: []BlendingLayer{{Transform: make([]math.SoaTransform, 1)}}, BindPose: bind, Output: make([]math.SoaTransform, 2)},
			valid: false,
		},
		{
			name: "small joint weights",
			job: BlendingJob{
				Threshold: DefaultBlendingThreshold,
				Layers:    []BlendingLayer{{Transform: make([]math.SoaTransform, 2), JointWeights: make([]math.SoaFloat, 1)}},
				BindPose:  bind, Output: make([]math.SoaTransform, 2),
			},
			valid: false,
		},
		{
			name: "small additive layer",
			job: BlendingJob{
				Threshold:      DefaultBlendingThreshold,
				AdditiveLayers: []BlendingLayer{{Transform: make([]math.SoaTransform, 1)}},
				BindPose:       bind, Output: make([]math.SoaTransform, 2),
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.job.Validate(); got != tt.valid {
				t.Errorf("Validate() = %v, want %v (%v)", got, tt.valid, tt.job.Check())
			}
		})
	}
}

func TestBlendingInvalidJobLeavesOutput(t *testing.T) {
	bind := uniformPose(4, translated(1, 2, 3))
	sentinel := translated(-5, -5, -5)

	tests := []struct {
		name string
		edit func(j *BlendingJob)
	}{
		{"zero threshold", func(j *BlendingJob) { j.Threshold = 0 }},
		{"short layer", func(j *BlendingJob) { j.Layers[0].Transform = nil }},
		{"short joint weights", func(j *BlendingJob) { j.Layers[0].JointWeights = []math.SoaFloat{} }},
		{"short additive layer", func(j *BlendingJob) {
			j.AdditiveLayers = []BlendingLayer{{Weight: 1}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := uniformPose(4, sentinel)
			job := NewBlendingJob(bind, out)
			job.Layers = []BlendingLayer{{Transform: uniformPose(4, translated(9, 9, 9)), Weight: 1}}
			tt.edit(job)

			if job.Run() {
				t.Fatal("Run() = true on an invalid job")
			}
			if got := out[0].Lane(0); got != sentinel {
				t.Errorf("output written: %v", got)
			}
		})
	}
}

func TestBlendingEmptyLayersYieldBindPose(t *testing.T) {
	bind := uniformPose(6, translated(1, 2, 3))
	out := make([]math.SoaTransform, 2)
	job := NewBlendingJob(bind, out)
	if !job.Run() {
		t.Fatalf("Run failed: %v", job.Check())
	}
	for i := range bind {
		if out[i] != bind[i] {
			t.Errorf("batch %d = %v, want bind pose", i, out[i])
		}
	}
}

func TestBlendingSingleLayerIdentity(t *testing.T) {
	src := []math.Transform{
		{Translation: math.Vec3{X: 1.3, Y: -2}, Rotation: math.QuatFromAxisAngle(math.Vec3{Y: 1}, 0.7), Scale: math.Vec3{X: 1, Y: 2, Z: 3}},
		{Translation: math.Vec3{Z: 9}, Rotation: math.Quat{X: 0.5, Y: 0.5, Z: 0.5, W: -0.5}, Scale: math.Vec3One()},
		translated(0.1, 0.2, 0.3),
	}
	input := math.PackTransforms(src)
	out := make([]math.SoaTransform, 1)

	job := BlendingJob{
		Threshold: DefaultBlendingThreshold,
		Layers:    []BlendingLayer{{Transform: input, Weight: 1}},
		BindPose:  uniformPose(3, translated(50, 50, 50)),
		Output:    out,
	}
	if !job.Run() {
		t.Fatalf("Run failed: %v", job.Check())
	}
	for i, want := range src {
		if got := math.GetTransform(out, i); got != want {
			t.Errorf("joint %d = %v, want %v", i, got, want)
		}
	}
}

func TestBlendingTwoLayers(t *testing.T) {
	a := math.Transform{Translation: math.Vec3{X: 2}, Rotation: math.QuatIdentity(), Scale: math.Vec3{X: 1, Y: 1, Z: 1}}
	b := math.Transform{
		Translation: math.Vec3{Y: 4},
		Rotation:    math.QuatFromAxisAngle(math.Vec3{Z: 1}, 1).Negate(),
		Scale:       math.Vec3{X: 3, Y: 3, Z: 3},
	}
	out := make([]math.SoaTransform, 1)

	job := BlendingJob{
		Threshold: DefaultBlendingThreshold,
		Layers: []BlendingLayer{
			{Transform: uniformPose(4, a), Weight: 0.5},
			{Transform: uniformPose(4, b), Weight: 0.5},
		},
		BindPose: uniformPose(4, math.TransformIdentity()),
		Output:   out,
	}
	if !job.Run() {
		t.Fatalf("Run failed: %v", job.Check())
	}

	want := math.Transform{
		Translation: math.Vec3{X: 1, Y: 2},
		Rotation:    math.QuatFromAxisAngle(math.Vec3{Z: 1}, 0.5),
		Scale:       math.Vec3{X: 2, Y: 2, Z: 2},
	}
	if got := out[0].Lane(2); !nearTransform(got, want, 1e-5) {
		t.Errorf("blend = %v, want %v", got, want)
	}
}

func TestBlendingWeightsAreNormalized(t *testing.T) {
	out := make([]math.SoaTransform, 1)
	job := BlendingJob{
		Threshold: DefaultBlendingThreshold,
		Layers: []BlendingLayer{
			{Transform: uniformPose(1, translated(4, 0, 0)), Weight: 3},
			{Transform: uniformPose(1, translated(0, 0, 0)), Weight: 1},
		},
		BindPose: uniformPose(1, math.TransformIdentity()),
		Output:   out,
	}
	job.Run()
	if got := out[0].Lane(0).Translation.X; got != 3 {
		t.Errorf("x = %v, want 3", got)
	}
}

func TestBlendingThreshold(t *testing.T) {
	bind := translated(7, 7, 7)
	tests := []struct {
		name      string
		threshold float32
		weight    float32
		want      float32
	}{
		{"default threshold, low weight", DefaultBlendingThreshold, 0.05, 7},
		{"default threshold, enough weight", DefaultBlendingThreshold, 0.2, 1},
		{"custom threshold", 0.5, 0.3, 7},
		{"tiny threshold", 1e-4, 0.05, 1},
		{"negative weight", DefaultBlendingThreshold, -1, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]math.SoaTransform, 1)
			job := BlendingJob{
				Threshold: tt.threshold,
				Layers:    []BlendingLayer{{Transform: uniformPose(1, translated(1, 1, 1)), Weight: tt.weight}},
				BindPose:  uniformPose(1, bind),
				Output:    out,
			}
			if !job.Run() {
				t.Fatalf("Run failed: %v", job.Check())
			}
			if got := out[0].Lane(0).Translation.X; absf(got-tt.want) > 1e-5 {
				t.Errorf("x = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBlendingJointMasks(t *testing.T) {
	bind := translated(9, 0, 0)
	out := make([]math.SoaTransform, 1)
	job := BlendingJob{
		Threshold: DefaultBlendingThreshold,
		Layers: []BlendingLayer{
			{
				Transform:    uniformPose(4, translated(2, 0, 0)),
				Weight:       1,
				JointWeights: []math.SoaFloat{{1, 0, 0.5, -1}},
			},
			{
				Transform:    uniformPose(4, translated(4, 0, 0)),
				Weight:       1,
				JointWeights: []math.SoaFloat{{0, 0, 0.5, 0}},
			},
		},
		BindPose: uniformPose(4, bind),
		Output:   out,
	}
	if !job.Run() {
		t.Fatalf("Run failed: %v", job.Check())
	}

	want := []float32{2, 9, 3, 9}
	for lane, x := range want {
		if got := out[0].Lane(lane).Translation.X; got != x {
			t.Errorf("joint %d x = %v, want %v", lane, got, x)
		}
	}
}

func TestBlendingAdditive(t *testing.T) {
	base := math.Transform{
		Translation: math.Vec3{X: 1, Y: 2, Z: 3},
		Rotation:    math.QuatFromAxisAngle(math.Vec3{X: 1}, 0.3),
		Scale:       math.Vec3{X: 2, Y: 2, Z: 2},
	}
	delta := math.Transform{
		Translation: math.Vec3{Y: 1},
		Rotation:    math.QuatFromAxisAngle(math.Vec3{Y: 1}, 0.8),
		Scale:       math.Vec3{X: 1.5, Y: 1, Z: 0.5},
	}

	run := func(weights ...float32) math.Transform {
		var additive []BlendingLayer
		for _, w := range weights {
			additive = append(additive, BlendingLayer{Transform: uniformPose(1, delta), Weight: w})
		}
		out := make([]math.SoaTransform, 1)
		job := BlendingJob{
			Threshold:      DefaultBlendingThreshold,
			Layers:         []BlendingLayer{{Transform: uniformPose(1, base), Weight: 1}},
			AdditiveLayers: additive,
			BindPose:       uniformPose(1, math.TransformIdentity()),
			Output:         out,
		}
		if !job.Run() {
			t.Fatalf("Run failed: %v", job.Check())
		}
		return out[0].Lane(0)
	}

	full := run(1)
	want := math.Transform{
		Translation: base.Translation.Add(delta.Translation),
		Rotation:    delta.Rotation.Mul(base.Rotation),
		Scale:       base.Scale.Mul(delta.Scale),
	}
	if !nearTransform(full, want, 1e-5) {
		t.Errorf("full additive = %v, want %v", full, want)
	}

	if got := run(0); got != base {
		t.Errorf("zero weight additive = %v, want %v", got, base)
	}

	half := run(0.5)
	if got := half.Translation.Y; got != 2.5 {
		t.Errorf("half additive translation y = %v, want 2.5", got)
	}
	if got := half.Scale.X; got != 2.5 {
		t.Errorf("half additive scale x = %v, want 2.5", got)
	}

	// Subtracting what was added restores the base pose.
	if got := run(0.7, -0.7); !nearTransform(got, base, 1e-5) {
		t.Errorf("add then subtract = %v, want %v", got, base)
	}
}
