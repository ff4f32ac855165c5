package offline

import (
	"errors"
	"testing"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

func nearVec(a, b math.Vec3, tol float32) bool {
	return a.Distance(b) <= tol
}

func nearQuat(a, b math.Quat, tol float32) bool {
	d := a.Dot(b)
	if d < 0 {
		d = -d
	}
	return d >= 1-tol
}

func additiveSource() *RawAnimation {
	q0 := math.QuatFromAxisAngle(math.Vec3{Y: 1}, 0.4)
	q1 := math.QuatFromAxisAngle(math.Vec3{Y: 1}, 1.1)
	return &RawAnimation{
		Name:     "wave",
		Duration: 1,
		Tracks: []JointTrack{
			{
				Translations: []TranslationKey{tkey(0, 1, 2, 3), tkey(1, 2, 2, 3)},
				Rotations:    []RotationKey{rkey(0, q0), rkey(1, q1)},
				Scales:       []ScaleKey{skey(0, 2, 2, 2), skey(1, 4, 1, 2)},
			},
			{},
		},
	}
}

func TestBuildAdditiveFirstKey(t *testing.T) {
	src := additiveSource()
	add, err := BuildAdditive(src)
	if err != nil {
		t.Fatalf("BuildAdditive: %v", err)
	}

	if add.Name != src.Name || add.Duration != src.Duration || add.NumTracks() != 2 {
		t.Fatalf("additive header = %q %v %d", add.Name, add.Duration, add.NumTracks())
	}

	tr := add.Tracks[0]
	if tr.Translations[0].Value != math.Vec3Zero() || tr.Translations[1].Value != (math.Vec3{X: 1}) {
		t.Errorf("translations = %+v", tr.Translations)
	}
	if !nearQuat(tr.Rotations[0].Value, math.QuatIdentity(), 1e-6) {
		t.Errorf("first rotation delta = %v, want identity", tr.Rotations[0].Value)
	}
	if want := math.QuatFromAxisAngle(math.Vec3{Y: 1}, 0.7); !nearQuat(tr.Rotations[1].Value, want, 1e-5) {
		t.Errorf("second rotation delta = %v, want %v", tr.Rotations[1].Value, want)
	}
	if tr.Scales[0].Value != math.Vec3One() || tr.Scales[1].Value != (math.Vec3{X: 2, Y: 0.5, Z: 1}) {
		t.Errorf("scales = %+v", tr.Scales)
	}

	empty := add.Tracks[1]
	if len(empty.Translations)+len(empty.Rotations)+len(empty.Scales) != 0 {
		t.Errorf("empty track gained keys: %+v", empty)
	}
}

// Applying a delta on top of its reference restores the source value.
func TestBuildAdditiveFromPose(t *testing.T) {
	src := additiveSource()
	ref := math.Transform{
		Translation: math.Vec3{X: -1, Y: 0.5},
		Rotation:    math.QuatFromAxisAngle(math.Vec3{X: 1}, 0.8),
		Scale:       math.Vec3{X: 2, Y: 4, Z: 0.5},
	}
	pose := []math.Transform{ref, math.TransformIdentity()}

	add, err := BuildAdditiveFromPose(src, pose)
	if err != nil {
		t.Fatalf("BuildAdditiveFromPose: %v", err)
	}

	for k := range src.Tracks[0].Rotations {
		d := add.Tracks[0]
		if got := ref.Translation.Add(d.Translations[k].Value); !nearVec(got, src.Tracks[0].Translations[k].Value, 1e-6) {
			t.Errorf("key %d translation = %v", k, got)
		}
		if got := d.Rotations[k].Value.Mul(ref.Rotation); !nearQuat(got, src.Tracks[0].Rotations[k].Value, 1e-6) {
			t.Errorf("key %d rotation = %v", k, got)
		}
		if got := ref.Scale.Mul(d.Scales[k].Value); !nearVec(got, src.Tracks[0].Scales[k].Value, 1e-6) {
			t.Errorf("key %d scale = %v", k, got)
		}
	}
}

func TestBuildAdditiveRejects(t *testing.T) {
	if _, err := BuildAdditive(&RawAnimation{}); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("BuildAdditive(invalid) = %v, want ErrInvalidDuration", err)
	}
	if _, err := BuildAdditiveFromPose(additiveSource(), []math.Transform{math.TransformIdentity()}); !errors.Is(err, ErrReferencePose) {
		t.Errorf("BuildAdditiveFromPose(short pose) = %v, want ErrReferencePose", err)
	}
}
