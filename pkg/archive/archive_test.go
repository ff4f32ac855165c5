package archive

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Faultbox/midgard-anim/pkg/animation"
	"github.com/Faultbox/midgard-anim/pkg/math"
	"github.com/Faultbox/midgard-anim/pkg/skeleton"
)

func testSkeleton(t *testing.T) *skeleton.Skeleton {
	t.Helper()
	pose := []math.Transform{
		{Translation: math.Vec3{Y: 1}, Rotation: math.QuatIdentity(), Scale: math.Vec3One()},
		{Translation: math.Vec3{X: 1}, Rotation: math.QuatFromAxisAngle(math.Vec3{Z: 1}, 0.5), Scale: math.Vec3{X: 2, Y: 2, Z: 2}},
		{Translation: math.Vec3{Z: -3}, Rotation: math.QuatIdentity(), Scale: math.Vec3One()},
	}
	s, err := skeleton.New([]string{"root", "arm", "prop"}, []int{skeleton.NoParent, 0, skeleton.NoParent}, pose)
	if err != nil {
		t.Fatalf("skeleton.New: %v", err)
	}
	return s
}

func testAnimation(t *testing.T) *animation.Animation {
	t.Helper()
	q := math.QuatFromAxisAngle(math.Vec3{X: 1}, 1)
	tracks := []animation.TrackKeys{
		{
			Translations: []animation.Float3Key{
				animation.EncodeFloat3Key(0, math.Vec3{X: 1}),
				animation.EncodeFloat3Key(1, math.Vec3{X: 2}),
			},
			Rotations: []animation.QuatKey{
				animation.EncodeQuatKey(0, q),
				animation.EncodeQuatKey(0.5, q.Negate()),
				animation.EncodeQuatKey(1, math.QuatIdentity()),
			},
		},
		{},
		{Scales: []animation.Float3Key{animation.EncodeFloat3Key(0.25, math.Vec3{X: 3, Y: 3, Z: 3})}},
	}
	a, err := animation.New("swing", 2.5, tracks)
	if err != nil {
		t.Fatalf("animation.New: %v", err)
	}
	return a
}

func TestSkeletonRoundTrip(t *testing.T) {
	src := testSkeleton(t)

	var buf bytes.Buffer
	if err := WriteSkeleton(&buf, src); err != nil {
		t.Fatalf("WriteSkeleton: %v", err)
	}
	got, err := ReadSkeleton(&buf)
	if err != nil {
		t.Fatalf("ReadSkeleton: %v", err)
	}

	if !reflect.DeepEqual(got.JointNames(), src.JointNames()) {
		t.Errorf("names = %v, want %v", got.JointNames(), src.JointNames())
	}
	if !reflect.DeepEqual(got.JointParents(), src.JointParents()) {
		t.Errorf("parents = %v, want %v", got.JointParents(), src.JointParents())
	}
	for j := 0; j < src.NumJoints(); j++ {
		if got.JointBindPose(j) != src.JointBindPose(j) {
			t.Errorf("joint %d bind pose = %+v, want %+v", j, got.JointBindPose(j), src.JointBindPose(j))
		}
	}
}

func TestAnimationRoundTrip(t *testing.T) {
	src := testAnimation(t)

	var buf bytes.Buffer
	if err := WriteAnimation(&buf, src); err != nil {
		t.Fatalf("WriteAnimation: %v", err)
	}
	got, err := ReadAnimation(&buf)
	if err != nil {
		t.Fatalf("ReadAnimation: %v", err)
	}

	if got.Name() != src.Name() || got.Duration() != src.Duration() || got.NumTracks() != src.NumTracks() {
		t.Fatalf("header = %q %v %d", got.Name(), got.Duration(), got.NumTracks())
	}
	for tr := 0; tr < src.NumTracks(); tr++ {
		if !reflect.DeepEqual(got.Track(tr), src.Track(tr)) {
			t.Errorf("track %d = %+v, want %+v", tr, got.Track(tr), src.Track(tr))
		}
	}
}

func TestReadObject(t *testing.T) {
	dir := t.TempDir()
	skelPath := filepath.Join(dir, "rig.ozz")
	animPath := filepath.Join(dir, "swing.ozz")

	if err := SaveSkeleton(skelPath, testSkeleton(t)); err != nil {
		t.Fatalf("SaveSkeleton: %v", err)
	}
	if err := SaveAnimation(animPath, testAnimation(t)); err != nil {
		t.Fatalf("SaveAnimation: %v", err)
	}

	obj, err := LoadObject(skelPath)
	if err != nil {
		t.Fatalf("LoadObject(skeleton): %v", err)
	}
	if _, ok := obj.(*skeleton.Skeleton); !ok {
		t.Errorf("LoadObject(skeleton) = %T", obj)
	}

	obj, err = LoadObject(animPath)
	if err != nil {
		t.Fatalf("LoadObject(animation): %v", err)
	}
	if _, ok := obj.(*animation.Animation); !ok {
		t.Errorf("LoadObject(animation) = %T", obj)
	}

	if _, err := LoadSkeleton(animPath); !errors.Is(err, ErrUnsupported) {
		t.Errorf("LoadSkeleton(animation file) = %v, want ErrUnsupported", err)
	}
	if _, err := LoadAnimation(skelPath); !errors.Is(err, ErrUnsupported) {
		t.Errorf("LoadAnimation(skeleton file) = %v, want ErrUnsupported", err)
	}
}

func TestReadRejects(t *testing.T) {
	var skel bytes.Buffer
	if err := WriteSkeleton(&skel, testSkeleton(t)); err != nil {
		t.Fatalf("WriteSkeleton: %v", err)
	}
	var anim bytes.Buffer
	if err := WriteAnimation(&anim, testAnimation(t)); err != nil {
		t.Fatalf("WriteAnimation: %v", err)
	}

	newVersion := append([]byte(nil), skel.Bytes()...)
	newVersion[len(SkeletonTag)+1] = 99

	tests := []struct {
		name    string
		data    []byte
		read    func([]byte) error
		wantErr error
	}{
		{"empty", nil, readSkel, ErrCorrupt},
		{"unknown tag", []byte("ozz-mesh\x00\x01\x00\x00\x00"), readObj, ErrUnsupported},
		{"newer version", newVersion, readSkel, ErrUnsupported},
		{"truncated skeleton", skel.Bytes()[:skel.Len()-5], readSkel, ErrCorrupt},
		{"truncated animation", anim.Bytes()[:anim.Len()-3], readAnim, ErrCorrupt},
		{"joint count limit", []byte("ozz-skeleton\x00\x02\x00\x00\x00\xff\xff\x00\x00"), readSkel, ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.read(tt.data); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func readSkel(b []byte) error {
	_, err := ReadSkeleton(bytes.NewReader(b))
	return err
}

func readAnim(b []byte) error {
	_, err := ReadAnimation(bytes.NewReader(b))
	return err
}

func readObj(b []byte) error {
	_, err := ReadObject(bytes.NewReader(b))
	return err
}
