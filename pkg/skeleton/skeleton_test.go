package skeleton

import (
	"errors"
	"testing"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

// makeSkeleton builds a skeleton with identity bind pose except for a
// translation of (i, 0, 0) on joint i.
func makeSkeleton(t *testing.T, parents []int) *Skeleton {
	t.Helper()
	names := make([]string, len(parents))
	pose := make([]math.Transform, len(parents))
	for i := range parents {
		names[i] = string(rune('a' + i%26))
		pose[i] = math.TransformIdentity()
		pose[i].Translation.X = float32(i)
	}
	s, err := New(names, parents, pose)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		parents []int
		pose    int
		wantErr error
	}{
		{"empty", nil, nil, 0, nil},
		{"single root", []string{"root"}, []int{NoParent}, 1, nil},
		{"mismatched parents", []string{"a", "b"}, []int{NoParent}, 2, ErrMismatchedData},
		{"mismatched pose", []string{"a"}, []int{NoParent}, 2, ErrMismatchedData},
		{"parent after child", []string{"a", "b"}, []int{1, NoParent}, 2, ErrParentOrder},
		{"self parent", []string{"a"}, []int{0}, 1, ErrParentOrder},
		{"negative parent", []string{"a", "b"}, []int{NoParent, -7}, 2, ErrParentOrder},
		{"empty name", []string{"a", ""}, []int{NoParent, 0}, 2, ErrEmptyName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pose := make([]math.Transform, tt.pose)
			_, err := New(tt.names, tt.parents, pose)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewTooManyJoints(t *testing.T) {
	n := MaxJoints + 1
	parents := make([]int, n)
	for i := range parents {
		parents[i] = NoParent
	}
	_, err := New(make([]string, n), parents, make([]math.Transform, n))
	if !errors.Is(err, ErrTooManyJoints) {
		t.Errorf("expected ErrTooManyJoints, got %v", err)
	}
}

func TestAccessors(t *testing.T) {
	//   0
	//  / \
	// 1   2
	//     |
	//     3
	//     |
	//     4
	s := makeSkeleton(t, []int{NoParent, 0, 0, 2, 3})

	if s.NumJoints() != 5 {
		t.Errorf("NumJoints = %d, want 5", s.NumJoints())
	}
	if s.NumSoaJoints() != 2 {
		t.Errorf("NumSoaJoints = %d, want 2", s.NumSoaJoints())
	}

	leaves := []bool{false, true, false, false, true}
	for j, want := range leaves {
		if got := s.IsLeaf(j); got != want {
			t.Errorf("IsLeaf(%d) = %v, want %v", j, got, want)
		}
	}

	if got := s.JointBindPose(3).Translation.X; got != 3 {
		t.Errorf("bind pose of joint 3: got x=%v, want 3", got)
	}
	// Padding lanes are identity.
	if got := s.BindPose()[1].Lane(3); got != math.TransformIdentity() {
		t.Errorf("padding lane should be identity, got %v", got)
	}

	if got := s.FindJoint("c"); got != 2 {
		t.Errorf("FindJoint(c) = %d, want 2", got)
	}
	if got := s.FindJoint("missing"); got != -1 {
		t.Errorf("FindJoint(missing) = %d, want -1", got)
	}
	if got := s.JointParents(); got[4] != 3 || got[0] != NoParent {
		t.Errorf("JointParents = %v", got)
	}
}
