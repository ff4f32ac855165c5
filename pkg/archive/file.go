package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/midgard-anim/pkg/animation"
	"github.com/Faultbox/midgard-anim/pkg/skeleton"
)

// ReadObject reads whichever object comes next in r and returns it as a
// *skeleton.Skeleton or an *animation.Animation.
func ReadObject(r io.Reader) (any, error) {
	in := newReader(r)
	tag, version := in.header()
	if in.err != nil {
		return nil, in.err
	}

	switch {
	case tag == SkeletonTag && version == SkeletonVersion:
		return readSkeletonBody(in)
	case tag == AnimationTag && version == AnimationVersion:
		return readAnimationBody(in)
	}
	return nil, fmt.Errorf("%w: %s version %d", ErrUnsupported, tag, version)
}

// LoadObject reads an archive file holding a skeleton or an animation.
func LoadObject(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	obj, err := ReadObject(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return obj, nil
}

// LoadSkeleton reads a skeleton archive file.
func LoadSkeleton(path string) (*skeleton.Skeleton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ReadSkeleton(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return s, nil
}

// LoadAnimation reads an animation archive file.
func LoadAnimation(path string) (*animation.Animation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a, err := ReadAnimation(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return a, nil
}

// SaveSkeleton writes s to path.
func SaveSkeleton(path string, s *skeleton.Skeleton) error {
	var buf bytes.Buffer
	if err := WriteSkeleton(&buf, s); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// SaveAnimation writes a to path.
func SaveAnimation(path string, a *animation.Animation) error {
	var buf bytes.Buffer
	if err := WriteAnimation(&buf, a); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
