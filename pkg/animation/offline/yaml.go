package offline

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

// YAML documents for raw assets. Missing rotations and scales default to
// identity and one.

type yamlJoint struct {
	Name        string      `yaml:"name"`
	Translation *[3]float32 `yaml:"translation,omitempty,flow"`
	Rotation    *[4]float32 `yaml:"rotation,omitempty,flow"`
	Scale       *[3]float32 `yaml:"scale,omitempty,flow"`
	Children    []yamlJoint `yaml:"children,omitempty"`
}

type yamlSkeleton struct {
	Roots []yamlJoint `yaml:"roots"`
}

type yamlFloat3Key struct {
	Time  float32    `yaml:"time"`
	Value [3]float32 `yaml:"value,flow"`
}

type yamlQuatKey struct {
	Time  float32    `yaml:"time"`
	Value [4]float32 `yaml:"value,flow"`
}

type yamlTrack struct {
	Translations []yamlFloat3Key `yaml:"translations,omitempty"`
	Rotations    []yamlQuatKey   `yaml:"rotations,omitempty"`
	Scales       []yamlFloat3Key `yaml:"scales,omitempty"`
}

type yamlAnimation struct {
	Name     string      `yaml:"name,omitempty"`
	Duration float32     `yaml:"duration"`
	Tracks   []yamlTrack `yaml:"tracks"`
}

// ReadSkeleton decodes a YAML raw skeleton.
func ReadSkeleton(r io.Reader) (*RawSkeleton, error) {
	var doc yamlSkeleton
	if err := decodeYAML(r, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode skeleton: %w", err)
	}

	s := &RawSkeleton{Roots: make([]RawJoint, len(doc.Roots))}
	for i := range doc.Roots {
		s.Roots[i] = jointFromYAML(&doc.Roots[i])
	}
	return s, nil
}

func jointFromYAML(y *yamlJoint) RawJoint {
	j := RawJoint{Name: y.Name, Transform: math.TransformIdentity()}
	if y.Translation != nil {
		j.Transform.Translation = math.Vec3FromArray(*y.Translation)
	}
	if y.Rotation != nil {
		j.Transform.Rotation = math.QuatFromArray(*y.Rotation)
	}
	if y.Scale != nil {
		j.Transform.Scale = math.Vec3FromArray(*y.Scale)
	}
	if len(y.Children) > 0 {
		j.Children = make([]RawJoint, len(y.Children))
		for i := range y.Children {
			j.Children[i] = jointFromYAML(&y.Children[i])
		}
	}
	return j
}

func jointToYAML(j *RawJoint) yamlJoint {
	t, r, s := j.Transform.Translation.Array(), j.Transform.Rotation.Array(), j.Transform.Scale.Array()
	y := yamlJoint{Name: j.Name, Translation: &t, Rotation: &r, Scale: &s}
	for i := range j.Children {
		y.Children = append(y.Children, jointToYAML(&j.Children[i]))
	}
	return y
}

// WriteSkeleton encodes s as YAML.
func WriteSkeleton(w io.Writer, s *RawSkeleton) error {
	doc := yamlSkeleton{Roots: make([]yamlJoint, len(s.Roots))}
	for i := range s.Roots {
		doc.Roots[i] = jointToYAML(&s.Roots[i])
	}
	return encodeYAML(w, &doc)
}

// ReadAnimation decodes a YAML raw animation. The result is not validated.
func ReadAnimation(r io.Reader) (*RawAnimation, error) {
	var doc yamlAnimation
	if err := decodeYAML(r, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode animation: %w", err)
	}

	a := &RawAnimation{
		Name:     doc.Name,
		Duration: doc.Duration,
		Tracks:   make([]JointTrack, len(doc.Tracks)),
	}
	for i, yt := range doc.Tracks {
		tr := &a.Tracks[i]
		for _, k := range yt.Translations {
			tr.Translations = append(tr.Translations, TranslationKey{Time: k.Time, Value: math.Vec3FromArray(k.Value)})
		}
		for _, k := range yt.Rotations {
			tr.Rotations = append(tr.Rotations, RotationKey{Time: k.Time, Value: math.QuatFromArray(k.Value)})
		}
		for _, k := range yt.Scales {
			tr.Scales = append(tr.Scales, ScaleKey{Time: k.Time, Value: math.Vec3FromArray(k.Value)})
		}
	}
	return a, nil
}

// WriteAnimation encodes a as YAML.
func WriteAnimation(w io.Writer, a *RawAnimation) error {
	doc := yamlAnimation{
		Name:     a.Name,
		Duration: a.Duration,
		Tracks:   make([]yamlTrack, len(a.Tracks)),
	}
	for i := range a.Tracks {
		tr, yt := &a.Tracks[i], &doc.Tracks[i]
		for _, k := range tr.Translations {
			yt.Translations = append(yt.Translations, yamlFloat3Key{Time: k.Time, Value: k.Value.Array()})
		}
		for _, k := range tr.Rotations {
			yt.Rotations = append(yt.Rotations, yamlQuatKey{Time: k.Time, Value: k.Value.Array()})
		}
		for _, k := range tr.Scales {
			yt.Scales = append(yt.Scales, yamlFloat3Key{Time: k.Time, Value: k.Value.Array()})
		}
	}
	return encodeYAML(w, &doc)
}

// LoadSkeletonFile reads a YAML raw skeleton from path.
func LoadSkeletonFile(path string) (*RawSkeleton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadSkeleton(bytes.NewReader(data))
}

// SaveSkeletonFile writes s to path as YAML.
func SaveSkeletonFile(path string, s *RawSkeleton) error {
	var buf bytes.Buffer
	if err := WriteSkeleton(&buf, s); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// LoadAnimationFile reads a YAML raw animation from path.
func LoadAnimationFile(path string) (*RawAnimation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadAnimation(bytes.NewReader(data))
}

// SaveAnimationFile writes a to path as YAML.
func SaveAnimationFile(path string, a *RawAnimation) error {
	var buf bytes.Buffer
	if err := WriteAnimation(&buf, a); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func decodeYAML(r io.Reader, v any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	return dec.Decode(v)
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
