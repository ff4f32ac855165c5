package importer

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/pkg/animation/offline"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

// ErrUnsupportedAccessor is returned for accessors the importer cannot turn
// into keyframes, such as unnormalized integer data or a wrong element type.
var ErrUnsupportedAccessor = errors.New("importer: unsupported glTF accessor")

// GLTF imports skeletons and animations from a glTF document.
type GLTF struct {
	doc  *gltf.Document
	opts Options
}

// NewGLTF wraps an already decoded document.
func NewGLTF(doc *gltf.Document, opts Options) *GLTF {
	return &GLTF{doc: doc, opts: opts.withDefaults()}
}

// OpenGLTF reads a .gltf or .glb file.
func OpenGLTF(path string, opts Options) (*GLTF, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return NewGLTF(doc, opts), nil
}

func (g *GLTF) nodeName(i uint32) string {
	if name := g.doc.Nodes[i].Name; name != "" {
		return name
	}
	return fmt.Sprintf("node%d", i)
}

// jointSet returns the nodes treated as joints: every skin joint, or every
// node when the document has no skin.
func (g *GLTF) jointSet() map[uint32]bool {
	set := make(map[uint32]bool)
	for _, skin := range g.doc.Skins {
		for _, j := range skin.Joints {
			set[j] = true
		}
	}
	if len(set) == 0 {
		for i := range g.doc.Nodes {
			set[uint32(i)] = true
		}
	}
	return set
}

// ImportSkeleton builds the hierarchy of joint nodes. A joint whose parent
// is not a joint becomes a root.
func (g *GLTF) ImportSkeleton() (*offline.RawSkeleton, error) {
	joints := g.jointSet()

	parent := make(map[uint32]uint32)
	for i, n := range g.doc.Nodes {
		for _, c := range n.Children {
			parent[c] = uint32(i)
		}
	}

	var build func(i uint32) offline.RawJoint
	build = func(i uint32) offline.RawJoint {
		n := g.doc.Nodes[i]
		j := offline.RawJoint{Name: g.nodeName(i), Transform: nodeTransform(n)}
		for _, c := range n.Children {
			if joints[c] {
				j.Children = append(j.Children, build(c))
			}
		}
		return j
	}

	raw := &offline.RawSkeleton{}
	for i := range g.doc.Nodes {
		idx := uint32(i)
		if !joints[idx] {
			continue
		}
		if p, ok := parent[idx]; ok && joints[p] {
			continue
		}
		raw.Roots = append(raw.Roots, build(idx))
	}
	if len(raw.Roots) == 0 {
		return nil, ErrNoSkeleton
	}

	logger.Named("importer").Debug("imported glTF skeleton",
		zap.Int("joints", raw.NumJoints()),
		zap.Int("roots", len(raw.Roots)))
	return raw, nil
}

func nodeTransform(n *gltf.Node) math.Transform {
	if n.Matrix != [16]float32{} && n.Matrix != [16]float32(math.Identity()) {
		return decompose(mgl32.Mat4(n.Matrix))
	}

	t := math.Transform{
		Translation: math.Vec3FromArray(n.Translation),
		Rotation:    math.QuatFromArray(n.Rotation),
		Scale:       math.Vec3FromArray(n.Scale),
	}
	// Zero values stand for the glTF defaults.
	if n.Rotation == [4]float32{} {
		t.Rotation = math.QuatIdentity()
	}
	if n.Scale == [3]float32{} {
		t.Scale = math.Vec3One()
	}
	return t
}

// decompose splits an affine matrix into translation, rotation and scale.
// Shear is lost.
func decompose(m mgl32.Mat4) math.Transform {
	cols := [3]mgl32.Vec3{m.Col(0).Vec3(), m.Col(1).Vec3(), m.Col(2).Vec3()}
	scale := [3]float32{cols[0].Len(), cols[1].Len(), cols[2].Len()}
	if m.Mat3().Det() < 0 {
		scale[0] = -scale[0]
	}
	for i := range scale {
		if scale[i] == 0 {
			scale[i] = 1
		}
		cols[i] = cols[i].Mul(1 / scale[i])
	}

	rot := mgl32.Mat4FromCols(cols[0].Vec4(0), cols[1].Vec4(0), cols[2].Vec4(0), mgl32.Vec4{0, 0, 0, 1})
	q := mgl32.Mat4ToQuat(rot).Normalize()
	t := m.Col(3)

	return math.Transform{
		Translation: math.Vec3{X: t[0], Y: t[1], Z: t[2]},
		Rotation:    math.Quat{X: q.V[0], Y: q.V[1], Z: q.V[2], W: q.W},
		Scale:       math.Vec3FromArray(scale),
	}
}

// ImportAnimations converts every document animation. Channels targeting
// nodes that are not joints of skeleton are ignored. Step curves keep their
// plateaus and cubic splines are baked at the configured sample rate. A
// channel whose accessors cannot be read is logged and skipped.
func (g *GLTF) ImportAnimations(skeleton *offline.RawSkeleton) ([]*offline.RawAnimation, error) {
	names, index := jointOrder(skeleton)

	var out []*offline.RawAnimation
	for ai, a := range g.doc.Animations {
		raw := &offline.RawAnimation{Name: a.Name, Tracks: make([]offline.JointTrack, len(names))}
		if raw.Name == "" {
			raw.Name = fmt.Sprintf("animation%d", ai)
		}

		for ci, ch := range a.Channels {
			if ch.Sampler == nil || ch.Target.Node == nil || int(*ch.Sampler) >= len(a.Samplers) {
				continue
			}
			joint, ok := index[g.nodeName(*ch.Target.Node)]
			if !ok {
				continue
			}

			times, values, err := g.sampleChannel(a.Samplers[*ch.Sampler], ch.Target.Path)
			if err != nil {
				logger.Named("importer").Warn("skipping unreadable glTF channel",
					zap.String("animation", raw.Name),
					zap.Int("channel", ci),
					zap.Error(err))
				continue
			}
			if len(times) > 0 {
				raw.Duration = max(raw.Duration, times[len(times)-1])
			}

			tr := &raw.Tracks[joint]
			switch ch.Target.Path {
			case gltf.TRSTranslation:
				for k, t := range times {
					tr.Translations = append(tr.Translations, offline.TranslationKey{Time: t, Value: vec3At(values, k)})
				}
			case gltf.TRSRotation:
				for k, t := range times {
					q := math.Quat{X: values[k*4], Y: values[k*4+1], Z: values[k*4+2], W: values[k*4+3]}
					tr.Rotations = append(tr.Rotations, offline.RotationKey{Time: t, Value: q.Normalize()})
				}
			case gltf.TRSScale:
				for k, t := range times {
					tr.Scales = append(tr.Scales, offline.ScaleKey{Time: t, Value: vec3At(values, k)})
				}
			}
		}

		if raw.Duration <= 0 {
			raw.Duration = 1 / g.opts.SampleRate
		}
		if err := raw.Validate(); err != nil {
			logger.Named("importer").Warn("skipping invalid glTF animation",
				zap.String("name", raw.Name),
				zap.Error(err))
			continue
		}
		out = append(out, raw)

		logger.Named("importer").Debug("imported glTF animation",
			zap.String("name", raw.Name),
			zap.Float32("duration", raw.Duration),
			zap.Int("channels", len(a.Channels)))
	}
	return out, nil
}

func vec3At(values []float32, k int) math.Vec3 {
	return math.Vec3{X: values[k*3], Y: values[k*3+1], Z: values[k*3+2]}
}

// sampleChannel returns key times and flattened values for a sampler,
// resolving step and cubic spline interpolation into linear keys.
func (g *GLTF) sampleChannel(s *gltf.AnimationSampler, path gltf.TRSProperty) ([]float32, []float32, error) {
	width := 3
	switch path {
	case gltf.TRSRotation:
		width = 4
	case gltf.TRSTranslation, gltf.TRSScale:
	default:
		return nil, nil, nil
	}
	if s.Input == nil || s.Output == nil {
		return nil, nil, fmt.Errorf("%w: sampler without input or output", ErrUnsupportedAccessor)
	}

	times, err := g.readFloats(*s.Input, 1)
	if err != nil {
		return nil, nil, err
	}
	values, err := g.readFloats(*s.Output, width)
	if err != nil {
		return nil, nil, err
	}

	switch s.Interpolation {
	case gltf.InterpolationStep:
		times, values = stepToLinear(times, values, width)
	case gltf.InterpolationCubicSpline:
		if len(values) != len(times)*width*3 {
			return nil, nil, fmt.Errorf("%w: cubic spline output has %d floats for %d keys", ErrUnsupportedAccessor, len(values), len(times))
		}
		times, values = bakeCubicSpline(times, values, width, g.opts.SampleRate)
	default:
		if len(values) != len(times)*width {
			return nil, nil, fmt.Errorf("%w: output has %d floats for %d keys", ErrUnsupportedAccessor, len(values), len(times))
		}
	}
	return times, values, nil
}

// stepToLinear adds a key just before each change so linear sampling holds
// the previous value.
func stepToLinear(times, values []float32, width int) ([]float32, []float32) {
	if len(times) < 2 {
		return times, values
	}
	outT := make([]float32, 0, 2*len(times))
	outV := make([]float32, 0, 2*len(values))
	for k := range times {
		if k > 0 {
			eps := min(1e-4, (times[k]-times[k-1])/2)
			outT = append(outT, times[k]-eps)
			outV = append(outV, values[(k-1)*width:k*width]...)
		}
		outT = append(outT, times[k])
		outV = append(outV, values[k*width:(k+1)*width]...)
	}
	return outT, outV
}

// bakeCubicSpline evaluates a glTF cubic spline (in-tangent, value,
// out-tangent triplets) at rate Hz between the first and last keys.
func bakeCubicSpline(times, values []float32, width int, rate float32) ([]float32, []float32) {
	at := func(k, part int) []float32 {
		base := (k*3 + part) * width
		return values[base : base+width]
	}
	if len(times) == 1 {
		return times, append([]float32(nil), at(0, 1)...)
	}

	first, last := times[0], times[len(times)-1]
	steps := int(gomath.Ceil(float64((last - first) * rate)))
	outT := make([]float32, 0, steps+1)
	outV := make([]float32, 0, (steps+1)*width)

	k := 0
	for i := 0; i <= steps; i++ {
		t := min(first+float32(i)/rate, last)
		if i == steps {
			t = last
		}
		if len(outT) > 0 && t <= outT[len(outT)-1] {
			continue
		}
		for k < len(times)-2 && t >= times[k+1] {
			k++
		}

		d := times[k+1] - times[k]
		s := (t - times[k]) / d
		s2, s3 := s*s, s*s*s
		h00 := 2*s3 - 3*s2 + 1
		h10 := (s3 - 2*s2 + s) * d
		h01 := -2*s3 + 3*s2
		h11 := (s3 - s2) * d

		p0, m0 := at(k, 1), at(k, 2)
		p1, m1 := at(k+1, 1), at(k+1, 0)
		for c := 0; c < width; c++ {
			outV = append(outV, h00*p0[c]+h10*m0[c]+h01*p1[c]+h11*m1[c])
		}
		outT = append(outT, t)
	}
	return outT, outV
}

// readFloats reads an accessor as count*width floats. Normalized integer
// components are mapped back to [-1, 1] or [0, 1].
func (g *GLTF) readFloats(index uint32, width int) ([]float32, error) {
	if int(index) >= len(g.doc.Accessors) {
		return nil, fmt.Errorf("%w: accessor %d out of range", ErrUnsupportedAccessor, index)
	}
	acc := g.doc.Accessors[index]
	if int(acc.Type.Components()) != width {
		return nil, fmt.Errorf("%w: accessor %d has %d components, want %d", ErrUnsupportedAccessor, index, acc.Type.Components(), width)
	}
	if acc.ComponentType != gltf.ComponentFloat && !acc.Normalized {
		return nil, fmt.Errorf("%w: accessor %d has unnormalized component type %v", ErrUnsupportedAccessor, index, acc.ComponentType)
	}

	data, err := modeler.ReadAccessor(g.doc, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: accessor %d: %v", ErrUnsupportedAccessor, index, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: accessor %d has no data", ErrUnsupportedAccessor, index)
	}

	switch d := data.(type) {
	case []float32:
		return d, nil
	case [][3]float32:
		return flatten(d, func(v float32) float32 { return v }), nil
	case [][4]float32:
		return flatten(d, func(v float32) float32 { return v }), nil
	case [][3]int8:
		return flatten(d, gltf.DenormalizeByte), nil
	case [][4]int8:
		return flatten(d, gltf.DenormalizeByte), nil
	case [][3]uint8:
		return flatten(d, gltf.DenormalizeUbyte), nil
	case [][4]uint8:
		return flatten(d, gltf.DenormalizeUbyte), nil
	case [][3]int16:
		return flatten(d, gltf.DenormalizeShort), nil
	case [][4]int16:
		return flatten(d, gltf.DenormalizeShort), nil
	case [][3]uint16:
		return flatten(d, gltf.DenormalizeUshort), nil
	case [][4]uint16:
		return flatten(d, gltf.DenormalizeUshort), nil
	}
	return nil, fmt.Errorf("%w: accessor %d component type %v", ErrUnsupportedAccessor, index, acc.ComponentType)
}

func flatten[T int8 | uint8 | int16 | uint16 | float32, E [3]T | [4]T](elems []E, conv func(T) float32) []float32 {
	out := make([]float32, 0, len(elems)*4)
	for _, e := range elems {
		switch v := any(e).(type) {
		case [3]T:
			for _, c := range v {
				out = append(out, conv(c))
			}
		case [4]T:
			for _, c := range v {
				out = append(out, conv(c))
			}
		}
	}
	return out
}
