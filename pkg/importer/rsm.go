package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/pkg/animation/offline"
	"github.com/Faultbox/midgard-anim/pkg/formats"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

// RSM imports the node hierarchy of a Ragnarok Online model as a skeleton
// and its keyframes as a single animation.
type RSM struct {
	model *formats.RSM
	name  string
	opts  Options
}

// NewRSM wraps a parsed model. name becomes the animation name.
func NewRSM(model *formats.RSM, name string, opts Options) *RSM {
	return &RSM{model: model, name: name, opts: opts.withDefaults()}
}

// OpenRSM parses an RSM file.
func OpenRSM(path string, opts Options) (*RSM, error) {
	model, err := formats.ParseRSMFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return NewRSM(model, name, opts), nil
}

func isRoot(n *formats.RSMNode, model *formats.RSM) bool {
	return n.Parent == "" || n.Parent == n.Name || model.Node(n.Parent) == nil
}

// ImportSkeleton turns nodes into joints. Nodes without a known parent are
// roots. The bind pose is the node position, axis-angle rotation and scale.
func (r *RSM) ImportSkeleton() (*offline.RawSkeleton, error) {
	visited := make(map[string]bool)

	var build func(n *formats.RSMNode) offline.RawJoint
	build = func(n *formats.RSMNode) offline.RawJoint {
		visited[n.Name] = true
		j := offline.RawJoint{Name: n.Name, Transform: rsmBindPose(n)}
		for _, c := range r.model.Children(n.Name) {
			if visited[c.Name] {
				logger.Named("importer").Warn("RSM node cycle", zap.String("node", c.Name))
				continue
			}
			j.Children = append(j.Children, build(c))
		}
		return j
	}

	raw := &offline.RawSkeleton{}
	for i := range r.model.Nodes {
		n := &r.model.Nodes[i]
		if isRoot(n, r.model) && !visited[n.Name] {
			raw.Roots = append(raw.Roots, build(n))
		}
	}
	if len(raw.Roots) == 0 {
		return nil, ErrNoSkeleton
	}

	logger.Named("importer").Debug("imported RSM skeleton",
		zap.String("model", r.name),
		zap.String("version", r.model.Version.String()),
		zap.Int("joints", raw.NumJoints()))
	return raw, nil
}

func rsmBindPose(n *formats.RSMNode) math.Transform {
	t := math.TransformIdentity()
	t.Translation = math.Vec3FromArray(n.Position)
	if axis := math.Vec3FromArray(n.RotAxis); axis.Length() > 0 {
		t.Rotation = math.QuatFromAxisAngle(axis, n.RotAngle)
	}
	if n.Scale != [3]float32{} {
		t.Scale = math.Vec3FromArray(n.Scale)
	}
	return t
}

// ImportAnimations returns the model animation, or nothing when no node has
// keyframes. The duration comes from the header, or from the last keyframe
// when the header is empty. Keys past the end or out of order are dropped.
func (r *RSM) ImportAnimations(skeleton *offline.RawSkeleton) ([]*offline.RawAnimation, error) {
	if !r.model.HasAnimation() {
		return nil, nil
	}

	ticks := r.opts.RSMTicksPerSecond
	duration := float32(r.model.AnimLength) / ticks
	if duration <= 0 {
		var lastFrame int32
		for _, n := range r.model.Nodes {
			for _, k := range n.PosKeys {
				lastFrame = max(lastFrame, k.Frame)
			}
			for _, k := range n.RotKeys {
				lastFrame = max(lastFrame, k.Frame)
			}
			for _, k := range n.ScaleKeys {
				lastFrame = max(lastFrame, k.Frame)
			}
		}
		duration = max(float32(lastFrame)/ticks, 1/ticks)
	}

	names, _ := jointOrder(skeleton)
	raw := &offline.RawAnimation{Name: r.name, Duration: duration, Tracks: make([]offline.JointTrack, len(names))}

	dropped := 0
	keep := keyFilter(duration, &dropped)
	for i, name := range names {
		n := r.model.Node(name)
		if n == nil {
			continue
		}
		tr := &raw.Tracks[i]

		for _, k := range n.PosKeys {
			if t := float32(k.Frame) / ticks; keep(t, lastTime(tr.Translations, func(k offline.TranslationKey) float32 { return k.Time })) {
				tr.Translations = append(tr.Translations, offline.TranslationKey{Time: t, Value: math.Vec3FromArray(k.Position)})
			}
		}
		for _, k := range n.RotKeys {
			if t := float32(k.Frame) / ticks; keep(t, lastTime(tr.Rotations, func(k offline.RotationKey) float32 { return k.Time })) {
				q := math.QuatFromArray(k.Quaternion).Normalize()
				tr.Rotations = append(tr.Rotations, offline.RotationKey{Time: t, Value: q})
			}
		}
		for _, k := range n.ScaleKeys {
			if t := float32(k.Frame) / ticks; keep(t, lastTime(tr.Scales, func(k offline.ScaleKey) float32 { return k.Time })) {
				tr.Scales = append(tr.Scales, offline.ScaleKey{Time: t, Value: math.Vec3FromArray(k.Scale)})
			}
		}
	}

	if dropped > 0 {
		logger.Named("importer").Warn("dropped RSM keyframes",
			zap.String("model", r.name),
			zap.Int("keys", dropped))
	}
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	logger.Named("importer").Debug("imported RSM animation",
		zap.String("model", r.name),
		zap.Float32("duration", duration))
	return []*offline.RawAnimation{raw}, nil
}

// keyFilter accepts a key time inside [0, duration] and after the previous
// kept key, counting rejects.
func keyFilter(duration float32, dropped *int) func(t, prev float32) bool {
	return func(t, prev float32) bool {
		if t < 0 || t > duration || t <= prev {
			*dropped++
			return false
		}
		return true
	}
}

func lastTime[K any](keys []K, timeOf func(K) float32) float32 {
	if len(keys) == 0 {
		return -1
	}
	return timeOf(keys[len(keys)-1])
}
