package animation

import (
	"fmt"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

// DefaultBlendingThreshold is the threshold set by NewBlendingJob.
const DefaultBlendingThreshold = 0.1

// Layer weights at or below this value do not contribute to a joint.
const minLayerWeight = 1e-6

// BlendingLayer is one weighted input of a BlendingJob.
type BlendingLayer struct {
	// Transform holds the layer's local-space pose.
	Transform []math.SoaTransform
	// Weight scales the whole layer. For additive layers a negative weight
	// subtracts the layer.
	Weight float32
	// JointWeights optionally scales the weight per joint. Negative values
	// count as zero.
	JointWeights []math.SoaFloat
}

// BlendingJob blends regular layers into a local-space pose, then composes
// additive layers on top. Joints whose accumulated regular weight stays below
// Threshold keep the bind pose.
type BlendingJob struct {
	// Threshold is the minimum accumulated weight for a joint to be blended.
	// It must be positive.
	Threshold float32
	// Layers are blended by normalized weight.
	Layers []BlendingLayer
	// AdditiveLayers are applied on top of the blended result, in order.
	AdditiveLayers []BlendingLayer
	// BindPose is the rest pose; its length defines the joint batch count.
	BindPose []math.SoaTransform
	// Output receives len(BindPose) batches.
	Output []math.SoaTransform
}

// NewBlendingJob returns a job over bindPose that writes to output, with
// DefaultBlendingThreshold and no layers.
func NewBlendingJob(bindPose, output []math.SoaTransform) *BlendingJob {
	return &BlendingJob{
		Threshold: DefaultBlendingThreshold,
		BindPose:  bindPose,
		Output:    output,
	}
}

// Check returns the first configuration problem, wrapping ErrInvalidJob.
func (j *BlendingJob) Check() error {
	n := len(j.BindPose)
	if !(j.Threshold > 0) {
		return fmt.Errorf("%w: blending: threshold %v is not positive", ErrInvalidJob, j.Threshold)
	}
	if n == 0 {
		return fmt.Errorf("%w: blending: empty bind pose", ErrInvalidJob)
	}
	if len(j.Output) < n {
		return fmt.Errorf("%w: blending: output holds %d soa transforms, need %d", ErrInvalidJob, len(j.Output), n)
	}
	if err := checkLayers("layer", j.Layers, n); err != nil {
		return err
	}
	return checkLayers("additive layer", j.AdditiveLayers, n)
}

func checkLayers(kind string, layers []BlendingLayer, n int) error {
	for i, l := range layers {
		if len(l.Transform) < n {
			return fmt.Errorf("%w: blending: %s %d holds %d soa transforms, need %d",
				ErrInvalidJob, kind, i, len(l.Transform), n)
		}
		if l.JointWeights != nil && len(l.JointWeights) < n {
			return fmt.Errorf("%w: blending: %s %d holds %d soa joint weights, need %d",
				ErrInvalidJob, kind, i, len(l.JointWeights), n)
		}
	}
	return nil
}

// Validate reports whether the job can run.
func (j *BlendingJob) Validate() bool {
	return j.Check() == nil
}

// Run blends the layers into Output. It returns false, without writing
// anything, if the job is invalid.
func (j *BlendingJob) Run() bool {
	if !j.Validate() {
		return false
	}

	threshold := j.Threshold
	for batch := range j.BindPose {
		out := &j.Output[batch]
		for lane := 0; lane < math.SoaWidth; lane++ {
			t := j.blendJoint(batch, lane, threshold)
			t = j.addJoint(batch, lane, t)
			out.SetLane(lane, t)
		}
	}
	return true
}

// layerWeight returns the effective weight of layer l for one joint.
func layerWeight(l *BlendingLayer, batch, lane int) float32 {
	w := l.Weight
	if l.JointWeights != nil {
		w *= max(l.JointWeights[batch][lane], 0)
	}
	return w
}

// blendJoint computes the normalized blend of the regular layers for one
// joint. Translation and scale are weighted averages. Rotation accumulates
// layer by layer with a renormalized lerp, which approximates a multi-way
// slerp.
func (j *BlendingJob) blendJoint(batch, lane int, threshold float32) math.Transform {
	var (
		sum         float32
		translation math.Vec3
		scale       math.Vec3
		rotation    math.Quat
		blended     int
	)

	for i := range j.Layers {
		l := &j.Layers[i]
		w := max(layerWeight(l, batch, lane), 0)
		if w <= minLayerWeight {
			continue
		}
		t := l.Transform[batch].Lane(lane)

		sum += w
		translation = translation.Add(t.Translation.Scale(w))
		scale = scale.Add(t.Scale.Scale(w))

		if blended == 0 {
			rotation = t.Rotation
		} else {
			q := t.Rotation
			if rotation.Dot(q) < 0 {
				q = q.Negate()
			}
			rotation = rotation.NLerp(q, w/sum)
		}
		blended++
	}

	if blended == 0 || sum < threshold {
		return j.BindPose[batch].Lane(lane)
	}

	inv := 1 / sum
	return math.Transform{
		Translation: translation.Scale(inv),
		Rotation:    rotation,
		Scale:       scale.Scale(inv),
	}
}

// addJoint composes every additive layer onto t.
func (j *BlendingJob) addJoint(batch, lane int, t math.Transform) math.Transform {
	for i := range j.AdditiveLayers {
		l := &j.AdditiveLayers[i]
		w := layerWeight(l, batch, lane)
		if w <= minLayerWeight && w >= -minLayerWeight {
			continue
		}
		delta := l.Transform[batch].Lane(lane)

		subtract := w < 0
		if subtract {
			w = -w
		}

		// Interpolate between identity and the delta rotation along the
		// shortest path.
		dr := delta.Rotation
		if dr.W < 0 {
			dr = dr.Negate()
		}
		partial := math.Quat{
			X: dr.X * w,
			Y: dr.Y * w,
			Z: dr.Z * w,
			W: (dr.W-1)*w + 1,
		}.Normalize()
		partialScale := math.Vec3One().Scale(1 - w).Add(delta.Scale.Scale(w))

		if subtract {
			t.Translation = t.Translation.Sub(delta.Translation.Scale(w))
			t.Rotation = partial.Conjugate().Mul(t.Rotation)
			t.Scale = t.Scale.Div(partialScale)
		} else {
			t.Translation = t.Translation.Add(delta.Translation.Scale(w))
			t.Rotation = partial.Mul(t.Rotation)
			t.Scale = t.Scale.Mul(partialScale)
		}
	}
	return t
}
