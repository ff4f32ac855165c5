package animation

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-anim/pkg/math"
	"github.com/Faultbox/midgard-anim/pkg/skeleton"
)

// ErrInvalidJob is wrapped by every job validation error.
var ErrInvalidJob = errors.New("animation: invalid job")

// SamplingContext remembers, per track and per component, the key bracket used
// by the previous sampling call. Sampling smoothly varying ratios then only
// moves each bracket by a key or two.
//
// A context belongs to a single playback cursor and must not be shared
// between concurrent jobs.
type SamplingContext struct {
	animation *Animation
	maxTracks int

	translationCursors []int32
	rotationCursors    []int32
	scaleCursors       []int32
}

// NewSamplingContext returns a context able to sample animations of up to
// maxTracks tracks.
func NewSamplingContext(maxTracks int) *SamplingContext {
	c := &SamplingContext{}
	c.Resize(maxTracks)
	return c
}

// Resize reallocates the context for maxTracks tracks and invalidates it.
func (c *SamplingContext) Resize(maxTracks int) {
	maxTracks = max(0, maxTracks)
	c.maxTracks = maxTracks
	c.translationCursors = make([]int32, maxTracks)
	c.rotationCursors = make([]int32, maxTracks)
	c.scaleCursors = make([]int32, maxTracks)
	c.animation = nil
}

// Invalidate drops the cached brackets. The next sampling starts from the
// first keys.
func (c *SamplingContext) Invalidate() {
	c.animation = nil
	clear(c.translationCursors)
	clear(c.rotationCursors)
	clear(c.scaleCursors)
}

// MaxTracks returns the number of tracks the context can serve.
func (c *SamplingContext) MaxTracks() int {
	return c.maxTracks
}

// MaxSoaTracks returns MaxTracks in SoA batches.
func (c *SamplingContext) MaxSoaTracks() int {
	return math.SoaCount(c.maxTracks)
}

// bind invalidates the context if it was last used with another animation.
func (c *SamplingContext) bind(a *Animation) {
	if c.animation != a {
		c.Invalidate()
		c.animation = a
	}
}

// SamplingJob decodes an animation at a time ratio into local-space SoA
// transforms.
type SamplingJob struct {
	// Animation to sample.
	Animation *Animation
	// Context holding the cached key brackets; sized for the animation.
	Context *SamplingContext
	// Ratio is the normalized time in [0, 1]. Values outside are clamped.
	Ratio float32
	// Skeleton optionally provides the bind pose used for components without
	// keys. Identity is used when nil or when a track has no matching joint.
	Skeleton *skeleton.Skeleton
	// Output receives NumSoaTracks batches. Padding lanes are set to identity.
	Output []math.SoaTransform
}

// Check returns the first configuration problem, wrapping ErrInvalidJob.
func (j *SamplingJob) Check() error {
	switch {
	case j.Animation == nil:
		return fmt.Errorf("%w: sampling: nil animation", ErrInvalidJob)
	case j.Context == nil:
		return fmt.Errorf("%w: sampling: nil context", ErrInvalidJob)
	case j.Context.MaxTracks() < j.Animation.NumTracks():
		return fmt.Errorf("%w: sampling: context sized for %d tracks, animation has %d",
			ErrInvalidJob, j.Context.MaxTracks(), j.Animation.NumTracks())
	case len(j.Output) < j.Animation.NumSoaTracks():
		return fmt.Errorf("%w: sampling: output holds %d soa transforms, need %d",
			ErrInvalidJob, len(j.Output), j.Animation.NumSoaTracks())
	}
	return nil
}

// Validate reports whether the job can run.
func (j *SamplingJob) Validate() bool {
	return j.Check() == nil
}

// Run samples the animation. It returns false, without writing anything, if
// the job is invalid.
func (j *SamplingJob) Run() bool {
	if !j.Validate() {
		return false
	}

	a := j.Animation
	ctx := j.Context
	ctx.bind(a)

	ratio := min(max(j.Ratio, 0), 1)

	var bindJoints int
	if j.Skeleton != nil {
		bindJoints = j.Skeleton.NumJoints()
	}

	numTracks := a.NumTracks()
	for batch := 0; batch < a.NumSoaTracks(); batch++ {
		out := &j.Output[batch]
		for lane := 0; lane < math.SoaWidth; lane++ {
			track := batch*math.SoaWidth + lane
			if track >= numTracks {
				out.SetLane(lane, math.TransformIdentity())
				continue
			}

			rest := math.TransformIdentity()
			if track < bindJoints {
				rest = j.Skeleton.JointBindPose(track)
			}

			out.SetLane(lane, math.Transform{
				Translation: sampleFloat3(a.translationKeys(track), &ctx.translationCursors[track], ratio, rest.Translation),
				Rotation:    sampleQuat(a.rotationKeys(track), &ctx.rotationCursors[track], ratio, rest.Rotation),
				Scale:       sampleFloat3(a.scaleKeys(track), &ctx.scaleCursors[track], ratio, rest.Scale),
			})
		}
	}
	return true
}

// seek moves cursor to the bracket [k, k+1] such that ratio(k) <= r <
// ratio(k+1), or to the first/last bracket when r is outside the keys. The
// result depends only on r, never on the previous cursor position.
func seek(n int, ratioAt func(int) float32, cursor *int32, r float32) int {
	k := min(max(int(*cursor), 0), n-2)
	for k > 0 && r < ratioAt(k) {
		k--
	}
	for k < n-2 && r >= ratioAt(k+1) {
		k++
	}
	*cursor = int32(k)
	return k
}

func sampleFloat3(keys []Float3Key, cursor *int32, r float32, rest math.Vec3) math.Vec3 {
	switch len(keys) {
	case 0:
		return rest
	case 1:
		return keys[0].Decode()
	}

	k := seek(len(keys), func(i int) float32 { return keys[i].Ratio }, cursor, r)
	k0, k1 := keys[k], keys[k+1]
	switch {
	case r <= k0.Ratio:
		return k0.Decode()
	case r >= k1.Ratio:
		return k1.Decode()
	}
	alpha := (r - k0.Ratio) / (k1.Ratio - k0.Ratio)
	return k0.Decode().Lerp(k1.Decode(), alpha)
}

func sampleQuat(keys []QuatKey, cursor *int32, r float32, rest math.Quat) math.Quat {
	switch len(keys) {
	case 0:
		return rest
	case 1:
		return keys[0].Decode()
	}

	k := seek(len(keys), func(i int) float32 { return keys[i].Ratio }, cursor, r)
	k0, k1 := keys[k], keys[k+1]
	switch {
	case r <= k0.Ratio:
		return k0.Decode()
	case r >= k1.Ratio:
		return k1.Decode()
	}
	q0, q1 := k0.Decode(), k1.Decode()
	if q0.Dot(q1) < 0 {
		q1 = q1.Negate()
	}
	alpha := (r - k0.Ratio) / (k1.Ratio - k0.Ratio)
	return q0.NLerp(q1, alpha)
}
