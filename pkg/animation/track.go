package animation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

// ErrInvalidTrack is returned when track keys are malformed.
var ErrInvalidTrack = errors.New("animation: invalid track")

// TrackValue lists the value types a Track can hold.
type TrackValue interface {
	float32 | math.Vec3 | math.Quat
}

// Track is an immutable, linearly interpolated user-channel curve, such as a
// blend weight or an IK target, keyed by ratio in [0, 1].
type Track[V TrackValue] struct {
	name   string
	ratios []float32
	values []V
}

// FloatTrack animates a scalar.
type FloatTrack = Track[float32]

// Float3Track animates a vector.
type Float3Track = Track[math.Vec3]

// QuaternionTrack animates a rotation.
type QuaternionTrack = Track[math.Quat]

// NewTrack builds a track from matching ratio and value slices. There must
// be at least two keys, the first at ratio 0 and the last at ratio 1, with
// strictly increasing ratios in between.
func NewTrack[V TrackValue](name string, ratios []float32, values []V) (*Track[V], error) {
	if len(ratios) != len(values) {
		return nil, fmt.Errorf("%w: %d ratios for %d values", ErrInvalidTrack, len(ratios), len(values))
	}
	if len(ratios) < 2 || ratios[0] != 0 || ratios[len(ratios)-1] != 1 {
		return nil, fmt.Errorf("%w: keys must span ratios 0 to 1", ErrInvalidTrack)
	}
	for i := 1; i < len(ratios); i++ {
		if !(ratios[i] > ratios[i-1]) {
			return nil, fmt.Errorf("%w: ratio %v at key %d does not increase", ErrInvalidTrack, ratios[i], i)
		}
	}
	return &Track[V]{
		name:   name,
		ratios: append([]float32(nil), ratios...),
		values: append([]V(nil), values...),
	}, nil
}

// Name returns the track name.
func (t *Track[V]) Name() string { return t.name }

// NumKeys returns the number of keys.
func (t *Track[V]) NumKeys() int { return len(t.ratios) }

// Ratios returns the key ratios. The slice must not be modified.
func (t *Track[V]) Ratios() []float32 { return t.ratios }

// Values returns the key values. The slice must not be modified.
func (t *Track[V]) Values() []V { return t.values }

// TrackSamplingJob evaluates a track at a ratio.
type TrackSamplingJob[V TrackValue] struct {
	// Track is the curve to sample.
	Track *Track[V]
	// Ratio is clamped to [0, 1].
	Ratio float32
	// Result receives the interpolated value.
	Result *V
}

// Check returns the first configuration problem, wrapping ErrInvalidJob.
func (j *TrackSamplingJob[V]) Check() error {
	if j.Track == nil {
		return fmt.Errorf("%w: track sampling: nil track", ErrInvalidJob)
	}
	if j.Result == nil {
		return fmt.Errorf("%w: track sampling: nil result", ErrInvalidJob)
	}
	return nil
}

// Validate reports whether the job can run.
func (j *TrackSamplingJob[V]) Validate() bool {
	return j.Check() == nil
}

// Run writes the track value at Ratio into Result. It returns false, without
// writing anything, if the job is invalid.
func (j *TrackSamplingJob[V]) Run() bool {
	if !j.Validate() {
		return false
	}

	ratio := min(max(j.Ratio, 0), 1)
	ratios := j.Track.ratios

	// First key strictly after ratio; the last key stands in at ratio 1.
	k1 := sort.Search(len(ratios), func(i int) bool { return ratios[i] > ratio })
	k1 = min(max(k1, 1), len(ratios)-1)
	k0 := k1 - 1

	alpha := (ratio - ratios[k0]) / (ratios[k1] - ratios[k0])
	*j.Result = lerpTrackValue(j.Track.values[k0], j.Track.values[k1], alpha)
	return true
}

func lerpTrackValue[V TrackValue](a, b V, t float32) V {
	switch a := any(a).(type) {
	case float32:
		b := any(b).(float32)
		return any(a + (b-a)*t).(V)
	case math.Vec3:
		return any(a.Lerp(any(b).(math.Vec3), t)).(V)
	case math.Quat:
		q := any(b).(math.Quat)
		if a.Dot(q) < 0 {
			q = q.Negate()
		}
		return any(a.NLerp(q, t)).(V)
	}
	panic("unreachable")
}
