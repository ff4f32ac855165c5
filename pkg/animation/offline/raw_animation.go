package offline

import (
	"fmt"

	"github.com/Faultbox/midgard-anim/pkg/math"
	"github.com/Faultbox/midgard-anim/pkg/skeleton"
)

// TranslationKey is a translation value at a time in seconds.
type TranslationKey struct {
	Time  float32
	Value math.Vec3
}

// RotationKey is a rotation value at a time in seconds.
type RotationKey struct {
	Time  float32
	Value math.Quat
}

// ScaleKey is a scale value at a time in seconds.
type ScaleKey struct {
	Time  float32
	Value math.Vec3
}

// JointTrack holds the keys of one joint. Each component is sorted by time
// and may be empty.
type JointTrack struct {
	Translations []TranslationKey
	Rotations    []RotationKey
	Scales       []ScaleKey
}

// RawAnimation is an editable, uncompressed animation. Track i animates
// joint i of the skeleton it was authored for.
type RawAnimation struct {
	Name     string
	Duration float32
	Tracks   []JointTrack
}

// NumTracks returns the number of joint tracks.
func (a *RawAnimation) NumTracks() int {
	return len(a.Tracks)
}

// Validate checks the duration, the track count and that the keys of every
// component lie within [0, Duration] in strictly increasing time order.
func (a *RawAnimation) Validate() error {
	if !(a.Duration > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, a.Duration)
	}
	if len(a.Tracks) > skeleton.MaxJoints {
		return fmt.Errorf("%w: %d > %d", ErrTooManyTracks, len(a.Tracks), skeleton.MaxJoints)
	}

	for i := range a.Tracks {
		tr := &a.Tracks[i]
		if err := checkTimes(len(tr.Translations), func(k int) float32 { return tr.Translations[k].Time }, a.Duration); err != nil {
			return fmt.Errorf("track %d translations: %w", i, err)
		}
		if err := checkTimes(len(tr.Rotations), func(k int) float32 { return tr.Rotations[k].Time }, a.Duration); err != nil {
			return fmt.Errorf("track %d rotations: %w", i, err)
		}
		if err := checkTimes(len(tr.Scales), func(k int) float32 { return tr.Scales[k].Time }, a.Duration); err != nil {
			return fmt.Errorf("track %d scales: %w", i, err)
		}
	}
	return nil
}

func checkTimes(n int, timeAt func(int) float32, duration float32) error {
	prev := float32(-1)
	for k := 0; k < n; k++ {
		t := timeAt(k)
		if !(t >= 0 && t <= duration) {
			return fmt.Errorf("%w: key %d at %v", ErrKeyOutOfRange, k, t)
		}
		if t <= prev {
			return fmt.Errorf("%w: key %d at %v after %v", ErrKeyOrder, k, t, prev)
		}
		prev = t
	}
	return nil
}
