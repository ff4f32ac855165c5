// Package animation implements the runtime animation pipeline: compressed
// keyframe storage, sampling, blending and local-to-model conversion.
package animation

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-anim/pkg/math"
	"github.com/Faultbox/midgard-anim/pkg/skeleton"
)

// Animation construction errors.
var (
	ErrInvalidDuration = errors.New("animation: duration must be positive")
	ErrTooManyTracks   = errors.New("animation: too many tracks")
	ErrInvalidKeys     = errors.New("animation: key ratios must be strictly increasing within [0, 1]")
)

// TrackKeys holds the compressed keys of one joint track, ratio ascending.
type TrackKeys struct {
	Translations []Float3Key
	Rotations    []QuatKey
	Scales       []Float3Key
}

// Animation is an immutable, compressed set of joint tracks. Keys of a track
// are contiguous, addressed through per-component offset tables.
type Animation struct {
	name      string
	duration  float32
	numTracks int

	translations []Float3Key
	rotations    []QuatKey
	scales       []Float3Key

	// offsets[t]..offsets[t+1] is the key range of track t.
	translationOffsets []int32
	rotationOffsets    []int32
	scaleOffsets       []int32
}

// New assembles an animation from already compressed tracks. Key ratios of
// every component must be strictly increasing and lie in [0, 1].
func New(name string, duration float32, tracks []TrackKeys) (*Animation, error) {
	if !(duration > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDuration, duration)
	}
	if len(tracks) > skeleton.MaxJoints {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyTracks, len(tracks), skeleton.MaxJoints)
	}

	a := &Animation{
		name:               name,
		duration:           duration,
		numTracks:          len(tracks),
		translationOffsets: make([]int32, len(tracks)+1),
		rotationOffsets:    make([]int32, len(tracks)+1),
		scaleOffsets:       make([]int32, len(tracks)+1),
	}

	for i, tr := range tracks {
		if err := checkRatios(len(tr.Translations), func(k int) float32 { return tr.Translations[k].Ratio }); err != nil {
			return nil, fmt.Errorf("track %d translations: %w", i, err)
		}
		if err := checkRatios(len(tr.Rotations), func(k int) float32 { return tr.Rotations[k].Ratio }); err != nil {
			return nil, fmt.Errorf("track %d rotations: %w", i, err)
		}
		if err := checkRatios(len(tr.Scales), func(k int) float32 { return tr.Scales[k].Ratio }); err != nil {
			return nil, fmt.Errorf("track %d scales: %w", i, err)
		}

		a.translations = append(a.translations, tr.Translations...)
		a.rotations = append(a.rotations, tr.Rotations...)
		a.scales = append(a.scales, tr.Scales...)
		a.translationOffsets[i+1] = int32(len(a.translations))
		a.rotationOffsets[i+1] = int32(len(a.rotations))
		a.scaleOffsets[i+1] = int32(len(a.scales))
	}

	return a, nil
}

func checkRatios(n int, ratio func(int) float32) error {
	prev := float32(-1)
	for k := 0; k < n; k++ {
		r := ratio(k)
		if !(r >= 0 && r <= 1) || r <= prev {
			return fmt.Errorf("%w: key %d at ratio %v", ErrInvalidKeys, k, r)
		}
		prev = r
	}
	return nil
}

// Name returns the animation name.
func (a *Animation) Name() string {
	return a.name
}

// Duration returns the duration in seconds.
func (a *Animation) Duration() float32 {
	return a.duration
}

// NumTracks returns the number of joint tracks.
func (a *Animation) NumTracks() int {
	return a.numTracks
}

// NumSoaTracks returns the number of SoA batches needed for the tracks.
func (a *Animation) NumSoaTracks() int {
	return math.SoaCount(a.numTracks)
}

// Track returns the keys of track t. The slices alias the animation storage
// and must not be modified.
func (a *Animation) Track(t int) TrackKeys {
	return TrackKeys{
		Translations: a.translationKeys(t),
		Rotations:    a.rotationKeys(t),
		Scales:       a.scaleKeys(t),
	}
}

func (a *Animation) translationKeys(t int) []Float3Key {
	return a.translations[a.translationOffsets[t]:a.translationOffsets[t+1]]
}

func (a *Animation) rotationKeys(t int) []QuatKey {
	return a.rotations[a.rotationOffsets[t]:a.rotationOffsets[t+1]]
}

func (a *Animation) scaleKeys(t int) []Float3Key {
	return a.scales[a.scaleOffsets[t]:a.scaleOffsets[t+1]]
}

// Size returns an estimate of the memory used by the keys, in bytes.
func (a *Animation) Size() int {
	const float3KeySize, quatKeySize = 10, 12
	return len(a.translations)*float3KeySize + len(a.rotations)*quatKeySize +
		len(a.scales)*float3KeySize + 3*4*(a.numTracks+1)
}
