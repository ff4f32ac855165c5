package offline

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-anim/pkg/animation"
)

// ErrInvalidTrackKeys is returned for raw track keys out of range or order.
var ErrInvalidTrackKeys = errors.New("offline: track key ratios must be strictly increasing within [0, 1]")

// Interpolation selects how a raw track moves from a key to the next one.
type Interpolation int

const (
	// Linear interpolates towards the next key.
	Linear Interpolation = iota
	// Step holds the key value until the next key.
	Step
)

// TrackKey is a value at a ratio in [0, 1].
type TrackKey[V animation.TrackValue] struct {
	Interpolation Interpolation
	Ratio         float32
	Value         V
}

// RawTrack is an editable user-channel curve. Keys are sorted by ratio.
type RawTrack[V animation.TrackValue] struct {
	Name string
	Keys []TrackKey[V]
}

// RawFloatTrack is a scalar curve.
type RawFloatTrack = RawTrack[float32]

// Validate checks that key ratios lie in [0, 1] and strictly increase.
func (t *RawTrack[V]) Validate() error {
	prev := float32(-1)
	for i, k := range t.Keys {
		if !(k.Ratio >= 0 && k.Ratio <= 1) {
			return fmt.Errorf("%w: key %d at %v", ErrInvalidTrackKeys, i, k.Ratio)
		}
		if k.Ratio <= prev {
			return fmt.Errorf("%w: key %d at %v after %v", ErrInvalidTrackKeys, i, k.Ratio, prev)
		}
		prev = k.Ratio
	}
	return nil
}
