package offline

import (
	"fmt"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

// SampleTrack evaluates track at time. Keys are interpolated linearly, with
// rotations taking the shortest path. Times outside the keys clamp to the
// first or last key, and a component without keys yields identity.
func SampleTrack(track *JointTrack, time float32) math.Transform {
	out := math.TransformIdentity()

	if n := len(track.Translations); n > 0 {
		k, alpha := bracket(n, func(i int) float32 { return track.Translations[i].Time }, time)
		out.Translation = track.Translations[k].Value
		if alpha > 0 {
			out.Translation = out.Translation.Lerp(track.Translations[k+1].Value, alpha)
		}
	}
	if n := len(track.Rotations); n > 0 {
		k, alpha := bracket(n, func(i int) float32 { return track.Rotations[i].Time }, time)
		out.Rotation = track.Rotations[k].Value
		if alpha > 0 {
			next := track.Rotations[k+1].Value
			if out.Rotation.Dot(next) < 0 {
				next = next.Negate()
			}
			out.Rotation = out.Rotation.NLerp(next, alpha)
		}
	}
	if n := len(track.Scales); n > 0 {
		k, alpha := bracket(n, func(i int) float32 { return track.Scales[i].Time }, time)
		out.Scale = track.Scales[k].Value
		if alpha > 0 {
			out.Scale = out.Scale.Lerp(track.Scales[k+1].Value, alpha)
		}
	}
	return out
}

// bracket returns the key k preceding time and the interpolation factor
// toward k+1. alpha is 0 when time is at or outside the key range.
func bracket(n int, timeAt func(int) float32, time float32) (int, float32) {
	if time <= timeAt(0) {
		return 0, 0
	}
	if time >= timeAt(n-1) {
		return n - 1, 0
	}
	k := 0
	for time >= timeAt(k+1) {
		k++
	}
	t0, t1 := timeAt(k), timeAt(k+1)
	return k, (time - t0) / (t1 - t0)
}

// SampleAnimation evaluates every track of raw at time, clamped to
// [0, Duration], into out. out must hold at least raw.NumTracks transforms.
func SampleAnimation(raw *RawAnimation, time float32, out []math.Transform) error {
	if err := raw.Validate(); err != nil {
		return err
	}
	if len(out) < len(raw.Tracks) {
		return fmt.Errorf("offline: output holds %d transforms, need %d", len(out), len(raw.Tracks))
	}

	time = min(max(time, 0), raw.Duration)
	for i := range raw.Tracks {
		out[i] = SampleTrack(&raw.Tracks[i], time)
	}
	return nil
}
