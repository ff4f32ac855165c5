package offline

import (
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/pkg/animation"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

// BuildAnimation validates raw and compresses it into a runtime animation.
//
// Key times become ratios of the duration. A component with keys always
// gets a key at ratio 0 and at ratio 1, duplicated from its first and last
// keys. Translations and scales are stored as half floats, rotations with the
// smallest-three scheme after being normalized and moved to the hemisphere
// of the previous key. Components without keys stay empty.
func BuildAnimation(raw *RawAnimation) (*animation.Animation, error) {
	if err := raw.Validate(); err != nil {
		logger.Named("offline").Warn("rejected raw animation",
			zap.String("name", raw.Name),
			zap.Error(err))
		return nil, err
	}

	d := raw.Duration
	tracks := make([]animation.TrackKeys, len(raw.Tracks))
	for i := range raw.Tracks {
		tr := &raw.Tracks[i]
		tracks[i] = animation.TrackKeys{
			Translations: float3Keys(len(tr.Translations), func(k int) (float32, math.Vec3) {
				return tr.Translations[k].Time, tr.Translations[k].Value
			}, d),
			Rotations: quatKeys(tr.Rotations, d),
			Scales: float3Keys(len(tr.Scales), func(k int) (float32, math.Vec3) {
				return tr.Scales[k].Time, tr.Scales[k].Value
			}, d),
		}
	}

	a, err := animation.New(raw.Name, d, tracks)
	if err != nil {
		return nil, err
	}

	logger.Named("offline").Debug("built animation",
		zap.String("name", a.Name()),
		zap.Float32("duration", d),
		zap.Int("tracks", a.NumTracks()),
		zap.Int("bytes", a.Size()))
	return a, nil
}

// ratioTrack collects ratio-ordered keys, dropping a key whose ratio does
// not advance past the previous one after float rounding.
type ratioTrack[K any] struct {
	keys []K
	last float32
}

func (t *ratioTrack[K]) push(r float32, k K) {
	if len(t.keys) > 0 && r <= t.last {
		return
	}
	t.keys = append(t.keys, k)
	t.last = r
}

func float3Keys(n int, at func(int) (float32, math.Vec3), duration float32) []animation.Float3Key {
	if n == 0 {
		return nil
	}

	t := ratioTrack[animation.Float3Key]{keys: make([]animation.Float3Key, 0, n+2)}
	if t0, v := at(0); t0 > 0 {
		t.push(0, animation.EncodeFloat3Key(0, v))
	}
	for k := 0; k < n; k++ {
		time, v := at(k)
		r := time / duration
		t.push(r, animation.EncodeFloat3Key(r, v))
	}
	if tn, v := at(n - 1); tn < duration {
		t.push(1, animation.EncodeFloat3Key(1, v))
	}
	return t.keys
}

func quatKeys(src []RotationKey, duration float32) []animation.QuatKey {
	if len(src) == 0 {
		return nil
	}

	// Hemisphere-fixed, normalized copies so that consecutive keys never
	// interpolate the long way around.
	values := make([]math.Quat, len(src))
	prev := math.QuatIdentity()
	for k, key := range src {
		q := key.Value.NormalizeSafe(math.QuatIdentity())
		if k > 0 && prev.Dot(q) < 0 {
			q = q.Negate()
		}
		values[k] = q
		prev = q
	}

	t := ratioTrack[animation.QuatKey]{keys: make([]animation.QuatKey, 0, len(src)+2)}
	if src[0].Time > 0 {
		t.push(0, animation.EncodeQuatKey(0, values[0]))
	}
	for k, key := range src {
		r := key.Time / duration
		t.push(r, animation.EncodeQuatKey(r, values[k]))
	}
	if last := len(src) - 1; src[last].Time < duration {
		t.push(1, animation.EncodeQuatKey(1, values[last]))
	}
	return t.keys
}
