package offline

import (
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/pkg/animation"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

// BuildTrack validates raw and converts it into a runtime track.
//
// The result always has keys at ratio 0 and 1, copied from the nearest
// authored key. An empty track becomes constant zero, or identity for
// rotations. Step keys get an extra key just before the next one so linear
// sampling holds them.
func BuildTrack[V animation.TrackValue](raw *RawTrack[V]) (*animation.Track[V], error) {
	if err := raw.Validate(); err != nil {
		logger.Named("offline").Warn("rejected raw track",
			zap.String("name", raw.Name),
			zap.Error(err))
		return nil, err
	}

	keys := patchTrackEnds(raw.Keys)
	ratios := make([]float32, 0, 2*len(keys))
	values := make([]V, 0, 2*len(keys))
	for i, k := range keys {
		ratios = append(ratios, k.Ratio)
		values = append(values, k.Value)
		if k.Interpolation != Step || i == len(keys)-1 {
			continue
		}
		hold := gomath.Nextafter32(keys[i+1].Ratio, -1)
		if hold > k.Ratio {
			ratios = append(ratios, hold)
			values = append(values, k.Value)
		}
	}

	t, err := animation.NewTrack(raw.Name, ratios, values)
	if err != nil {
		return nil, err
	}

	logger.Named("offline").Debug("built track",
		zap.String("name", raw.Name),
		zap.Int("keys", t.NumKeys()))
	return t, nil
}

func patchTrackEnds[V animation.TrackValue](src []TrackKey[V]) []TrackKey[V] {
	if len(src) == 0 {
		v := defaultTrackValue[V]()
		return []TrackKey[V]{{Ratio: 0, Value: v}, {Ratio: 1, Value: v}}
	}

	keys := make([]TrackKey[V], 0, len(src)+2)
	if first := src[0]; first.Ratio != 0 {
		keys = append(keys, TrackKey[V]{Ratio: 0, Value: first.Value})
	}
	keys = append(keys, src...)
	if last := src[len(src)-1]; last.Ratio != 1 {
		keys = append(keys, TrackKey[V]{Ratio: 1, Value: last.Value})
	}
	return keys
}

// defaultTrackValue is zero, or identity for rotations.
func defaultTrackValue[V animation.TrackValue]() V {
	var v V
	if _, ok := any(v).(math.Quat); ok {
		return any(math.QuatIdentity()).(V)
	}
	return v
}
