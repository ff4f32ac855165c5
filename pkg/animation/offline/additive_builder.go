package offline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

// BuildAdditive returns a copy of raw whose keys are deltas from the first
// key of each track component. The result is meant for an additive blending
// layer: applying it at full weight on top of the first pose restores raw.
func BuildAdditive(raw *RawAnimation) (*RawAnimation, error) {
	if err := raw.Validate(); err != nil {
		logger.Named("offline").Warn("rejected additive source", zap.String("name", raw.Name), zap.Error(err))
		return nil, err
	}

	ref := make([]math.Transform, len(raw.Tracks))
	for i := range raw.Tracks {
		tr := &raw.Tracks[i]
		ref[i] = math.TransformIdentity()
		if len(tr.Translations) > 0 {
			ref[i].Translation = tr.Translations[0].Value
		}
		if len(tr.Rotations) > 0 {
			ref[i].Rotation = tr.Rotations[0].Value
		}
		if len(tr.Scales) > 0 {
			ref[i].Scale = tr.Scales[0].Value
		}
	}
	return makeDelta(raw, ref), nil
}

// BuildAdditiveFromPose is BuildAdditive with deltas taken against a
// reference pose, usually the skeleton bind pose. The pose must cover every
// track.
func BuildAdditiveFromPose(raw *RawAnimation, pose []math.Transform) (*RawAnimation, error) {
	if err := raw.Validate(); err != nil {
		logger.Named("offline").Warn("rejected additive source", zap.String("name", raw.Name), zap.Error(err))
		return nil, err
	}
	if len(pose) < len(raw.Tracks) {
		return nil, fmt.Errorf("%w: %d < %d", ErrReferencePose, len(pose), len(raw.Tracks))
	}
	return makeDelta(raw, pose), nil
}

func makeDelta(raw *RawAnimation, ref []math.Transform) *RawAnimation {
	out := &RawAnimation{
		Name:     raw.Name,
		Duration: raw.Duration,
		Tracks:   make([]JointTrack, len(raw.Tracks)),
	}

	for i := range raw.Tracks {
		src, dst := &raw.Tracks[i], &out.Tracks[i]
		r := ref[i]

		if len(src.Translations) > 0 {
			dst.Translations = make([]TranslationKey, len(src.Translations))
			for k, key := range src.Translations {
				dst.Translations[k] = TranslationKey{Time: key.Time, Value: key.Value.Sub(r.Translation)}
			}
		}
		if len(src.Rotations) > 0 {
			inv := r.Rotation.Conjugate()
			dst.Rotations = make([]RotationKey, len(src.Rotations))
			for k, key := range src.Rotations {
				dst.Rotations[k] = RotationKey{Time: key.Time, Value: key.Value.Mul(inv)}
			}
		}
		if len(src.Scales) > 0 {
			dst.Scales = make([]ScaleKey, len(src.Scales))
			for k, key := range src.Scales {
				dst.Scales[k] = ScaleKey{Time: key.Time, Value: key.Value.Div(r.Scale)}
			}
		}
	}

	logger.Named("offline").Debug("built additive animation",
		zap.String("name", out.Name),
		zap.Int("tracks", len(out.Tracks)))
	return out
}
