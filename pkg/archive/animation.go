package archive

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/pkg/animation"
	"github.com/Faultbox/midgard-anim/pkg/skeleton"
)

// WriteAnimation serializes a.
//
// Layout after the header: duration, track count, name, total key counts per
// component, per-track key counts, then the translation, rotation and scale
// key arrays in track order.
func WriteAnimation(w io.Writer, a *animation.Animation) error {
	out := newWriter(w)
	out.header(AnimationTag, AnimationVersion)
	writeAnimationBody(out, a)
	return out.flush()
}

func writeAnimationBody(out *writer, a *animation.Animation) {
	n := a.NumTracks()
	out.f32(a.Duration())
	out.u32(uint32(n))
	out.str(a.Name())
	out.u32(uint32(animation.CountTranslationKeys(a, -1)))
	out.u32(uint32(animation.CountRotationKeys(a, -1)))
	out.u32(uint32(animation.CountScaleKeys(a, -1)))

	for t := 0; t < n; t++ {
		tr := a.Track(t)
		out.u32(uint32(len(tr.Translations)))
		out.u32(uint32(len(tr.Rotations)))
		out.u32(uint32(len(tr.Scales)))
	}
	for t := 0; t < n; t++ {
		for _, k := range a.Track(t).Translations {
			writeFloat3Key(out, k)
		}
	}
	for t := 0; t < n; t++ {
		for _, k := range a.Track(t).Rotations {
			out.f32(k.Ratio)
			out.u8(k.Largest)
			sign := uint8(0)
			if k.Sign {
				sign = 1
			}
			out.u8(sign)
			for _, v := range k.Value {
				out.u16(uint16(v))
			}
		}
	}
	for t := 0; t < n; t++ {
		for _, k := range a.Track(t).Scales {
			writeFloat3Key(out, k)
		}
	}
}

func writeFloat3Key(out *writer, k animation.Float3Key) {
	out.f32(k.Ratio)
	for _, v := range k.Value {
		out.u16(v)
	}
}

// ReadAnimation deserializes an animation written by WriteAnimation.
func ReadAnimation(r io.Reader) (*animation.Animation, error) {
	in := newReader(r)
	in.expect(AnimationTag, AnimationVersion)
	return readAnimationBody(in)
}

func readAnimationBody(in *reader) (*animation.Animation, error) {
	duration := in.f32()
	n := in.count("track", skeleton.MaxJoints)
	name := in.str()
	totals := [3]int{
		in.count("translation key", maxKeys),
		in.count("rotation key", maxKeys),
		in.count("scale key", maxKeys),
	}

	tracks := make([]animation.TrackKeys, n)
	counts := make([][3]int, n)
	var sums [3]int
	for t := range counts {
		for c := range counts[t] {
			counts[t][c] = in.count("track key", maxKeys)
			sums[c] += counts[t][c]
		}
	}
	if in.err == nil && sums != totals {
		in.fail(fmt.Errorf("%w: per-track key counts %v do not add up to %v", ErrCorrupt, sums, totals))
	}

	for t := range tracks {
		if in.err != nil {
			break
		}
		tracks[t].Translations = make([]animation.Float3Key, counts[t][0])
		for k := range tracks[t].Translations {
			tracks[t].Translations[k] = readFloat3Key(in)
		}
	}
	for t := range tracks {
		if in.err != nil {
			break
		}
		tracks[t].Rotations = make([]animation.QuatKey, counts[t][1])
		for k := range tracks[t].Rotations {
			key := animation.QuatKey{Ratio: in.f32(), Largest: in.u8(), Sign: in.u8() != 0}
			for i := range key.Value {
				key.Value[i] = int16(in.u16())
			}
			if key.Largest > 3 {
				in.fail(fmt.Errorf("%w: rotation key component %d", ErrCorrupt, key.Largest))
			}
			tracks[t].Rotations[k] = key
		}
	}
	for t := range tracks {
		if in.err != nil {
			break
		}
		tracks[t].Scales = make([]animation.Float3Key, counts[t][2])
		for k := range tracks[t].Scales {
			tracks[t].Scales[k] = readFloat3Key(in)
		}
	}

	if in.err != nil {
		logger.Named("archive").Warn("rejected animation", zap.Error(in.err))
		return nil, in.err
	}

	a, err := animation.New(name, duration, tracks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	logger.Named("archive").Debug("loaded animation",
		zap.String("name", name),
		zap.Float32("duration", duration),
		zap.Int("tracks", n))
	return a, nil
}

func readFloat3Key(in *reader) animation.Float3Key {
	k := animation.Float3Key{Ratio: in.f32()}
	for i := range k.Value {
		k.Value[i] = in.u16()
	}
	return k
}
