package playback

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Fader eases a blending layer weight toward a target over time. Call Update
// once per frame and feed Weight into the layer.
type Fader struct {
	weight float32
	target float32
	tween  *gween.Tween
	easing ease.TweenFunc
}

// NewFader returns a fader resting at weight. A nil easing uses ease.InOutQuad.
func NewFader(weight float32, easing ease.TweenFunc) *Fader {
	if easing == nil {
		easing = ease.InOutQuad
	}
	return &Fader{weight: weight, target: weight, easing: easing}
}

// FadeTo starts a fade from the current weight to target over seconds. A
// non-positive duration jumps straight to target.
func (f *Fader) FadeTo(target, seconds float32) {
	f.target = target
	if seconds <= 0 {
		f.weight = target
		f.tween = nil
		return
	}
	f.tween = gween.New(f.weight, target, seconds, f.easing)
}

// Update advances the fade by dt seconds and returns the new weight.
func (f *Fader) Update(dt float32) float32 {
	if f.tween == nil {
		return f.weight
	}
	value, finished := f.tween.Update(dt)
	f.weight = value
	if finished {
		f.weight = f.target
		f.tween = nil
	}
	return f.weight
}

// Weight returns the current weight.
func (f *Fader) Weight() float32 { return f.weight }

// Target returns the weight the fader is heading to.
func (f *Fader) Target() float32 { return f.target }

// Fading reports whether a fade is in progress.
func (f *Fader) Fading() bool { return f.tween != nil }

// CrossFade fades out to 0 and in to 1 over the same duration, keeping the
// two weights complementary when both use the same easing.
func CrossFade(out, in *Fader, seconds float32) {
	out.FadeTo(0, seconds)
	in.FadeTo(1, seconds)
}
