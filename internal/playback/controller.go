// Package playback drives animation time and layer weights for the tools.
package playback

import "math"

// Controller advances a normalized playback time over an animation of a given
// duration. Time is stored as a ratio in [0, 1] so it survives switching
// between animations of different lengths.
type Controller struct {
	ratio float32
	speed float32
	play  bool
	loop  bool
}

// NewController returns a playing, looping controller at speed 1.
func NewController() *Controller {
	return &Controller{speed: 1, play: true, loop: true}
}

// Update advances time by dt seconds scaled by the playback speed. A
// non-looping controller clamps at either end and pauses.
func (c *Controller) Update(duration, dt float32) {
	if !c.play || duration <= 0 {
		return
	}

	next := c.ratio + dt*c.speed/duration
	if c.loop {
		// Keep the ratio in [0, 1) for any sign of speed.
		c.ratio = next - float32(math.Floor(float64(next)))
		return
	}

	switch {
	case next >= 1:
		c.ratio = 1
		c.play = false
	case next <= 0:
		c.ratio = 0
		c.play = false
	default:
		c.ratio = next
	}
}

// TimeRatio returns the current playback position in [0, 1].
func (c *Controller) TimeRatio() float32 { return c.ratio }

// SetTimeRatio moves the playback position, clamped to [0, 1].
func (c *Controller) SetTimeRatio(ratio float32) {
	c.ratio = min(max(ratio, 0), 1)
}

// Time returns the current position in seconds for an animation of the given
// duration.
func (c *Controller) Time(duration float32) float32 { return c.ratio * duration }

// Speed returns the playback speed. Negative speeds play backwards.
func (c *Controller) Speed() float32 { return c.speed }

// SetSpeed sets the playback speed.
func (c *Controller) SetSpeed(speed float32) { c.speed = speed }

// Playing reports whether Update advances time.
func (c *Controller) Playing() bool { return c.play }

// Play resumes time advancement.
func (c *Controller) Play() { c.play = true }

// Pause stops time advancement. The current ratio is kept.
func (c *Controller) Pause() { c.play = false }

// Looping reports whether Update wraps at the ends of the animation.
func (c *Controller) Looping() bool { return c.loop }

// SetLooping selects between wrapping and clamping at the ends.
func (c *Controller) SetLooping(loop bool) { c.loop = loop }

// Reset rewinds to the start and resumes playback at speed 1.
func (c *Controller) Reset() {
	c.ratio = 0
	c.speed = 1
	c.play = true
}
