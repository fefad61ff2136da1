// Package auxiliary holds the per-sample state machines for actuators that are
// not thrusters: the dimmable lights and the toggled laser pair.
package auxiliary

import "math"

// DefaultLightRate is the level change per sample at full axis deflection.
// The sign is negative because the d-pad reports +1 for "left" and the pilot
// dims with left.
const DefaultLightRate = -0.1

// Dimmer accumulates axis input into a light level kept within [0, 1].
type Dimmer struct {
	level float64
	rate  float64
}

// NewDimmer returns a dimmer starting fully off.
func NewDimmer(rate float64) *Dimmer {
	return &Dimmer{rate: rate}
}

// Level is the current light level.
func (d *Dimmer) Level() float64 { return d.level }

// Update advances the level by axis×rate, clamps it, and reports whether the
// stored level changed. Holding the axis at a bound reports no change.
func (d *Dimmer) Update(axis float64) (float64, bool) {
	next := d.level + axis*d.rate
	next = math.Max(0, math.Min(1, next))
	if math.IsNaN(next) || next == d.level {
		return d.level, false
	}
	d.level = next
	return next, true
}
