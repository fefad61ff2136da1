package allocation

import "math"

// Pulse widths in microseconds understood by the thruster ESCs.
const (
	PulseMin     = 1000
	PulseNeutral = 1500
	PulseMax     = 2000
	pulseSpan    = 500
)

// Encode maps a normalized command onto an ESC pulse width. Inputs outside
// [-1, 1] are clamped so an out-of-range width never leaves the process, and
// NaN encodes to neutral.
func Encode(percent float64) int {
	if math.IsNaN(percent) {
		return PulseNeutral
	}
	percent = math.Max(-1, math.Min(1, percent))
	return PulseNeutral + int(math.Round(percent*pulseSpan))
}

// Command is the pulse width per thruster, in microseconds.
type Command struct {
	Port      int `json:"port"`
	Vertical  int `json:"vertical"`
	Starboard int `json:"starboard"`
}

// NeutralCommand stops all three thrusters.
func NeutralCommand() Command {
	return Command{Port: PulseNeutral, Vertical: PulseNeutral, Starboard: PulseNeutral}
}

// EncodeAll encodes each component of p.
func EncodeAll(p Percents) Command {
	return Command{
		Port:      Encode(p.Port),
		Vertical:  Encode(p.Vertical),
		Starboard: Encode(p.Starboard),
	}
}

// Array returns the command in [port, vertical, starboard] order.
func (c Command) Array() [3]int {
	return [3]int{c.Port, c.Vertical, c.Starboard}
}
