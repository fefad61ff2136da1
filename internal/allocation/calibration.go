// Package allocation maps a desired body wrench onto the three thrusters of
// the vehicle: matrix solve, per-thruster calibration, saturation limiting and
// pulse-width encoding.
package allocation

// Curve is a piecewise-linear thrust calibration: force in newtons divided by
// the thruster's maximum force in that direction gives the fraction of full
// command. Values are not clamped here.
type Curve struct {
	Name       string
	MaxForward float64 // N at full forward command
	MaxReverse float64 // N at full reverse command (positive magnitude)
}

// PortStarboardCurve is the bench-measured approximation for the port and
// starboard thrusters: 1.5 kg (14.7 N) forward, 11 N reverse.
var PortStarboardCurve = Curve{Name: "port_starboard", MaxForward: 14.7, MaxReverse: 11}

// VerticalCurve is the vertical thruster curve. No bollard data exists for
// this motor yet so it is assumed symmetric.
var VerticalCurve = Curve{Name: "vertical", MaxForward: 14.7, MaxReverse: 14.7}

// ThrustPercent converts a desired thruster force into a normalized command.
// The result has the sign of force and may fall outside [-1, 1] when more
// force is requested than the thruster can deliver.
func ThrustPercent(force float64, c Curve) float64 {
	switch {
	case force > 0:
		return force / c.MaxForward
	case force < 0:
		return force / c.MaxReverse
	default:
		return 0
	}
}

// Percents holds one normalized command per thruster.
type Percents struct {
	Port      float64 `json:"port"`
	Vertical  float64 `json:"vertical"`
	Starboard float64 `json:"starboard"`
}

// Calibrate applies the per-thruster curves to a force vector.
func Calibrate(f Forces) Percents {
	return Percents{
		Port:      ThrustPercent(f.Port, PortStarboardCurve),
		Vertical:  ThrustPercent(f.Vertical, VerticalCurve),
		Starboard: ThrustPercent(f.Starboard, PortStarboardCurve),
	}
}
