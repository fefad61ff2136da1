package auxiliary

// LaserState is the value sent to the laser driver.
type LaserState int

const (
	LaserOff LaserState = 0
	LaserOn  LaserState = 255
)

func (s LaserState) String() string {
	if s == LaserOn {
		return "on"
	}
	return "off"
}

// Latch flips between LaserOff and LaserOn on each button press. A press is
// the transition from released to pressed between consecutive samples, so a
// button held across many samples toggles once.
type Latch struct {
	state   LaserState
	pressed bool
}

// NewLatch returns a latch in the off state.
func NewLatch() *Latch {
	return &Latch{state: LaserOff}
}

// State is the current latch output.
func (l *Latch) State() LaserState { return l.state }

// Update feeds one button sample and reports whether the state flipped.
func (l *Latch) Update(pressed bool) (LaserState, bool) {
	edge := pressed && !l.pressed
	l.pressed = pressed
	if !edge {
		return l.state, false
	}
	if l.state == LaserOff {
		l.state = LaserOn
	} else {
		l.state = LaserOff
	}
	return l.state, true
}
