// Package input turns raw gamepad samples into named pilot controls.
//
// Gamepad drivers report axes and buttons positionally, and which index is
// which stick depends on the controller. Mapping resolves those positions
// once, at the boundary, so the rest of the pipeline sees Controls only.
package input

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedSample is wrapped by every validation failure in Extract.
var ErrMalformedSample = errors.New("malformed input sample")

// RawSample is one report from the gamepad driver. Axes are in [-1, 1];
// buttons are 0 when released.
type RawSample struct {
	Axes    []float64 `json:"axes"`
	Buttons []int     `json:"buttons"`
}

// ParseRawSample decodes the JSON datagram format.
func ParseRawSample(data []byte) (RawSample, error) {
	var s RawSample
	if err := json.Unmarshal(data, &s); err != nil {
		return RawSample{}, fmt.Errorf("%w: %v", ErrMalformedSample, err)
	}
	return s, nil
}

// Mapping names the axis and button indices for each control.
type Mapping struct {
	SurgeAxis      int `json:"surge_axis"`
	HeaveAxis      int `json:"heave_axis"`
	YawAxis        int `json:"yaw_axis"`
	LightAxis      int `json:"light_axis"`
	LaserButton    int `json:"laser_button"`
	CameraTiltAxis int `json:"camera_tilt_axis"`
}

// DefaultMapping matches the Logitech F310 layout reported by the ROS joy
// driver: left stick surge/yaw, right stick heave, d-pad lights and tilt.
func DefaultMapping() Mapping {
	return Mapping{
		SurgeAxis:      1,
		HeaveAxis:      4,
		YawAxis:        0,
		LightAxis:      6,
		LaserButton:    4,
		CameraTiltAxis: 7,
	}
}

// Controls is a validated sample with named fields.
type Controls struct {
	Surge      float64 `json:"surge"`
	Heave      float64 `json:"heave"`
	Yaw        float64 `json:"yaw"`
	Light      float64 `json:"light"`
	Laser      bool    `json:"laser"`
	CameraTilt float64 `json:"camera_tilt"`
}

// MinAxes is the number of axes a sample must carry for this mapping.
func (m Mapping) MinAxes() int {
	return 1 + max(m.SurgeAxis, m.HeaveAxis, m.YawAxis, m.LightAxis, m.CameraTiltAxis)
}

// MinButtons is the number of buttons a sample must carry for this mapping.
func (m Mapping) MinButtons() int {
	return 1 + m.LaserButton
}

// Validate checks that the indices are usable.
func (m Mapping) Validate() error {
	indices := []struct {
		name string
		idx  int
		axis bool
	}{
		{"surge_axis", m.SurgeAxis, true},
		{"heave_axis", m.HeaveAxis, true},
		{"yaw_axis", m.YawAxis, true},
		{"light_axis", m.LightAxis, true},
		{"camera_tilt_axis", m.CameraTiltAxis, true},
		{"laser_button", m.LaserButton, false},
	}
	for _, in := range indices {
		if in.idx < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", in.name, in.idx)
		}
	}

	seen := map[int]string{}
	for _, in := range indices {
		if !in.axis {
			continue
		}
		if other, ok := seen[in.idx]; ok {
			return fmt.Errorf("%s and %s both use axis %d", other, in.name, in.idx)
		}
		seen[in.idx] = in.name
	}
	return nil
}

// Extract validates s against the mapping and returns the named controls.
// Short arrays and non-finite or out-of-range axis values are rejected.
func (m Mapping) Extract(s RawSample) (Controls, error) {
	if len(s.Axes) < m.MinAxes() {
		return Controls{}, fmt.Errorf("%w: got %d axes, need at least %d", ErrMalformedSample, len(s.Axes), m.MinAxes())
	}
	if len(s.Buttons) < m.MinButtons() {
		return Controls{}, fmt.Errorf("%w: got %d buttons, need at least %d", ErrMalformedSample, len(s.Buttons), m.MinButtons())
	}

	axis := func(i int) (float64, error) {
		v := s.Axes[i]
		if math.IsNaN(v) || v < -1 || v > 1 {
			return 0, fmt.Errorf("%w: axis %d value %v outside [-1, 1]", ErrMalformedSample, i, v)
		}
		return v, nil
	}

	var c Controls
	var err error
	if c.Surge, err = axis(m.SurgeAxis); err != nil {
		return Controls{}, err
	}
	if c.Heave, err = axis(m.HeaveAxis); err != nil {
		return Controls{}, err
	}
	if c.Yaw, err = axis(m.YawAxis); err != nil {
		return Controls{}, err
	}
	if c.Light, err = axis(m.LightAxis); err != nil {
		return Controls{}, err
	}
	if c.CameraTilt, err = axis(m.CameraTiltAxis); err != nil {
		return Controls{}, err
	}
	c.Laser = s.Buttons[m.LaserButton] != 0
	return c, nil
}
