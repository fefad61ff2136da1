package serialmux

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate is the controller board's UART speed.
const DefaultBaudRate = 115200

// PortOptions describes the UART framing of the controller board link.
// Zero values select 115200 8N1.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

var parityNames = map[string]string{
	"N": "N", "NONE": "N",
	"E": "E", "EVEN": "E",
	"O": "O", "ODD": "O",
}

var parityModes = map[string]serial.Parity{
	"N": serial.NoParity,
	"E": serial.EvenParity,
	"O": serial.OddParity,
}

var stopBitModes = map[int]serial.StopBits{
	1: serial.OneStopBit,
	2: serial.TwoStopBits,
}

// Normalize fills in defaults and canonicalizes Parity to N, E or O.
func (o PortOptions) Normalize() (PortOptions, error) {
	if o.BaudRate <= 0 {
		o.BaudRate = DefaultBaudRate
	}
	if o.DataBits == 0 {
		o.DataBits = 8
	}
	if o.StopBits == 0 {
		o.StopBits = 1
	}
	if o.DataBits < 5 || o.DataBits > 8 {
		return o, fmt.Errorf("invalid data bits %d: must be between 5 and 8", o.DataBits)
	}
	if _, ok := stopBitModes[o.StopBits]; !ok {
		return o, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", o.StopBits)
	}

	key := strings.ToUpper(strings.TrimSpace(o.Parity))
	if key == "" {
		key = "N"
	}
	parity, ok := parityNames[key]
	if !ok {
		return o, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	o.Parity = parity
	return o, nil
}

// SerialMode converts the options into the mode go.bug.st/serial opens
// the port with.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	n, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	return &serial.Mode{
		BaudRate: n.BaudRate,
		DataBits: n.DataBits,
		Parity:   parityModes[n.Parity],
		StopBits: stopBitModes[n.StopBits],
	}, nil
}
