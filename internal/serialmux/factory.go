package serialmux

import (
	"go.bug.st/serial"
)

// PortOpener opens a serial device. It is a variable so tests can replace it.
var PortOpener = func(path string, mode *serial.Mode) (SerialPorter, error) {
	return serial.Open(path, mode)
}

// NewRealSerialMux creates a SerialMux instance backed by a real serial port at the
// given path using the provided serial options.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := PortOpener(path, mode)
	if err != nil {
		return nil, err
	}

	return NewSerialMux[SerialPorter](port), nil
}
