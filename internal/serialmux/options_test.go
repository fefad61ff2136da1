package serialmux

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptions_Normalize_Defaults(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestPortOptions_Normalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"data bits too small", PortOptions{DataBits: 4}},
		{"data bits too large", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "mark"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.opts.Normalize(); err == nil {
				t.Errorf("Normalize(%+v) expected error", tt.opts)
			}
		})
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	tests := []struct {
		opts   PortOptions
		parity serial.Parity
		stop   serial.StopBits
	}{
		{PortOptions{}, serial.NoParity, serial.OneStopBit},
		{PortOptions{Parity: "even", StopBits: 2}, serial.EvenParity, serial.TwoStopBits},
		{PortOptions{Parity: "o"}, serial.OddParity, serial.OneStopBit},
	}
	for _, tt := range tests {
		mode, err := tt.opts.SerialMode()
		if err != nil {
			t.Fatalf("SerialMode(%+v) error = %v", tt.opts, err)
		}
		if mode.BaudRate != DefaultBaudRate {
			t.Errorf("BaudRate = %d, want %d", mode.BaudRate, DefaultBaudRate)
		}
		if mode.Parity != tt.parity {
			t.Errorf("Parity = %v, want %v", mode.Parity, tt.parity)
		}
		if mode.StopBits != tt.stop {
			t.Errorf("StopBits = %v, want %v", mode.StopBits, tt.stop)
		}
	}
}
