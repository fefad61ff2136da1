package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/rov.teleop/internal/input"
)

// DefaultConfigPath is the path to the canonical teleop defaults file.
const DefaultConfigPath = "config/teleop.defaults.json"

// MinResendInterval bounds the dispatcher period from below. The controller
// board's 115200 baud link saturates somewhere under 100 ms per full command
// set; 50 ms leaves no margin and is only useful on the bench.
const MinResendInterval = 50 * time.Millisecond

// TeleopConfig is the on-disk configuration. Every field is optional; the
// Get* methods supply the default for anything left out, so partial files
// are safe.
type TeleopConfig struct {
	// Gamepad layout
	SurgeAxis      *int `json:"surge_axis,omitempty"`
	HeaveAxis      *int `json:"heave_axis,omitempty"`
	YawAxis        *int `json:"yaw_axis,omitempty"`
	LightAxis      *int `json:"light_axis,omitempty"`
	LaserButton    *int `json:"laser_button,omitempty"`
	CameraTiltAxis *int `json:"camera_tilt_axis,omitempty"`

	// Wrench gains
	SurgeGain *float64 `json:"surge_gain,omitempty"` // N
	HeaveGain *float64 `json:"heave_gain,omitempty"` // N
	YawGain   *float64 `json:"yaw_gain,omitempty"`   // N·m

	// Geometry
	ThrusterOffsetM *float64 `json:"thruster_offset_m,omitempty"`

	// Auxiliaries
	LightRate *float64 `json:"light_rate,omitempty"`

	// Link
	ResendInterval *string `json:"resend_interval,omitempty"` // duration string like "200ms"
	SerialPort     *string `json:"serial_port,omitempty"`
	BaudRate       *int    `json:"baud_rate,omitempty"`
	UDPListen      *string `json:"udp_listen,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTeleopConfig returns a TeleopConfig with all fields unset.
func EmptyTeleopConfig() *TeleopConfig {
	return &TeleopConfig{}
}

// DefaultTeleopConfig returns a config with every field populated with its
// default, useful for writing out a starting file.
func DefaultTeleopConfig() *TeleopConfig {
	e := EmptyTeleopConfig()
	m := e.GetMapping()
	return &TeleopConfig{
		SurgeAxis:       ptrInt(m.SurgeAxis),
		HeaveAxis:       ptrInt(m.HeaveAxis),
		YawAxis:         ptrInt(m.YawAxis),
		LightAxis:       ptrInt(m.LightAxis),
		LaserButton:     ptrInt(m.LaserButton),
		CameraTiltAxis:  ptrInt(m.CameraTiltAxis),
		SurgeGain:       ptrFloat64(e.GetSurgeGain()),
		HeaveGain:       ptrFloat64(e.GetHeaveGain()),
		YawGain:         ptrFloat64(e.GetYawGain()),
		ThrusterOffsetM: ptrFloat64(e.GetThrusterOffsetM()),
		LightRate:       ptrFloat64(e.GetLightRate()),
		ResendInterval:  ptrString(e.GetResendInterval().String()),
		SerialPort:      ptrString(e.GetSerialPort()),
		BaudRate:        ptrInt(e.GetBaudRate()),
		UDPListen:       ptrString(e.GetUDPListen()),
	}
}

// LoadTeleopConfig loads a TeleopConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTeleopConfig(path string) (*TeleopConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTeleopConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repo root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TeleopConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTeleopConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TeleopConfig) Validate() error {
	if err := c.GetMapping().Validate(); err != nil {
		return err
	}

	if c.ThrusterOffsetM != nil && *c.ThrusterOffsetM == 0 {
		return fmt.Errorf("thruster_offset_m must be non-zero: the allocation matrix is singular at 0")
	}

	if c.ResendInterval != nil && *c.ResendInterval != "" {
		d, err := time.ParseDuration(*c.ResendInterval)
		if err != nil {
			return fmt.Errorf("invalid resend_interval '%s': %w", *c.ResendInterval, err)
		}
		if d < MinResendInterval {
			return fmt.Errorf("resend_interval %v is below the link minimum %v", d, MinResendInterval)
		}
	}

	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	if c.LightRate != nil && (*c.LightRate < -1 || *c.LightRate > 1) {
		return fmt.Errorf("light_rate must be between -1 and 1, got %f", *c.LightRate)
	}

	return nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// GetMapping returns the gamepad index mapping, defaulting each index.
func (c *TeleopConfig) GetMapping() input.Mapping {
	d := input.DefaultMapping()
	return input.Mapping{
		SurgeAxis:      intOr(c.SurgeAxis, d.SurgeAxis),
		HeaveAxis:      intOr(c.HeaveAxis, d.HeaveAxis),
		YawAxis:        intOr(c.YawAxis, d.YawAxis),
		LightAxis:      intOr(c.LightAxis, d.LightAxis),
		LaserButton:    intOr(c.LaserButton, d.LaserButton),
		CameraTiltAxis: intOr(c.CameraTiltAxis, d.CameraTiltAxis),
	}
}

// GetSurgeGain returns the surge_gain value or the default.
func (c *TeleopConfig) GetSurgeGain() float64 {
	if c.SurgeGain == nil {
		return 4
	}
	return *c.SurgeGain
}

// GetHeaveGain returns the heave_gain value or the default.
func (c *TeleopConfig) GetHeaveGain() float64 {
	if c.HeaveGain == nil {
		return 3
	}
	return *c.HeaveGain
}

// GetYawGain returns the yaw_gain value or the default.
func (c *TeleopConfig) GetYawGain() float64 {
	if c.YawGain == nil {
		return 0.3
	}
	return *c.YawGain
}

// GetThrusterOffsetM returns the lateral thruster offset in metres.
func (c *TeleopConfig) GetThrusterOffsetM() float64 {
	if c.ThrusterOffsetM == nil {
		return 0.045
	}
	return *c.ThrusterOffsetM
}

// GetLightRate returns the light_rate value or the default.
func (c *TeleopConfig) GetLightRate() float64 {
	if c.LightRate == nil {
		return -0.1
	}
	return *c.LightRate
}

// GetResendInterval parses and returns the ResendInterval as a time.Duration.
func (c *TeleopConfig) GetResendInterval() time.Duration {
	if c.ResendInterval == nil || *c.ResendInterval == "" {
		return 200 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.ResendInterval)
	if err != nil {
		return 200 * time.Millisecond // default on parse error
	}
	return d
}

// GetSerialPort returns the controller board serial device.
func (c *TeleopConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return "/dev/ttyO1"
	}
	return *c.SerialPort
}

// GetBaudRate returns the baud_rate value or the default.
func (c *TeleopConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 115200
	}
	return *c.BaudRate
}

// GetUDPListen returns the gamepad datagram listen address.
func (c *TeleopConfig) GetUDPListen() string {
	if c.UDPListen == nil || *c.UDPListen == "" {
		return ":7070"
	}
	return *c.UDPListen
}
