package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/rov.teleop/internal/input"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyTeleopConfig_Defaults(t *testing.T) {
	cfg := EmptyTeleopConfig()

	if diff := cmp.Diff(input.DefaultMapping(), cfg.GetMapping()); diff != "" {
		t.Errorf("GetMapping mismatch (-want +got):\n%s", diff)
	}
	if cfg.GetSurgeGain() != 4 {
		t.Errorf("GetSurgeGain() = %v, want 4", cfg.GetSurgeGain())
	}
	if cfg.GetHeaveGain() != 3 {
		t.Errorf("GetHeaveGain() = %v, want 3", cfg.GetHeaveGain())
	}
	if cfg.GetYawGain() != 0.3 {
		t.Errorf("GetYawGain() = %v, want 0.3", cfg.GetYawGain())
	}
	if cfg.GetThrusterOffsetM() != 0.045 {
		t.Errorf("GetThrusterOffsetM() = %v, want 0.045", cfg.GetThrusterOffsetM())
	}
	if cfg.GetLightRate() != -0.1 {
		t.Errorf("GetLightRate() = %v, want -0.1", cfg.GetLightRate())
	}
	if cfg.GetResendInterval() != 200*time.Millisecond {
		t.Errorf("GetResendInterval() = %v, want 200ms", cfg.GetResendInterval())
	}
	if cfg.GetSerialPort() != "/dev/ttyO1" {
		t.Errorf("GetSerialPort() = %q", cfg.GetSerialPort())
	}
	if cfg.GetBaudRate() != 115200 {
		t.Errorf("GetBaudRate() = %d, want 115200", cfg.GetBaudRate())
	}
	if cfg.GetUDPListen() != ":7070" {
		t.Errorf("GetUDPListen() = %q", cfg.GetUDPListen())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate: %v", err)
	}
}

func TestDefaultTeleopConfig_MatchesGetters(t *testing.T) {
	full := DefaultTeleopConfig()
	empty := EmptyTeleopConfig()

	if diff := cmp.Diff(empty.GetMapping(), full.GetMapping()); diff != "" {
		t.Errorf("mapping mismatch (-empty +full):\n%s", diff)
	}
	if full.GetResendInterval() != empty.GetResendInterval() {
		t.Errorf("resend interval %v != %v", full.GetResendInterval(), empty.GetResendInterval())
	}
	if *full.ThrusterOffsetM != 0.045 {
		t.Errorf("ThrusterOffsetM = %v", *full.ThrusterOffsetM)
	}
}

func TestDefaultsFileMatchesCode(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultTeleopConfig(), fromFile); diff != "" {
		t.Errorf("%s drifted from DefaultTeleopConfig (-code +file):\n%s", DefaultConfigPath, diff)
	}
}

func TestLoadTeleopConfig_Partial(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
  "surge_gain": 6,
  "yaw_axis": 3,
  "resend_interval": "250ms"
}`)

	cfg, err := LoadTeleopConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetSurgeGain() != 6 {
		t.Errorf("GetSurgeGain() = %v, want 6", cfg.GetSurgeGain())
	}
	if cfg.GetMapping().YawAxis != 3 {
		t.Errorf("YawAxis = %d, want 3", cfg.GetMapping().YawAxis)
	}
	if cfg.GetResendInterval() != 250*time.Millisecond {
		t.Errorf("GetResendInterval() = %v", cfg.GetResendInterval())
	}
	// untouched fields keep defaults
	if cfg.GetHeaveGain() != 3 {
		t.Errorf("GetHeaveGain() = %v, want default 3", cfg.GetHeaveGain())
	}
}

func TestLoadTeleopConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "cfg.json", `{"surge_gain":`, "failed to parse config JSON"},
		{"zero offset", "cfg.json", `{"thruster_offset_m": 0}`, "thruster_offset_m must be non-zero"},
		{"short interval", "cfg.json", `{"resend_interval": "10ms"}`, "below the link minimum"},
		{"bad interval", "cfg.json", `{"resend_interval": "soon"}`, "invalid resend_interval"},
		{"duplicate axes", "cfg.json", `{"surge_axis": 4}`, "both use axis 4"},
		{"negative button", "cfg.json", `{"laser_button": -1}`, "laser_button must be non-negative"},
		{"bad baud", "cfg.json", `{"baud_rate": 0}`, "baud_rate must be positive"},
		{"light rate", "cfg.json", `{"light_rate": 2}`, "light_rate must be between"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadTeleopConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadTeleopConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTeleopConfig_MissingFile(t *testing.T) {
	_, err := LoadTeleopConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil || !strings.Contains(err.Error(), "failed to stat") {
		t.Errorf("error = %v, want stat failure", err)
	}
}

func TestGetResendInterval_ParseErrorFallsBack(t *testing.T) {
	bad := "soon"
	cfg := &TeleopConfig{ResendInterval: &bad}
	if cfg.GetResendInterval() != 200*time.Millisecond {
		t.Errorf("GetResendInterval() = %v, want 200ms fallback", cfg.GetResendInterval())
	}
}
