package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/httpsworldview/openmeters/internal/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if cfg.CaptureMode != "applications" {
		t.Errorf("expected capture mode 'applications', got %q", cfg.CaptureMode)
	}
	if cfg.InputDeviceID != -1 {
		t.Error("expected input device to default to -1")
	}
	if cfg.DeviceTargetNodeID != nil {
		t.Error("expected no device target by default")
	}
	if len(cfg.EnabledModules) != 6 {
		t.Errorf("expected 6 enabled modules, got %d", len(cfg.EnabledModules))
	}
	if cfg.Spectrum.Window != "hann" {
		t.Errorf("expected spectrum window 'hann', got %q", cfg.Spectrum.Window)
	}
	if cfg.Oscilloscope.TriggerEdge != "rising" {
		t.Errorf("expected trigger edge 'rising', got %q", cfg.Oscilloscope.TriggerEdge)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	nodeID := uint32(7)
	cfg := config.Config{
		CaptureMode:        "device",
		DeviceTargetNodeID: &nodeID,
		DisabledNodes:      []uint32{3, 5},
		InputDeviceID:      2,
		EnabledModules:     []string{"loudness", "spectrum"},
		Spectrum:           config.SpectrumConfig{FFTSize: 2048, Window: "hann"},
	}

	if err := config.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := config.Load()
	if loaded.CaptureMode != cfg.CaptureMode {
		t.Errorf("capture mode: want %q got %q", cfg.CaptureMode, loaded.CaptureMode)
	}
	if loaded.DeviceTargetNodeID == nil || *loaded.DeviceTargetNodeID != nodeID {
		t.Errorf("device target: want %d got %v", nodeID, loaded.DeviceTargetNodeID)
	}
	if len(loaded.DisabledNodes) != 2 || loaded.DisabledNodes[0] != 3 {
		t.Errorf("disabled nodes: unexpected value %v", loaded.DisabledNodes)
	}
	if loaded.InputDeviceID != cfg.InputDeviceID {
		t.Errorf("input device: want %d got %d", cfg.InputDeviceID, loaded.InputDeviceID)
	}
	if len(loaded.EnabledModules) != 2 {
		t.Errorf("enabled modules: unexpected value %v", loaded.EnabledModules)
	}
	if loaded.Spectrum.FFTSize != 2048 {
		t.Errorf("spectrum fft size: want 2048 got %d", loaded.Spectrum.FFTSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg := config.Load()
	if cfg.CaptureMode == "" {
		t.Error("expected non-empty capture mode from defaults")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "openmeters", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not json {{{"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Load()
	if cfg.CaptureMode != "applications" {
		t.Errorf("expected default capture mode on corrupt file, got %q", cfg.CaptureMode)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if err := config.Save(config.Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(dir, "openmeters", "config.json")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}
