package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TickRateHz != 60 || cfg.Log.Level != "info" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "splitrt.yaml")
	body := []byte("process_name: game.exe\ntick_rate_hz: 30\nlog:\n  level: debug\n  file: /tmp/splitrt.log\nwatch: true\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProcessName != "game.exe" || cfg.TickRateHz != 30 || cfg.Log.Level != "debug" || !cfg.Watch {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestApplyOverridesOnlyNonZeroFields(t *testing.T) {
	base := Config{ProcessName: "base.exe", TickRateHz: 60, Log: LogConfig{Level: "info"}}
	watch := true
	merged := base.Apply(Overrides{LogLevel: "debug", Watch: &watch})

	if merged.ProcessName != "base.exe" {
		t.Errorf("expected ProcessName to be unchanged, got %q", merged.ProcessName)
	}
	if merged.Log.Level != "debug" {
		t.Errorf("expected log level override to apply, got %q", merged.Log.Level)
	}
	if !merged.Watch {
		t.Errorf("expected watch override to apply")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := Config{TickRateHz: 60, Log: LogConfig{Level: "verbose"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for an unknown log level")
	}
}

func TestValidateRejectsNonPositiveTickRate(t *testing.T) {
	cfg := Config{TickRateHz: 0, Log: LogConfig{Level: "info"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for a non-positive tick rate")
	}
}
