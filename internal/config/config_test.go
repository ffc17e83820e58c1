package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("Expected default address 0.0.0.0:8080, got %s", cfg.ServerAddress())
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("Expected 30s request timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.HueMode != HueModeCalibrated {
		t.Errorf("Expected calibrated hue mode, got %s", cfg.HueMode)
	}
	if cfg.ReferenceSource != SourceLocal {
		t.Errorf("Expected local reference source, got %s", cfg.ReferenceSource)
	}
	if cfg.Pipeline != DefaultPipeline() {
		t.Errorf("Expected default pipeline, got %+v", cfg.Pipeline)
	}
}

func TestDefaultPipeline(t *testing.T) {
	p := DefaultPipeline()

	if p.SeedHueMin != 20 || p.SeedHueMax != 35 {
		t.Errorf("Expected seed hue 20-35, got %d-%d", p.SeedHueMin, p.SeedHueMax)
	}
	if p.SeedSatMin != 100 || p.SeedSatMax != 255 || p.SeedValMin != 100 || p.SeedValMax != 255 {
		t.Errorf("Unexpected seed saturation/value band: %+v", p)
	}
	if p.CalibrationMargin != 2 {
		t.Errorf("Expected margin 2, got %d", p.CalibrationMargin)
	}
	if p.ClosingSize != 20 || p.OpeningSize != 3 {
		t.Errorf("Expected closing 20 and opening 3, got %d and %d", p.ClosingSize, p.OpeningSize)
	}
	if p.ApproxEpsilonFraction != 0.01 || p.ShrinkFraction != 0.05 {
		t.Errorf("Expected fractions 0.01 and 0.05, got %g and %g", p.ApproxEpsilonFraction, p.ShrinkFraction)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HUE_MODE", "FIXED")
	t.Setenv("SEED_HUE_MIN", "18")
	t.Setenv("CLOSING_SIZE", "31")
	t.Setenv("SHRINK_FRACTION", "0.1")
	t.Setenv("WORKERS", "4")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if cfg.HueMode != HueModeFixed {
		t.Errorf("Expected fixed hue mode, got %s", cfg.HueMode)
	}
	if cfg.Pipeline.SeedHueMin != 18 {
		t.Errorf("Expected seed hue min 18, got %d", cfg.Pipeline.SeedHueMin)
	}
	if cfg.Pipeline.ClosingSize != 31 {
		t.Errorf("Expected closing size 31, got %d", cfg.Pipeline.ClosingSize)
	}
	if cfg.Pipeline.ShrinkFraction != 0.1 {
		t.Errorf("Expected shrink 0.1, got %g", cfg.Pipeline.ShrinkFraction)
	}
	if cfg.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Workers)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not numeric", "PORT", "http"},
		{"port out of range", "PORT", "70000"},
		{"hue mode", "HUE_MODE", "auto"},
		{"reference source", "REFERENCE_SOURCE", "ftp"},
		{"hue above domain", "SEED_HUE_MAX", "200"},
		{"hue min above max", "SEED_HUE_MIN", "40"},
		{"saturation above domain", "SEED_SAT_MAX", "300"},
		{"negative margin", "CALIBRATION_MARGIN", "-1"},
		{"zero closing", "CLOSING_SIZE", "0"},
		{"zero opening", "OPENING_SIZE", "0"},
		{"shrink too large", "SHRINK_FRACTION", "0.5"},
		{"epsilon negative", "APPROX_EPSILON_FRACTION", "-0.2"},
		{"negative workers", "WORKERS", "-3"},
		{"negative cache", "IMAGE_CACHE_BYTES", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("Missing dotenv file must be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("TRAP_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatalf("Failed to write dotenv: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("TRAP_TEST_DOTENV") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := os.Getenv("TRAP_TEST_DOTENV"); got != "loaded" {
		t.Errorf("Expected dotenv value to be loaded, got %q", got)
	}
}
