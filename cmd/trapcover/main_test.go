package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-trap-coverage/internal/config"
)

// OpenCV hue 28, saturation 200, value 200
var trapYellow = color.RGBA{R: 200, G: 190, B: 43, A: 255}

func writeTrap(t *testing.T, path string, size int, covered image.Rectangle) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := trapYellow
			if image.Pt(x, y).In(covered) {
				c = color.RGBA{R: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

func mkdir(t *testing.T, parts ...string) string {
	t.Helper()
	dir := filepath.Join(parts...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create %s: %v", dir, err)
	}
	return dir
}

func TestRun_Calibrated(t *testing.T) {
	root := t.TempDir()
	refs := mkdir(t, root, "reference")
	targets := mkdir(t, root, "targets")
	overlays := filepath.Join(root, "overlays")

	writeTrap(t, filepath.Join(refs, "clean.png"), 40, image.Rectangle{})
	writeTrap(t, filepath.Join(targets, "a.png"), 100, image.Rect(45, 45, 55, 55))
	writeTrap(t, filepath.Join(targets, "b.png"), 100, image.Rectangle{})

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-references", refs, "-overlay-dir", overlays, "-workers", "2", targets}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d (stderr: %s)", code, stderr.String())
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 result lines, got %q", stdout.String())
	}
	if !strings.HasPrefix(lines[0], filepath.Join(targets, "a.png")+": ") || !strings.HasSuffix(lines[0], "%") {
		t.Errorf("Unexpected line %q", lines[0])
	}
	if lines[0] == filepath.Join(targets, "a.png")+": 0.00%" {
		t.Errorf("Covered trap should not score zero: %q", lines[0])
	}
	if lines[1] != filepath.Join(targets, "b.png")+": 0.00%" {
		t.Errorf("Unexpected line %q", lines[1])
	}

	for _, name := range []string{"a-overlay.png", "b-overlay.png"} {
		if _, err := os.Stat(filepath.Join(overlays, name)); err != nil {
			t.Errorf("Expected overlay %s: %v", name, err)
		}
	}
}

func TestRun_FixedWithFailures(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "good.png")
	writeTrap(t, good, 80, image.Rect(30, 30, 40, 40))
	missing := filepath.Join(root, "missing.png")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-hue-min", "20", "-hue-max", "35", good, missing}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("Expected exit 1, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), good+": ") {
		t.Errorf("Expected result for good image, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), missing+": image_load: ") {
		t.Errorf("Expected image_load failure for missing image, got %q", stderr.String())
	}
	if lines := strings.Split(strings.TrimSpace(stderr.String()), "\n"); len(lines) != 1 {
		t.Errorf("Expected only the per-image failure line on stderr, got %q", stderr.String())
	}
}

func TestRun_VerboseLogsEvents(t *testing.T) {
	root := t.TempDir()
	missing := filepath.Join(root, "missing.png")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-v", "-hue-min", "20", "-hue-max", "35", missing}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("Expected exit 1, got %d", code)
	}
	if lines := strings.Split(strings.TrimSpace(stderr.String()), "\n"); len(lines) < 2 {
		t.Errorf("Expected pipeline log lines next to the failure line, got %q", stderr.String())
	}
}

func TestRun_CalibrationFailure(t *testing.T) {
	root := t.TempDir()
	refs := mkdir(t, root, "empty-reference")
	target := filepath.Join(root, "trap.png")
	writeTrap(t, target, 50, image.Rectangle{})

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-references", refs, target}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("Expected exit 1, got %d", code)
	}
	if stdout.Len() != 0 {
		t.Errorf("No target may be scored after calibration fails, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "calibration: calibration: ") {
		t.Errorf("Expected calibration failure, got %q", stderr.String())
	}
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), nil, &stdout, &stderr); code != 2 {
		t.Errorf("Expected exit 2 without images, got %d", code)
	}
	if code := run(context.Background(), []string{"-nope"}, &stdout, &stderr); code != 2 {
		t.Errorf("Expected exit 2 for unknown flag, got %d", code)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name       string
		references string
		hueMin     int
		hueMax     int
		wantErr    bool
		wantMode   string
	}{
		{"calibrated default", "", -1, -1, false, config.HueModeCalibrated},
		{"calibrated folder", "./refs", -1, -1, false, config.HueModeCalibrated},
		{"fixed", "", 22, 33, false, config.HueModeFixed},
		{"half fixed", "", 22, -1, true, ""},
		{"both", "./refs", 22, 33, true, ""},
		{"inverted", "", 33, 22, true, ""},
		{"out of domain", "", 20, 200, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{ReferenceDir: "./default", Pipeline: config.DefaultPipeline()}
			err := applyFlags(cfg, tt.references, tt.hueMin, tt.hueMax, -1)
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if cfg.HueMode != tt.wantMode {
				t.Errorf("Expected mode %s, got %s", tt.wantMode, cfg.HueMode)
			}
			if tt.references != "" && cfg.ReferenceDir != tt.references {
				t.Errorf("Expected reference dir %s, got %s", tt.references, cfg.ReferenceDir)
			}
		})
	}
}

func TestOverlayName(t *testing.T) {
	tests := map[string]string{
		"photos/trap-01.jpg": "trap-01-overlay.png",
		"trap.tar.png":       "trap.tar-overlay.png",
		"noext":              "noext-overlay.png",
	}
	for in, want := range tests {
		if got := overlayName(in); got != want {
			t.Errorf("overlayName(%q) = %q, want %q", in, got, want)
		}
	}
}
