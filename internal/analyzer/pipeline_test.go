package analyzer

import (
	"image"
	"image/color"
	"math"
	"testing"

	apperrors "go-trap-coverage/internal/errors"
)

func TestPipeline_Score(t *testing.T) {
	img := yellowWithRedSquare(t)
	hue := calibratedInterval(t, img)

	p, err := NewPipeline(DefaultOptions(), hue)
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	report, err := p.Score(img, true)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if math.Abs(report.Ratio-0.01) > 0.006 {
		t.Errorf("Expected ratio near 0.01, got %f", report.Ratio)
	}
	if report.Percent != FormatPercent(report.Ratio) {
		t.Errorf("Percent %s does not match ratio %f", report.Percent, report.Ratio)
	}
	if report.Interval != hue {
		t.Errorf("Report interval %s, want %s", report.Interval, hue)
	}
	if report.ShapeRatio != 0 {
		t.Errorf("A full-frame rectangle leaves nothing outside the polygon, got %f", report.ShapeRatio)
	}
	if report.Overlay == nil {
		t.Fatal("Expected an overlay")
	}
	if report.Overlay.Bounds().Dx() != report.Crop.Dx() || report.Overlay.Bounds().Dy() != report.Crop.Dy() {
		t.Errorf("Overlay %v does not match crop %v", report.Overlay.Bounds(), report.Crop)
	}

	// Red square center lands at (50-5, 50-5) in crop coordinates
	cx := 50 - report.Crop.Min.X
	cy := 50 - report.Crop.Min.Y
	r, g, b, _ := report.Overlay.At(cx, cy).RGBA()
	if r>>8 != 0 || g>>8 != 255 || b>>8 != 0 {
		t.Errorf("Expected green overlay at covered pixel, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestPipeline_NoOverlay(t *testing.T) {
	img := trapOnBackground(t, 120, 120, image.Rect(10, 10, 110, 110))
	p, err := NewPipeline(DefaultOptions(), DefaultSeedBand())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	report, err := p.Score(img, false)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if report.Overlay != nil {
		t.Error("Overlay must only be rendered on request")
	}
	if report.Ratio != 0 {
		t.Errorf("Clean trap should have no coverage, got %f", report.Ratio)
	}
}

func TestPipeline_FixedAndCalibratedAgree(t *testing.T) {
	img := yellowWithRedSquare(t)

	fixed, err := NewPipeline(DefaultOptions(), DefaultSeedBand())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}
	calibrated, err := NewPipeline(DefaultOptions(), calibratedInterval(t, img))
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	a, err := fixed.Score(img, false)
	if err != nil {
		t.Fatalf("Fixed score failed: %v", err)
	}
	b, err := calibrated.Score(img, false)
	if err != nil {
		t.Fatalf("Calibrated score failed: %v", err)
	}
	if a.Ratio != b.Ratio {
		t.Errorf("Uniform yellow should score the same under both intervals: %f vs %f", a.Ratio, b.Ratio)
	}
}

func TestPipeline_Errors(t *testing.T) {
	if _, err := NewPipeline(DefaultOptions(), HueInterval{HueMin: 5, HueMax: 200}); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}

	if _, err := NewPipeline(DefaultOptions().WithGeometry(0.01, 0.6), DefaultSeedBand()); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for oversized shrink, got %v", err)
	}
	if _, err := NewPipeline(DefaultOptions().WithMorphology(0, 3), DefaultSeedBand()); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for zero closing kernel, got %v", err)
	}

	p, err := NewPipeline(DefaultOptions(), DefaultSeedBand())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}
	if _, err := p.Score(solidMat(t, 50, 50, blue), false); !apperrors.IsType(err, apperrors.ErrorTypeNoRegion) {
		t.Errorf("Expected no_region error, got %v", err)
	}
	if _, err := p.ScoreImage(image.NewRGBA(image.Rect(0, 0, 0, 0)), false); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for empty image, got %v", err)
	}
}

func TestPipeline_ScoreImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 80, 80))
	yellow := trapYellow()
	for y := 0; y < 80; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, yellow)
		}
	}
	for y := 30; y < 50; y++ {
		for x := 30; x < 50; x++ {
			img.Set(x, y, color.RGBA{R: 20, G: 20, B: 20, A: 255})
		}
	}

	p, err := NewPipeline(DefaultOptions(), DefaultSeedBand())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}
	report, err := p.ScoreImage(img, false)
	if err != nil {
		t.Fatalf("ScoreImage failed: %v", err)
	}

	want := 400.0 / float64(report.Crop.Dx()*report.Crop.Dy())
	if math.Abs(report.Ratio-want) > 0.01 {
		t.Errorf("Expected ratio near %f, got %f", want, report.Ratio)
	}
}
