package analyzer

import (
	"image"
	"image/color"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"
)

var (
	red        = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	blue       = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	background = color.RGBA{R: 90, G: 90, B: 90, A: 255}
)

// hsvColor builds a color from OpenCV HSV components (H 0-179, S/V 0-255)
func hsvColor(h, s, v float64) color.RGBA {
	r, g, b := colorful.Hsv(h*2, s/255, v/255).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// trapYellow is hue 28, saturation 200, value 200
func trapYellow() color.RGBA {
	return hsvColor(28, 200, 200)
}

// solidMat creates a BGR image filled with c
func solidMat(t *testing.T, width, height int, c color.RGBA) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0),
		height, width, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return m
}

// paint fills rect of m with c
func paint(m *gocv.Mat, rect image.Rectangle, c color.RGBA) {
	gocv.Rectangle(m, rect, c, -1)
}

// yellowWithRedSquare is a 100x100 trap with a 10x10 red square in the middle
func yellowWithRedSquare(t *testing.T) gocv.Mat {
	t.Helper()
	m := solidMat(t, 100, 100, trapYellow())
	paint(&m, image.Rect(45, 45, 55, 55), red)
	return m
}

// trapOnBackground places a yellow rectangle at trap inside a gray frame
func trapOnBackground(t *testing.T, width, height int, trap image.Rectangle) gocv.Mat {
	t.Helper()
	m := solidMat(t, width, height, background)
	paint(&m, trap, trapYellow())
	return m
}

func calibratedInterval(t *testing.T, refs ...gocv.Mat) HueInterval {
	t.Helper()
	hue, err := NewCalibrator(DefaultOptions()).Calibrate(refs)
	if err != nil {
		t.Fatalf("Calibration failed: %v", err)
	}
	return hue
}

func pixelAt(m gocv.Mat, x, y int) color.RGBA {
	v := m.GetVecbAt(y, x)
	return color.RGBA{R: v[2], G: v[1], B: v[0], A: 255}
}
