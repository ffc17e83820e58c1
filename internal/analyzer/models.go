package analyzer

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// HSV channel domains as used by OpenCV for 8-bit images
const (
	HueDomainMax = 179
	SatDomainMax = 255
	ValDomainMax = 255
)

// HueInterval is a closed hue range plus the saturation/value band that
// accompanies it. The range never wraps around the hue domain.
type HueInterval struct {
	HueMin float64 `json:"hue_min"`
	HueMax float64 `json:"hue_max"`
	SatMin float64 `json:"sat_min"`
	SatMax float64 `json:"sat_max"`
	ValMin float64 `json:"val_min"`
	ValMax float64 `json:"val_max"`
}

// Validate enforces 0 <= min <= max <= domain for every channel
func (h HueInterval) Validate() error {
	if h.HueMin < 0 || h.HueMax > HueDomainMax || h.HueMin > h.HueMax {
		return fmt.Errorf("hue range %.1f-%.1f outside 0-%d", h.HueMin, h.HueMax, HueDomainMax)
	}
	if h.SatMin < 0 || h.SatMax > SatDomainMax || h.SatMin > h.SatMax {
		return fmt.Errorf("saturation range %.1f-%.1f outside 0-%d", h.SatMin, h.SatMax, SatDomainMax)
	}
	if h.ValMin < 0 || h.ValMax > ValDomainMax || h.ValMin > h.ValMax {
		return fmt.Errorf("value range %.1f-%.1f outside 0-%d", h.ValMin, h.ValMax, ValDomainMax)
	}
	return nil
}

// Lower is the inclusive lower HSV bound
func (h HueInterval) Lower() gocv.Scalar {
	return gocv.NewScalar(h.HueMin, h.SatMin, h.ValMin, 0)
}

// Upper is the inclusive upper HSV bound
func (h HueInterval) Upper() gocv.Scalar {
	return gocv.NewScalar(h.HueMax, h.SatMax, h.ValMax, 0)
}

func (h HueInterval) String() string {
	return fmt.Sprintf("H[%.0f-%.0f] S[%.0f-%.0f] V[%.0f-%.0f]",
		h.HueMin, h.HueMax, h.SatMin, h.SatMax, h.ValMin, h.ValMax)
}

// HueStats describes the hue population pooled during calibration
type HueStats struct {
	References int     `json:"references"`
	Pixels     int64   `json:"pixels"`
	ObservedLo float64 `json:"observed_min"`
	ObservedHi float64 `json:"observed_max"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
}

// Region is the trap interior cut out of a target image. Image and Mask are
// congruent and owned by the Region; call Close to release them.
type Region struct {
	Image       gocv.Mat
	Mask        gocv.Mat
	Crop        image.Rectangle // shrunken rectangle in source coordinates
	BoundingBox image.Rectangle // polygon bounding box before shrinking
	Polygon     []image.Point
}

// Close releases the native memory held by the region
func (r *Region) Close() {
	if r == nil {
		return
	}
	r.Image.Close()
	r.Mask.Close()
}

// CoverageReport is the outcome of scoring a single target image
type CoverageReport struct {
	Ratio       float64         `json:"ratio"`
	Percent     string          `json:"percent"`
	ShapeRatio  float64         `json:"shape_ratio"`
	Crop        image.Rectangle `json:"crop"`
	BoundingBox image.Rectangle `json:"bounding_box"`
	Polygon     []image.Point   `json:"polygon"`
	Interval    HueInterval     `json:"interval"`
	Overlay     image.Image     `json:"-"`
}

// FormatPercent renders a ratio as a two-decimal percentage, e.g. "37.42%"
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}
