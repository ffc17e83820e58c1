package models

import (
	"image"
	"time"

	"go-trap-coverage/internal/analyzer"
)

// Rect is an axis-aligned pixel rectangle, max exclusive
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func NewRect(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Point is a polygon vertex
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// CoverageResponse is the result of scoring one image
type CoverageResponse struct {
	Image             string               `json:"image"`
	Timestamp         string               `json:"timestamp"`
	ProcessingTimeSec float64              `json:"processing_time_sec"`
	Coverage          float64              `json:"coverage"`
	CoveragePercent   string               `json:"coverage_percent"`
	ShapeCoverage     float64              `json:"shape_coverage"`
	Crop              Rect                 `json:"crop"`
	BoundingBox       Rect                 `json:"bounding_box"`
	Polygon           []Point              `json:"polygon"`
	Interval          analyzer.HueInterval `json:"interval"`
}

// NewCoverageResponse converts a pipeline report for the wire
func NewCoverageResponse(ref string, report *analyzer.CoverageReport, elapsed time.Duration) *CoverageResponse {
	polygon := make([]Point, len(report.Polygon))
	for i, p := range report.Polygon {
		polygon[i] = Point{X: p.X, Y: p.Y}
	}
	return &CoverageResponse{
		Image:             ref,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		ProcessingTimeSec: elapsed.Seconds(),
		Coverage:          report.Ratio,
		CoveragePercent:   report.Percent,
		ShapeCoverage:     report.ShapeRatio,
		Crop:              NewRect(report.Crop),
		BoundingBox:       NewRect(report.BoundingBox),
		Polygon:           polygon,
		Interval:          report.Interval,
	}
}

// CalibrationResponse describes the hue interval the server scores against
type CalibrationResponse struct {
	Strategy   string               `json:"strategy"`
	Interval   analyzer.HueInterval `json:"interval"`
	Stats      *analyzer.HueStats   `json:"stats,omitempty"`
	References int                  `json:"references"`
}
