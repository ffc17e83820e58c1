package analyzer

import (
	"fmt"
	"image"
	"image/color"

	apperrors "go-trap-coverage/internal/errors"

	"gocv.io/x/gocv"
)

// regionExtractor implements RegionExtractor. The trap is assumed to be the
// largest yellow connected structure in the frame.
type regionExtractor struct {
	closingSize     int
	epsilonFraction float64
	shrinkFraction  float64
}

// NewRegionExtractor creates an extractor using the geometry settings in opts
func NewRegionExtractor(opts Options) RegionExtractor {
	return &regionExtractor{
		closingSize:     opts.ClosingSize,
		epsilonFraction: opts.ApproxEpsilonFraction,
		shrinkFraction:  opts.ShrinkFraction,
	}
}

// Extract finds the trap boundary and returns its interior, masked by the
// polygon and cropped to the shrunken bounding box.
func (e *regionExtractor) Extract(img gocv.Mat, hue HueInterval) (*Region, error) {
	if img.Empty() {
		return nil, apperrors.NewValidationError("target image is empty", nil)
	}
	if err := hue.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid hue interval", err)
	}

	raw := thresholdHSV(img, hue)
	defer raw.Close()

	// Closing bridges insects and debris so the outer boundary stays whole
	closed := morph(raw, gocv.MorphClose, e.closingSize)
	defer closed.Close()

	contours := gocv.FindContours(closed, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return nil, apperrors.NewNoRegionError(fmt.Sprintf("no region matching %s", hue), nil)
	}

	best := 0
	bestArea := -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			bestArea = area
			best = i
		}
	}
	contour := contours.At(best)

	epsilon := e.epsilonFraction * gocv.ArcLength(contour, true)
	approx := gocv.ApproxPolyDP(contour, epsilon, true)
	defer approx.Close()
	polygon := approx.ToPoints()

	// The filled polygon, not the raw threshold, defines the trap extent
	shape := zeroMask(img.Rows(), img.Cols())
	defer shape.Close()
	outline := gocv.NewPointsVectorFromPoints([][]image.Point{polygon})
	defer outline.Close()
	gocv.DrawContours(&shape, outline, -1, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	bbox := gocv.BoundingRect(approx)
	crop := shrinkRect(bbox, e.shrinkFraction).Intersect(matBounds(img))
	if crop.Empty() {
		return nil, apperrors.NewNoRegionError(fmt.Sprintf("degenerate region %v after shrinking %v", crop, bbox), nil)
	}

	masked := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), img.Rows(), img.Cols(), img.Type())
	defer masked.Close()
	gocv.BitwiseAndWithMask(img, img, &masked, shape)

	return &Region{
		Image:       cropClone(masked, crop),
		Mask:        cropClone(shape, crop),
		Crop:        crop,
		BoundingBox: bbox,
		Polygon:     polygon,
	}, nil
}

// shrinkRect moves every side of r inward by fraction of its extent,
// truncating the margins to whole pixels. Margins that meet or cross yield
// the empty rectangle.
func shrinkRect(r image.Rectangle, fraction float64) image.Rectangle {
	mw := int(float64(r.Dx()) * fraction)
	mh := int(float64(r.Dy()) * fraction)
	if 2*mw >= r.Dx() || 2*mh >= r.Dy() {
		return image.Rectangle{}
	}
	return image.Rectangle{
		Min: image.Pt(r.Min.X+mw, r.Min.Y+mh),
		Max: image.Pt(r.Max.X-mw, r.Max.Y-mh),
	}
}

// cropClone copies rect out of m so the result owns its memory
func cropClone(m gocv.Mat, rect image.Rectangle) gocv.Mat {
	view := m.Region(rect)
	defer view.Close()
	return view.Clone()
}
