package analyzer

import (
	"fmt"
	"image"

	apperrors "go-trap-coverage/internal/errors"

	"gocv.io/x/gocv"
)

// Pipeline scores target images against one read-only hue interval. Whether
// the interval came from calibration or a literal makes no difference here.
type Pipeline struct {
	hue       HueInterval
	extractor RegionExtractor
	estimator CoverageEstimator
}

// NewPipeline validates the options and interval, then wires the extractor
// and estimator
func NewPipeline(opts Options, hue HueInterval) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid pipeline options", err)
	}
	if err := hue.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid hue interval", err)
	}
	return &Pipeline{
		hue:       hue,
		extractor: NewRegionExtractor(opts),
		estimator: NewCoverageEstimator(opts),
	}, nil
}

// Interval returns the hue interval the pipeline scores against
func (p *Pipeline) Interval() HueInterval {
	return p.hue
}

// Score extracts the trap region from img and measures its coverage. When
// withOverlay is set the report carries the highlighted crop.
func (p *Pipeline) Score(img gocv.Mat, withOverlay bool) (*CoverageReport, error) {
	region, err := p.extractor.Extract(img, p.hue)
	if err != nil {
		return nil, err
	}
	defer region.Close()

	nonYellow, err := p.estimator.NonYellowMask(region.Image, p.hue)
	defer nonYellow.Close()
	if err != nil {
		return nil, err
	}
	ratio := maskRatio(nonYellow)

	report := &CoverageReport{
		Ratio:       ratio,
		Percent:     FormatPercent(ratio),
		ShapeRatio:  ShapeRatio(region),
		Crop:        region.Crop,
		BoundingBox: region.BoundingBox,
		Polygon:     region.Polygon,
		Interval:    p.hue,
	}

	if withOverlay {
		overlay, err := p.renderOverlay(region.Image, nonYellow)
		if err != nil {
			return nil, err
		}
		report.Overlay = overlay
	}
	return report, nil
}

// ScoreImage converts a decoded Go image and scores it
func (p *Pipeline) ScoreImage(img image.Image, withOverlay bool) (*CoverageReport, error) {
	mat, err := ToMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	return p.Score(mat, withOverlay)
}

func (p *Pipeline) renderOverlay(cropped, nonYellow gocv.Mat) (image.Image, error) {
	highlighted, err := p.estimator.Highlight(cropped, nonYellow)
	defer highlighted.Close()
	if err != nil {
		return nil, err
	}
	overlay, err := highlighted.ToImage()
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to render overlay", err)
	}
	return overlay, nil
}

// ToMat converts a decoded image into an 8-bit BGR Mat owned by the caller
func ToMat(img image.Image) (gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return gocv.NewMat(), apperrors.NewValidationError("image has no pixels", nil)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), apperrors.NewProcessingError(fmt.Sprintf("failed to convert %T", img), err)
	}
	return mat, nil
}
