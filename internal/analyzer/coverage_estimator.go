package analyzer

import (
	apperrors "go-trap-coverage/internal/errors"

	"gocv.io/x/gocv"
)

// highlightBGR is the pure green painted over non-yellow cells
func highlightBGR() gocv.Scalar {
	return gocv.NewScalar(0, 255, 0, 0)
}

// coverageEstimator implements CoverageEstimator
type coverageEstimator struct {
	openingSize int
}

// NewCoverageEstimator creates an estimator using the opening size in opts
func NewCoverageEstimator(opts Options) CoverageEstimator {
	return &coverageEstimator{openingSize: opts.OpeningSize}
}

// NonYellowMask re-thresholds the crop, inverts it and removes speckle with
// an opening. The caller owns the returned mask.
func (c *coverageEstimator) NonYellowMask(cropped gocv.Mat, hue HueInterval) (gocv.Mat, error) {
	if cropped.Empty() {
		return gocv.NewMat(), apperrors.NewValidationError("cropped image is empty", nil)
	}
	if err := hue.Validate(); err != nil {
		return gocv.NewMat(), apperrors.NewValidationError("invalid hue interval", err)
	}

	yellow := thresholdHSV(cropped, hue)
	defer yellow.Close()

	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(yellow, &inverted)

	return morph(inverted, gocv.MorphOpen, c.openingSize), nil
}

// Estimate returns the share of the whole rectangular crop that is not
// trap-yellow, cells outside the polygon included.
func (c *coverageEstimator) Estimate(cropped gocv.Mat, hue HueInterval) (float64, error) {
	mask, err := c.NonYellowMask(cropped, hue)
	defer mask.Close()
	if err != nil {
		return 0, err
	}
	return maskRatio(mask), nil
}

// Highlight returns a copy of cropped with the cells of nonYellow painted in
// pure green.
func (c *coverageEstimator) Highlight(cropped gocv.Mat, nonYellow gocv.Mat) (gocv.Mat, error) {
	if cropped.Empty() {
		return gocv.NewMat(), apperrors.NewValidationError("cropped image is empty", nil)
	}
	if cropped.Rows() != nonYellow.Rows() || cropped.Cols() != nonYellow.Cols() {
		return gocv.NewMat(), apperrors.NewValidationError("overlay mask does not match image size", nil)
	}

	fill := gocv.NewMatWithSizeFromScalar(highlightBGR(), cropped.Rows(), cropped.Cols(), gocv.MatTypeCV8UC3)
	defer fill.Close()

	out := cropped.Clone()
	fill.CopyToWithMask(&out, nonYellow)
	return out, nil
}

// ShapeRatio is the share of the crop lying outside the trap polygon. It is
// an earlier, polygon-based estimate kept for diagnostics; Estimate is the
// canonical coverage figure.
func ShapeRatio(region *Region) float64 {
	if region == nil || region.Mask.Empty() {
		return 0
	}
	return 1 - maskRatio(region.Mask)
}

// maskRatio is the share of non-zero cells in a mask
func maskRatio(mask gocv.Mat) float64 {
	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total)
}
