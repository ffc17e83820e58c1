package analyzer

import "gocv.io/x/gocv"

// Calibrator derives a hue interval from clean reference photographs
type Calibrator interface {
	Calibrate(references []gocv.Mat) (HueInterval, error)
	CalibrateWithStats(references []gocv.Mat) (HueInterval, HueStats, error)
}

// RegionExtractor locates the trap and cuts out its interior
type RegionExtractor interface {
	Extract(img gocv.Mat, hue HueInterval) (*Region, error)
}

// CoverageEstimator measures the non-yellow share of a cropped trap
type CoverageEstimator interface {
	Estimate(cropped gocv.Mat, hue HueInterval) (float64, error)
	NonYellowMask(cropped gocv.Mat, hue HueInterval) (gocv.Mat, error)
	Highlight(cropped gocv.Mat, nonYellow gocv.Mat) (gocv.Mat, error)
}
