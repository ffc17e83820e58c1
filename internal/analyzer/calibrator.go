package analyzer

import (
	"fmt"
	"math"

	apperrors "go-trap-coverage/internal/errors"
	"go-trap-coverage/internal/logger"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// calibrator implements Calibrator by pooling seed-band hues over references
type calibrator struct {
	seed   HueInterval
	margin float64
}

// NewCalibrator creates a calibrator using the seed band and margin in opts
func NewCalibrator(opts Options) Calibrator {
	return &calibrator{
		seed:   opts.Seed,
		margin: float64(opts.CalibrationMargin),
	}
}

// Calibrate returns the pooled hue range widened by the margin
func (c *calibrator) Calibrate(references []gocv.Mat) (HueInterval, error) {
	interval, _, err := c.CalibrateWithStats(references)
	return interval, err
}

// CalibrateWithStats is Calibrate plus a description of the pooled hues
func (c *calibrator) CalibrateWithStats(references []gocv.Mat) (HueInterval, HueStats, error) {
	if err := c.seed.Validate(); err != nil {
		return HueInterval{}, HueStats{}, apperrors.NewValidationError("invalid seed band", err)
	}
	if len(references) == 0 {
		return HueInterval{}, HueStats{}, apperrors.NewCalibrationError("no reference images supplied", nil)
	}

	// hist[h] counts pooled pixels with hue h
	var hist [HueDomainMax + 1]float64
	for i, ref := range references {
		if ref.Empty() {
			return HueInterval{}, HueStats{}, apperrors.NewValidationError(fmt.Sprintf("reference image %d is empty", i), nil)
		}
		if err := c.accumulate(ref, &hist); err != nil {
			return HueInterval{}, HueStats{}, apperrors.NewProcessingError(fmt.Sprintf("reference image %d", i), err)
		}
	}

	total := floats.Sum(hist[:])
	if total == 0 {
		return HueInterval{}, HueStats{}, apperrors.NewCalibrationError(
			fmt.Sprintf("no pixels within seed band %s across %d reference images", c.seed, len(references)), nil)
	}

	lo, hi := -1, -1
	for h, n := range hist {
		if n == 0 {
			continue
		}
		if lo < 0 {
			lo = h
		}
		hi = h
	}

	bins := make([]float64, len(hist))
	for h := range bins {
		bins[h] = float64(h)
	}
	mean, std := stat.MeanStdDev(bins, hist[:])

	interval := HueInterval{
		HueMin: math.Max(0, float64(lo)-c.margin),
		HueMax: math.Min(HueDomainMax, float64(hi)+c.margin),
		SatMin: c.seed.SatMin,
		SatMax: c.seed.SatMax,
		ValMin: c.seed.ValMin,
		ValMax: c.seed.ValMax,
	}
	stats := HueStats{
		References: len(references),
		Pixels:     int64(total),
		ObservedLo: float64(lo),
		ObservedHi: float64(hi),
		Mean:       mean,
		StdDev:     std,
	}

	logger.WithFields(logrus.Fields{
		"hue_min":    interval.HueMin,
		"hue_max":    interval.HueMax,
		"references": stats.References,
		"pixels":     stats.Pixels,
		"hue_mean":   stats.Mean,
	}).Info("Calibrated hue range from references")

	return interval, stats, nil
}

// accumulate adds the hues of every seed-band pixel in ref to hist
func (c *calibrator) accumulate(ref gocv.Mat, hist *[HueDomainMax + 1]float64) error {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(ref, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv, c.seed.Lower(), c.seed.Upper(), &mask)

	channels := gocv.Split(hsv)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()

	hues, err := channels[0].DataPtrUint8()
	if err != nil {
		return fmt.Errorf("hue channel: %w", err)
	}
	selected, err := mask.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("seed mask: %w", err)
	}

	for i, m := range selected {
		if m != 0 {
			hist[hues[i]]++
		}
	}
	return nil
}
