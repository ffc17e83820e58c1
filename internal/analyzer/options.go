package analyzer

import (
	"fmt"

	"go-trap-coverage/internal/config"
)

// Options holds the tunable constants of the pipeline
type Options struct {
	// Seed band used to select provisional yellow during calibration.
	// Its saturation/value bounds carry over to the calibrated interval.
	Seed HueInterval

	// Hue units added on each side of the observed reference hues
	CalibrationMargin int

	// Side of the square closing kernel that bridges debris inside the trap
	ClosingSize int

	// Polygon approximation tolerance as a fraction of the contour perimeter
	ApproxEpsilonFraction float64

	// Inward shrink of the bounding box on each side, as a fraction of its size
	ShrinkFraction float64

	// Side of the square opening kernel that removes single pixel noise
	OpeningSize int
}

// DefaultSeedBand is the generous trap-yellow band: H 20-35, S and V 100-255
func DefaultSeedBand() HueInterval {
	return HueInterval{
		HueMin: 20, HueMax: 35,
		SatMin: 100, SatMax: 255,
		ValMin: 100, ValMax: 255,
	}
}

// DefaultOptions returns the empirically chosen defaults
func DefaultOptions() Options {
	return Options{
		Seed:                  DefaultSeedBand(),
		CalibrationMargin:     2,
		ClosingSize:           20,
		ApproxEpsilonFraction: 0.01,
		ShrinkFraction:        0.05,
		OpeningSize:           3,
	}
}

// OptionsFromConfig maps the configuration values onto pipeline options
func OptionsFromConfig(p config.Pipeline) Options {
	return Options{
		Seed: HueInterval{
			HueMin: float64(p.SeedHueMin), HueMax: float64(p.SeedHueMax),
			SatMin: float64(p.SeedSatMin), SatMax: float64(p.SeedSatMax),
			ValMin: float64(p.SeedValMin), ValMax: float64(p.SeedValMax),
		},
		CalibrationMargin:     p.CalibrationMargin,
		ClosingSize:           p.ClosingSize,
		ApproxEpsilonFraction: p.ApproxEpsilonFraction,
		ShrinkFraction:        p.ShrinkFraction,
		OpeningSize:           p.OpeningSize,
	}
}

// Validate checks every setting against the ranges the pipeline supports
func (opts Options) Validate() error {
	if err := opts.Seed.Validate(); err != nil {
		return fmt.Errorf("seed band: %w", err)
	}
	if opts.CalibrationMargin < 0 {
		return fmt.Errorf("calibration margin must be >= 0 (got %d)", opts.CalibrationMargin)
	}
	if opts.ClosingSize < 1 || opts.OpeningSize < 1 {
		return fmt.Errorf("morphology sizes must be >= 1 (got closing=%d, opening=%d)", opts.ClosingSize, opts.OpeningSize)
	}
	if opts.ApproxEpsilonFraction < 0 || opts.ApproxEpsilonFraction >= 1 {
		return fmt.Errorf("approximation epsilon must be in [0, 1) (got %g)", opts.ApproxEpsilonFraction)
	}
	if opts.ShrinkFraction < 0 || opts.ShrinkFraction >= 0.5 {
		return fmt.Errorf("shrink fraction must be in [0, 0.5) (got %g)", opts.ShrinkFraction)
	}
	return nil
}

// WithSeed replaces the seed band
func (opts Options) WithSeed(seed HueInterval) Options {
	opts.Seed = seed
	return opts
}

// WithMorphology sets the closing and opening kernel sizes
func (opts Options) WithMorphology(closing, opening int) Options {
	opts.ClosingSize = closing
	opts.OpeningSize = opening
	return opts
}

// WithGeometry sets the polygon tolerance and the bounding box shrink
func (opts Options) WithGeometry(epsilonFraction, shrinkFraction float64) Options {
	opts.ApproxEpsilonFraction = epsilonFraction
	opts.ShrinkFraction = shrinkFraction
	return opts
}

// WithMargin sets the calibration margin in hue units
func (opts Options) WithMargin(margin int) Options {
	opts.CalibrationMargin = margin
	return opts
}
