package strategy

import (
	"context"
	"fmt"
	"sync"

	"go-trap-coverage/internal/analyzer"
	apperrors "go-trap-coverage/internal/errors"
	"go-trap-coverage/internal/logger"
	"go-trap-coverage/internal/storage"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// HueStrategy decides which hue interval a run scores against
type HueStrategy interface {
	Interval(ctx context.Context) (analyzer.HueInterval, error)
	GetStrategyName() string
}

// Calibration is the outcome of one successful calibration
type Calibration struct {
	Interval   analyzer.HueInterval
	Stats      analyzer.HueStats
	References []string
}

// CalibratedStrategy derives the interval from the clean reference set and
// keeps it for the rest of the run. Failures are returned every time and
// never cached.
type CalibratedStrategy struct {
	source      storage.ImageSource
	prefix      string
	calibrator  analyzer.Calibrator
	concurrency int

	mu     sync.Mutex
	result *Calibration
}

// NewCalibratedStrategy loads references listed under prefix in source.
// concurrency bounds parallel loads; values below 1 mean 4.
func NewCalibratedStrategy(source storage.ImageSource, prefix string, calibrator analyzer.Calibrator, concurrency int) *CalibratedStrategy {
	if concurrency < 1 {
		concurrency = 4
	}
	return &CalibratedStrategy{
		source:      source,
		prefix:      prefix,
		calibrator:  calibrator,
		concurrency: concurrency,
	}
}

func (s *CalibratedStrategy) Interval(ctx context.Context) (analyzer.HueInterval, error) {
	c, err := s.Calibration(ctx)
	if err != nil {
		return analyzer.HueInterval{}, err
	}
	return c.Interval, nil
}

// Calibration runs calibration on first use and returns the cached result
// afterwards.
func (s *CalibratedStrategy) Calibration(ctx context.Context) (*Calibration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result != nil {
		return s.result, nil
	}

	refs, err := s.source.ListImages(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, apperrors.NewCalibrationError(fmt.Sprintf("no reference images found under %q", s.prefix), nil)
	}

	mats, err := s.loadAll(ctx, refs)
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()
	if err != nil {
		return nil, err
	}

	hue, stats, err := s.calibrator.CalibrateWithStats(mats)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"prefix":     s.prefix,
		"references": len(refs),
		"interval":   hue.String(),
	}).Debug("Reference set loaded")

	s.result = &Calibration{Interval: hue, Stats: stats, References: refs}
	return s.result, nil
}

// loadAll decodes every reference concurrently. The returned slice holds
// the Mats converted so far even on error so the caller can release them.
func (s *CalibratedStrategy) loadAll(ctx context.Context, refs []string) ([]gocv.Mat, error) {
	mats := make([]gocv.Mat, len(refs))
	loaded := make([]bool, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			img, err := s.source.LoadImage(gctx, ref)
			if err != nil {
				return err
			}
			mat, err := analyzer.ToMat(img)
			if err != nil {
				return apperrors.NewImageLoadError(fmt.Sprintf("reference %s has no usable pixels", ref), err)
			}
			mats[i] = mat
			loaded[i] = true
			return nil
		})
	}
	err := g.Wait()

	out := make([]gocv.Mat, 0, len(refs))
	for i := range mats {
		if loaded[i] {
			out = append(out, mats[i])
		}
	}
	return out, err
}

func (s *CalibratedStrategy) GetStrategyName() string {
	return "calibrated"
}

// FixedStrategy scores against a literal interval
type FixedStrategy struct {
	hue analyzer.HueInterval
}

// NewFixedStrategy validates hue up front
func NewFixedStrategy(hue analyzer.HueInterval) (*FixedStrategy, error) {
	if err := hue.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid fixed hue interval", err)
	}
	return &FixedStrategy{hue: hue}, nil
}

func (s *FixedStrategy) Interval(ctx context.Context) (analyzer.HueInterval, error) {
	return s.hue, nil
}

func (s *FixedStrategy) GetStrategyName() string {
	return "fixed"
}
