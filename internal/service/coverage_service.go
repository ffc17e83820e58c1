package service

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go-trap-coverage/internal/analyzer"
	apperrors "go-trap-coverage/internal/errors"
	"go-trap-coverage/internal/observer"
	"go-trap-coverage/internal/storage"
	"go-trap-coverage/internal/strategy"
)

// uploadRef labels images that arrive without a reference
const uploadRef = "upload"

// CoverageService scores target images against the run's hue interval
type CoverageService interface {
	// Calibrate resolves the hue interval, calibrating on first use
	Calibrate(ctx context.Context) (*CalibrationResult, error)
	// Ready reports whether the interval is resolved. It never calibrates
	// and never waits on a calibration in flight.
	Ready() bool
	ScoreImage(ctx context.Context, img image.Image, withOverlay bool) (*analyzer.CoverageReport, error)
	ScoreRef(ctx context.Context, ref string, withOverlay bool) (*analyzer.CoverageReport, error)
	// ScoreBatch scores every ref independently. A calibration failure is
	// returned before any target is touched; per-image failures are reported
	// in the results.
	ScoreBatch(ctx context.Context, refs []string, withOverlay bool) ([]BatchResult, error)
}

// CalibrationResult describes the interval in use
type CalibrationResult struct {
	Strategy   string
	Interval   analyzer.HueInterval
	Stats      *analyzer.HueStats
	References []string
}

// BatchResult is the outcome for one reference of a batch
type BatchResult struct {
	Ref    string
	Report *analyzer.CoverageReport
	Err    error
}

type coverageService struct {
	hue       strategy.HueStrategy
	targets   storage.ImageSource
	opts      analyzer.Options
	publisher observer.Subject
	workers   int

	mu          sync.Mutex
	pipeline    *analyzer.Pipeline
	calibration *CalibrationResult
	ready       atomic.Bool
}

// NewCoverageService wires a hue strategy to the source that resolves target
// references. workers bounds batch parallelism; 0 means one per CPU.
func NewCoverageService(
	hue strategy.HueStrategy,
	targets storage.ImageSource,
	opts analyzer.Options,
	publisher observer.Subject,
	workers int,
) CoverageService {
	if publisher == nil {
		publisher = observer.NewEventPublisher()
	}
	return &coverageService{
		hue:       hue,
		targets:   targets,
		opts:      opts,
		publisher: publisher,
		workers:   workers,
	}
}

func (s *coverageService) Ready() bool {
	return s.ready.Load()
}

func (s *coverageService) Calibrate(ctx context.Context) (*CalibrationResult, error) {
	if _, err := s.resolve(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibration, nil
}

// resolve returns the pipeline for the run's interval. Only success is kept.
func (s *coverageService) resolve(ctx context.Context) (*analyzer.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipeline != nil {
		return s.pipeline, nil
	}

	start := time.Now()
	result, err := s.intervalFor(ctx)
	if err == nil {
		s.pipeline, err = analyzer.NewPipeline(s.opts, result.Interval)
	}
	if err != nil {
		s.publisher.NotifyObservers(ctx, observer.CoverageEvent{
			EventType:      observer.CalibrationFailed,
			ProcessingTime: time.Since(start),
			ErrorType:      string(apperrors.TypeOf(err)),
			ErrorMessage:   err.Error(),
			Metadata:       map[string]interface{}{"strategy": s.hue.GetStrategyName()},
		})
		return nil, err
	}

	s.calibration = result
	s.ready.Store(true)
	s.publisher.NotifyObservers(ctx, observer.CoverageEvent{
		EventType:      observer.CalibrationCompleted,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata: map[string]interface{}{
			"strategy":   result.Strategy,
			"interval":   result.Interval.String(),
			"references": len(result.References),
		},
	})
	return s.pipeline, nil
}

func (s *coverageService) intervalFor(ctx context.Context) (*CalibrationResult, error) {
	result := &CalibrationResult{Strategy: s.hue.GetStrategyName()}

	// Calibrated strategies also expose what they were derived from
	if cs, ok := s.hue.(*strategy.CalibratedStrategy); ok {
		c, err := cs.Calibration(ctx)
		if err != nil {
			return nil, err
		}
		stats := c.Stats
		result.Interval = c.Interval
		result.Stats = &stats
		result.References = c.References
		return result, nil
	}

	hue, err := s.hue.Interval(ctx)
	if err != nil {
		return nil, err
	}
	result.Interval = hue
	return result, nil
}

func (s *coverageService) ScoreImage(ctx context.Context, img image.Image, withOverlay bool) (*analyzer.CoverageReport, error) {
	p, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return s.score(ctx, p, uploadRef, func() (image.Image, error) { return img, nil }, withOverlay)
}

func (s *coverageService) ScoreRef(ctx context.Context, ref string, withOverlay bool) (*analyzer.CoverageReport, error) {
	p, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return s.score(ctx, p, ref, func() (image.Image, error) { return s.targets.LoadImage(ctx, ref) }, withOverlay)
}

func (s *coverageService) ScoreBatch(ctx context.Context, refs []string, withOverlay bool) ([]BatchResult, error) {
	p, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]BatchResult, len(refs))
	pool := analyzer.NewWorkerPool(s.workers)
	pool.Start()
	defer pool.Close()

	for i, ref := range refs {
		i, ref := i, ref
		results[i].Ref = ref
		pool.Submit(func() {
			if err := ctx.Err(); err != nil {
				results[i].Err = apperrors.NewTimeoutError("batch cancelled", err)
				return
			}
			results[i].Report, results[i].Err = s.score(ctx, p, ref, func() (image.Image, error) {
				return s.targets.LoadImage(ctx, ref)
			}, withOverlay)
		})
	}
	pool.Wait()

	return results, nil
}

// score loads one image and runs the pipeline on it, publishing the outcome
func (s *coverageService) score(
	ctx context.Context,
	p *analyzer.Pipeline,
	ref string,
	load func() (image.Image, error),
	withOverlay bool,
) (*analyzer.CoverageReport, error) {
	start := time.Now()
	s.publisher.NotifyObservers(ctx, observer.CoverageEvent{
		EventType: observer.CoverageStarted,
		ImageRef:  ref,
	})

	report, err := func() (*analyzer.CoverageReport, error) {
		img, err := load()
		if err != nil {
			return nil, err
		}
		return p.ScoreImage(img, withOverlay)
	}()

	if err != nil {
		s.publisher.NotifyObservers(ctx, observer.CoverageEvent{
			EventType:      observer.CoverageFailed,
			ImageRef:       ref,
			ProcessingTime: time.Since(start),
			ErrorType:      string(apperrors.TypeOf(err)),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	s.publisher.NotifyObservers(ctx, observer.CoverageEvent{
		EventType:      observer.CoverageCompleted,
		ImageRef:       ref,
		ProcessingTime: time.Since(start),
		Success:        true,
		Ratio:          report.Ratio,
	})
	return report, nil
}
