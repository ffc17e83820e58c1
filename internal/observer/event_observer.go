package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CoverageEvent represents one step of a calibration or scoring run
type CoverageEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	ImageRef       string                 `json:"image_ref,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	Ratio          float64                `json:"ratio,omitempty"`
	ErrorType      string                 `json:"error_type,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of event
type EventType string

const (
	CalibrationCompleted EventType = "calibration_completed"
	CalibrationFailed    EventType = "calibration_failed"
	CoverageStarted      EventType = "coverage_started"
	CoverageCompleted    EventType = "coverage_completed"
	CoverageFailed       EventType = "coverage_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event CoverageEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event CoverageEvent)
}

// LoggingObserver logs events
type LoggingObserver struct {
	logger *logrus.Logger
}

func NewLoggingObserver(logger *logrus.Logger) *LoggingObserver {
	return &LoggingObserver{
		logger: logger,
	}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event CoverageEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.ImageRef != "" {
		fields["image"] = event.ImageRef
	}
	if event.EventType == CoverageCompleted {
		fields["ratio"] = event.Ratio
	}
	if event.ErrorMessage != "" {
		fields["error_type"] = event.ErrorType
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case CalibrationCompleted:
		entry.Info("Calibration completed")
	case CalibrationFailed:
		entry.Error("Calibration failed")
	case CoverageStarted:
		entry.Debug("Coverage scoring started")
	case CoverageCompleted:
		entry.Info("Coverage scoring completed")
	case CoverageFailed:
		entry.Error("Coverage scoring failed")
	default:
		entry.Info("Coverage event occurred")
	}
}

func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Metrics is a snapshot of MetricsObserver counters
type Metrics struct {
	Calibrations        int64            `json:"calibrations"`
	CalibrationFailures int64            `json:"calibration_failures"`
	TotalImages         int64            `json:"total_images"`
	SuccessfulImages    int64            `json:"successful_images"`
	FailedImages        int64            `json:"failed_images"`
	FailuresByType      map[string]int64 `json:"failures_by_type,omitempty"`
	TotalProcessingTime time.Duration    `json:"total_processing_time"`
	AvgProcessingTime   time.Duration    `json:"avg_processing_time"`
}

// MetricsObserver counts events
type MetricsObserver struct {
	mu                  sync.RWMutex
	calibrations        int64
	calibrationFailures int64
	totalImages         int64
	successfulImages    int64
	failedImages        int64
	failuresByType      map[string]int64
	totalProcessingTime time.Duration
}

func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{failuresByType: make(map[string]int64)}
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event CoverageEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case CalibrationCompleted:
		o.calibrations++
	case CalibrationFailed:
		o.calibrationFailures++
	case CoverageStarted:
		o.totalImages++
	case CoverageCompleted:
		o.successfulImages++
		o.totalProcessingTime += event.ProcessingTime
	case CoverageFailed:
		o.failedImages++
		o.failuresByType[event.ErrorType]++
	}
}

func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	m := Metrics{
		Calibrations:        o.calibrations,
		CalibrationFailures: o.calibrationFailures,
		TotalImages:         o.totalImages,
		SuccessfulImages:    o.successfulImages,
		FailedImages:        o.failedImages,
		FailuresByType:      make(map[string]int64, len(o.failuresByType)),
		TotalProcessingTime: o.totalProcessingTime,
	}
	for k, v := range o.failuresByType {
		m.FailuresByType[k] = v
	}
	if o.successfulImages > 0 {
		m.AvgProcessingTime = o.totalProcessingTime / time.Duration(o.successfulImages)
	}
	return m
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes the first observer with the same name
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers event to every observer in subscription order.
// Delivery is synchronous so counters are settled when the caller returns.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event CoverageEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		notify(ctx, observer, event)
	}
}

func notify(ctx context.Context, obs Observer, event CoverageEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
