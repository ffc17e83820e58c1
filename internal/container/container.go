package container

import (
	"fmt"
	"net/http"

	"go-trap-coverage/internal/analyzer"
	"go-trap-coverage/internal/config"
	"go-trap-coverage/internal/factory"
	"go-trap-coverage/internal/logger"
	"go-trap-coverage/internal/observer"
	"go-trap-coverage/internal/service"
	"go-trap-coverage/internal/storage"
	"go-trap-coverage/internal/strategy"
	"go-trap-coverage/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	hueStrategy     strategy.HueStrategy
	targets         storage.ImageSource
	publisher       *observer.EventPublisher
	metrics         *observer.MetricsObserver
	coverageService service.CoverageService
	handler         http.Handler
}

// NewContainer builds the dependency graph from cfg. targets resolves the
// images to score; nil means target references are URLs.
func NewContainer(cfg *config.Config, targets storage.ImageSource) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	storages := factory.NewStorageFactory(cfg)
	hue, err := factory.NewStrategyFactory(cfg, storages).CreateStrategy(cfg.HueMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create hue strategy: %w", err)
	}

	if targets == nil {
		targets = storage.NewHTTPImageFetcher(
			storage.WithTimeout(cfg.ImageFetchTimeout),
			storage.WithCache(cfg.ImageCacheBytes, cfg.ImageCacheTTL),
			storage.WithMaxImageBytes(cfg.MaxRequestBodySize),
		)
	}

	publisher := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	coverageService := service.NewCoverageService(
		hue,
		targets,
		analyzer.OptionsFromConfig(cfg.Pipeline),
		publisher,
		cfg.Workers,
	)
	handler := transport.NewHandler(coverageService, metrics, cfg)

	return &Container{
		config:          cfg,
		hueStrategy:     hue,
		targets:         targets,
		publisher:       publisher,
		metrics:         metrics,
		coverageService: coverageService,
		handler:         handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

func (c *Container) Config() *config.Config {
	return c.config
}

func (c *Container) CoverageService() service.CoverageService {
	return c.coverageService
}

func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}
