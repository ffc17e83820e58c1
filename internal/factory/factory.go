package factory

import (
	"fmt"

	"go-trap-coverage/internal/analyzer"
	"go-trap-coverage/internal/config"
	apperrors "go-trap-coverage/internal/errors"
	"go-trap-coverage/internal/storage"
	"go-trap-coverage/internal/strategy"
)

// StorageFactory creates image sources
type StorageFactory interface {
	CreateStorage(sourceType string) (storage.ImageSource, error)
}

// StrategyFactory creates hue strategies
type StrategyFactory interface {
	CreateStrategy(hueMode string) (strategy.HueStrategy, error)
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a storage factory drawing settings from cfg
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

func (f *storageFactory) CreateStorage(sourceType string) (storage.ImageSource, error) {
	switch sourceType {
	case config.SourceLocal:
		return storage.NewLocalStorage(""), nil
	case config.SourceHTTP:
		return storage.NewHTTPImageFetcher(
			storage.WithTimeout(f.cfg.ImageFetchTimeout),
			storage.WithCache(f.cfg.ImageCacheBytes, f.cfg.ImageCacheTTL),
			storage.WithMaxImageBytes(f.cfg.MaxRequestBodySize),
		), nil
	case config.SourceAzure:
		a := f.cfg.Azure
		s, err := storage.NewAzureStorage(a.AccountName, a.AccountKey, a.Container)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported storage type: %s", sourceType), nil)
	}
}

type strategyFactory struct {
	cfg      *config.Config
	storages StorageFactory
}

// NewStrategyFactory creates a strategy factory. Calibrated strategies read
// their references from the configured reference source.
func NewStrategyFactory(cfg *config.Config, storages StorageFactory) StrategyFactory {
	return &strategyFactory{cfg: cfg, storages: storages}
}

func (f *strategyFactory) CreateStrategy(hueMode string) (strategy.HueStrategy, error) {
	opts := analyzer.OptionsFromConfig(f.cfg.Pipeline)

	switch hueMode {
	case config.HueModeFixed:
		s, err := strategy.NewFixedStrategy(opts.Seed)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.HueModeCalibrated:
		source, err := f.storages.CreateStorage(f.cfg.ReferenceSource)
		if err != nil {
			return nil, err
		}
		return strategy.NewCalibratedStrategy(source, f.referencePrefix(), analyzer.NewCalibrator(opts), f.cfg.Workers), nil
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported hue mode: %s", hueMode), nil)
	}
}

// referencePrefix is the folder for local sources, the manifest URL for
// HTTP and the blob name prefix for azure
func (f *strategyFactory) referencePrefix() string {
	if f.cfg.ReferenceSource == config.SourceAzure {
		return f.cfg.ReferencePrefix
	}
	if f.cfg.ReferencePrefix != "" {
		return f.cfg.ReferencePrefix
	}
	return f.cfg.ReferenceDir
}
