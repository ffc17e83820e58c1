package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Reference sources understood by the storage factory
const (
	SourceLocal = "local"
	SourceHTTP  = "http"
	SourceAzure = "azure"
)

// Hue modes
const (
	HueModeCalibrated = "calibrated"
	HueModeFixed      = "fixed"
)

// Pipeline holds the tunable constants of the segmentation pipeline.
// Hue is on the 0-179 scale, saturation and value on 0-255.
type Pipeline struct {
	SeedHueMin            int
	SeedHueMax            int
	SeedSatMin            int
	SeedSatMax            int
	SeedValMin            int
	SeedValMax            int
	CalibrationMargin     int
	ClosingSize           int
	ApproxEpsilonFraction float64
	ShrinkFraction        float64
	OpeningSize           int
}

// Azure holds blob storage credentials for reference images
type Azure struct {
	AccountName string
	AccountKey  string
	Container   string
}

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	ImageCacheBytes    int64
	ImageCacheTTL      time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	HueMode         string
	ReferenceSource string
	ReferenceDir    string
	ReferencePrefix string
	Azure           Azure
	Workers         int

	Pipeline Pipeline
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// DefaultPipeline returns the empirically chosen defaults
func DefaultPipeline() Pipeline {
	return Pipeline{
		SeedHueMin:            20,
		SeedHueMax:            35,
		SeedSatMin:            100,
		SeedSatMax:            255,
		SeedValMin:            100,
		SeedValMax:            255,
		CalibrationMargin:     2,
		ClosingSize:           20,
		ApproxEpsilonFraction: 0.01,
		ShrinkFraction:        0.05,
		OpeningSize:           3,
	}
}

// LoadFromEnv reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real variables win.
func LoadFromEnv() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	def := DefaultPipeline()
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		ImageCacheBytes:    parseIntOrDefault("IMAGE_CACHE_BYTES", 64*1024*1024),
		ImageCacheTTL:      parseDurationOrDefault("IMAGE_CACHE_TTL", time.Hour),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 32*1024*1024), // 32MB, phone photos
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),

		HueMode:         strings.ToLower(getEnvOrDefault("HUE_MODE", HueModeCalibrated)),
		ReferenceSource: strings.ToLower(getEnvOrDefault("REFERENCE_SOURCE", SourceLocal)),
		ReferenceDir:    getEnvOrDefault("REFERENCE_DIR", "./photos/reference-clean"),
		ReferencePrefix: getEnvOrDefault("REFERENCE_PREFIX", ""),
		Azure: Azure{
			AccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
			AccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
			Container:   os.Getenv("AZURE_CONTAINER"),
		},
		Workers: int(parseIntOrDefault("WORKERS", 0)),

		Pipeline: Pipeline{
			SeedHueMin:            int(parseIntOrDefault("SEED_HUE_MIN", int64(def.SeedHueMin))),
			SeedHueMax:            int(parseIntOrDefault("SEED_HUE_MAX", int64(def.SeedHueMax))),
			SeedSatMin:            int(parseIntOrDefault("SEED_SAT_MIN", int64(def.SeedSatMin))),
			SeedSatMax:            int(parseIntOrDefault("SEED_SAT_MAX", int64(def.SeedSatMax))),
			SeedValMin:            int(parseIntOrDefault("SEED_VAL_MIN", int64(def.SeedValMin))),
			SeedValMax:            int(parseIntOrDefault("SEED_VAL_MAX", int64(def.SeedValMax))),
			CalibrationMargin:     int(parseIntOrDefault("CALIBRATION_MARGIN", int64(def.CalibrationMargin))),
			ClosingSize:           int(parseIntOrDefault("CLOSING_SIZE", int64(def.ClosingSize))),
			ApproxEpsilonFraction: parseFloatOrDefault("APPROX_EPSILON_FRACTION", def.ApproxEpsilonFraction),
			ShrinkFraction:        parseFloatOrDefault("SHRINK_FRACTION", def.ShrinkFraction),
			OpeningSize:           int(parseIntOrDefault("OPENING_SIZE", int64(def.OpeningSize))),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges of every setting
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s)",
			c.RequestTimeout, c.ImageFetchTimeout)
	}
	if c.ImageCacheBytes < 0 {
		return fmt.Errorf("IMAGE_CACHE_BYTES must be >= 0 (got %d)", c.ImageCacheBytes)
	}
	switch c.HueMode {
	case HueModeCalibrated, HueModeFixed:
	default:
		return fmt.Errorf("invalid HUE_MODE: %q", c.HueMode)
	}
	switch c.ReferenceSource {
	case SourceLocal, SourceHTTP, SourceAzure:
	default:
		return fmt.Errorf("invalid REFERENCE_SOURCE: %q", c.ReferenceSource)
	}
	if c.Workers < 0 {
		return fmt.Errorf("WORKERS must be >= 0 (got %d)", c.Workers)
	}
	return c.Pipeline.Validate()
}

// Validate checks the pipeline constants against the HSV domain
func (p Pipeline) Validate() error {
	if p.SeedHueMin < 0 || p.SeedHueMax > 179 || p.SeedHueMin > p.SeedHueMax {
		return fmt.Errorf("seed hue band must satisfy 0 <= min <= max <= 179 (got %d-%d)", p.SeedHueMin, p.SeedHueMax)
	}
	if p.SeedSatMin < 0 || p.SeedSatMax > 255 || p.SeedSatMin > p.SeedSatMax {
		return fmt.Errorf("seed saturation band must satisfy 0 <= min <= max <= 255 (got %d-%d)", p.SeedSatMin, p.SeedSatMax)
	}
	if p.SeedValMin < 0 || p.SeedValMax > 255 || p.SeedValMin > p.SeedValMax {
		return fmt.Errorf("seed value band must satisfy 0 <= min <= max <= 255 (got %d-%d)", p.SeedValMin, p.SeedValMax)
	}
	if p.CalibrationMargin < 0 {
		return fmt.Errorf("CALIBRATION_MARGIN must be >= 0 (got %d)", p.CalibrationMargin)
	}
	if p.ClosingSize < 1 || p.OpeningSize < 1 {
		return fmt.Errorf("morphology sizes must be >= 1 (got closing=%d, opening=%d)", p.ClosingSize, p.OpeningSize)
	}
	if p.ApproxEpsilonFraction < 0 || p.ApproxEpsilonFraction >= 1 {
		return fmt.Errorf("APPROX_EPSILON_FRACTION must be in [0, 1) (got %g)", p.ApproxEpsilonFraction)
	}
	if p.ShrinkFraction < 0 || p.ShrinkFraction >= 0.5 {
		return fmt.Errorf("SHRINK_FRACTION must be in [0, 0.5) (got %g)", p.ShrinkFraction)
	}
	return nil
}

// LoadDotEnv loads a dotenv file without overriding variables already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}
