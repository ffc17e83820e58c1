package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-trap-coverage/internal/analyzer"
	"go-trap-coverage/internal/config"
	apperrors "go-trap-coverage/internal/errors"
	"go-trap-coverage/internal/logger"
	"go-trap-coverage/internal/observer"
	"go-trap-coverage/internal/service"
	"go-trap-coverage/pkg/models"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// uploadField is the multipart field carrying the image
const uploadField = "image"

func NewHandler(svc service.CoverageService, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck(svc))
	r.GET("/calibration", calibration(svc, cfg))
	r.GET("/metrics", metricsSnapshot(metrics))
	r.POST("/coverage", coverage(svc, cfg))

	return r
}

func healthCheck(svc service.CoverageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:   "available",
			Version:  "1.0.0",
			Time:     time.Now().UTC().Format(time.RFC3339),
			HueReady: svc.Ready(),
		})
	}
}

func calibration(svc service.CoverageService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		result, err := svc.Calibrate(ctx)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "calibration unavailable", err)
			return
		}

		c.JSON(http.StatusOK, models.CalibrationResponse{
			Strategy:   result.Strategy,
			Interval:   result.Interval,
			Stats:      result.Stats,
			References: len(result.References),
		})
	}
}

func metricsSnapshot(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.JSON(http.StatusOK, observer.Metrics{})
			return
		}
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

// coverage scores either a multipart upload or a JSON {"url": ...} body.
// With overlay=true the highlighted crop is returned as PNG instead of JSON.
func coverage(svc service.CoverageService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		withOverlay := false
		if raw := c.Query("overlay"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				respondError(c, http.StatusBadRequest, "invalid overlay parameter",
					apperrors.NewValidationError(fmt.Sprintf("overlay must be a boolean, got %q", raw), err))
				return
			}
			withOverlay = v
		}

		var (
			ref    string
			report *analyzer.CoverageReport
			err    error
		)
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			ref, report, err = scoreUpload(ctx, c, svc, withOverlay)
		} else {
			ref, report, err = scoreURL(ctx, c, svc, withOverlay)
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && !apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
				err = apperrors.NewTimeoutError("coverage request timed out", err)
			}
			respondError(c, apperrors.GetStatusCode(err), "coverage failed", err)
			return
		}

		duration := time.Since(startTime)
		logger.WithFields(logrus.Fields{
			"image":              ref,
			"coverage":           report.Percent,
			"processing_time_ms": duration.Milliseconds(),
		}).Info("Coverage request completed")

		if withOverlay {
			var buf bytes.Buffer
			if err := png.Encode(&buf, report.Overlay); err != nil {
				respondError(c, http.StatusInternalServerError, "overlay encoding failed",
					apperrors.NewInternalError("failed to encode overlay", err))
				return
			}
			c.Header("X-Coverage-Ratio", strconv.FormatFloat(report.Ratio, 'f', 6, 64))
			c.Header("X-Coverage-Percent", report.Percent)
			c.Data(http.StatusOK, "image/png", buf.Bytes())
			return
		}

		c.JSON(http.StatusOK, models.NewCoverageResponse(ref, report, duration))
	}
}

func scoreUpload(ctx context.Context, c *gin.Context, svc service.CoverageService, withOverlay bool) (string, *analyzer.CoverageReport, error) {
	header, err := c.FormFile(uploadField)
	if err != nil {
		return "", nil, apperrors.NewValidationError(fmt.Sprintf("multipart field %q is required", uploadField), err)
	}
	f, err := header.Open()
	if err != nil {
		return "", nil, apperrors.NewImageLoadError("cannot read upload", err)
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return "", nil, apperrors.NewImageLoadError(fmt.Sprintf("cannot decode upload %s", header.Filename), err)
	}

	report, err := svc.ScoreImage(ctx, img, withOverlay)
	return header.Filename, report, err
}

func scoreURL(ctx context.Context, c *gin.Context, svc service.CoverageService, withOverlay bool) (string, *analyzer.CoverageReport, error) {
	var req models.CoverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", nil, apperrors.NewValidationError("invalid request format", err)
	}

	logger.WithField("url", req.URL).Debug("Fetching image")
	report, err := svc.ScoreRef(ctx, req.URL, withOverlay)
	return req.URL, report, err
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}).Debug("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Type:    string(apperrors.TypeOf(err)),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
