package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-trap-coverage/internal/config"
	"go-trap-coverage/internal/container"
	"go-trap-coverage/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Target references arrive as URLs
	c, err := container.NewContainer(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Calibrate up front so a bad reference set shows in the logs at boot.
	// The server still starts; /calibration reports the failure.
	bootCtx, cancelBoot := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if result, err := c.CoverageService().Calibrate(bootCtx); err != nil {
		logger.WithError(err).Warn("Hue interval unavailable at startup")
	} else {
		logger.WithFields(logrus.Fields{
			"strategy": result.Strategy,
			"interval": result.Interval.String(),
		}).Info("Hue interval ready")
	}
	cancelBoot()

	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      c.Handler(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"address": cfg.ServerAddress(),
			"timeout": cfg.RequestTimeout,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
