// Package main runs the screen-recording backend HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/screenloom/backend/config"
	"github.com/screenloom/backend/internal/metrics"
	"github.com/screenloom/backend/internal/middleware"
	"github.com/screenloom/backend/internal/recordings"
	"github.com/screenloom/backend/internal/worker"
	"github.com/screenloom/backend/pkg/response"
	"github.com/screenloom/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	blobs, err := storage.NewDisk(cfg.Storage.RecordingsDir, logger)
	if err != nil {
		logger.Fatal("blob store", zap.Error(err))
	}

	capacity := cfg.Storage.CapacityBytes
	if capacity == 0 {
		capacity = storage.DiskCapacity(blobs.Dir())
		logger.Info("storage capacity derived from disk", zap.Int64("bytes", capacity))
	}

	store := recordings.NewStore(blobs, capacity, logger)
	handler := recordings.NewHandler(store, cfg.Storage.MaxUploadBytes, logger)
	metrics.Register()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handler.Register(router.Group("/api"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background sweeper reclaims blobs orphaned by best-effort deletes.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	if cfg.Sweep.Enabled {
		sweeper := worker.NewSweeper(
			store,
			blobs,
			time.Duration(cfg.Sweep.IntervalMinutes)*time.Minute,
			time.Duration(cfg.Sweep.GraceMinutes)*time.Minute,
			logger,
		)
		go sweeper.Run(sweepCtx)
		logger.Info("orphan sweeper started",
			zap.Int("interval_min", cfg.Sweep.IntervalMinutes),
			zap.Int("grace_min", cfg.Sweep.GraceMinutes),
		)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweepCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
