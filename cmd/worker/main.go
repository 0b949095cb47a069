package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amillerrr/clipforge/internal/config"
	"github.com/amillerrr/clipforge/internal/delivery"
	"github.com/amillerrr/clipforge/internal/health"
	"github.com/amillerrr/clipforge/internal/logger"
	"github.com/amillerrr/clipforge/internal/observability"
	"github.com/amillerrr/clipforge/internal/probe"
	"github.com/amillerrr/clipforge/internal/store"
	"github.com/amillerrr/clipforge/internal/transcoder"
	"github.com/amillerrr/clipforge/internal/worker"
)

const (
	TracerShutdownTimeout  = 5 * time.Second
	MetricsShutdownTimeout = 5 * time.Second
)

func main() {
	// Initialize logger
	log := logger.New()
	slog.SetDefault(log)

	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize tracer
	shutdownTracer, err := observability.InitTracer(context.Background(), "clipforge-worker", cfg.Observability.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Error("Failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), TracerShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Error("Failed to shutdown tracer", "error", err)
		}
	}()

	// Open the queue database and apply migrations
	db, err := store.Open(cfg.Paths.DatabasePath)
	if err != nil {
		log.Error("Failed to open database", "error", err, "path", cfg.Paths.DatabasePath)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := store.RunMigrations(db)
	if err != nil {
		log.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	log.Info("Database ready", "migration_version", version, "dirty", dirty)

	repo := store.NewQueueRepository(db)

	// Working directories
	for _, dir := range []string{cfg.Paths.DownloadDir, cfg.Paths.ProcessedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("Failed to create working directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	// Pipeline collaborators
	prober := probe.New(cfg.Tools.FFprobePath, log)
	engine := transcoder.NewEngine(cfg.Tools.FFmpegPath, log)
	spec := cfg.TargetSpec()

	upscaler := transcoder.NewUpscaler(transcoder.UpscalerConfig{
		FFmpegPath:     cfg.Tools.FFmpegPath,
		Video2xPath:    cfg.Tools.Video2xPath,
		Video2xTimeout: time.Duration(cfg.Tools.Video2xTimeoutSeconds) * time.Second,
		MinHeight:      spec.MinHeight,
		OutputDir:      cfg.Paths.ProcessedDir,
		Prober:         prober,
		Logger:         log,
	})

	telegram := delivery.NewTelegramClient(delivery.Config{
		BotToken:  cfg.Telegram.BotToken,
		SendToken: cfg.SendToken(),
		ChatID:    cfg.Telegram.ChatID,
		Logger:    log,
	})

	downloader := worker.NewHTTPDownloader(telegram, cfg.Paths.DownloadDir, log)

	w := worker.New(worker.Config{
		Store:           repo,
		Prober:          prober,
		Downloader:      downloader,
		Upscaler:        upscaler,
		Engine:          engine,
		Deliverer:       telegram,
		Spec:            spec,
		ProcessedDir:    cfg.Paths.ProcessedDir,
		MaxConcurrent:   cfg.Pipeline.MaxConcurrentJobs,
		PollInterval:    time.Duration(cfg.Pipeline.PollIntervalSeconds) * time.Second,
		RetryFailedOnly: cfg.Pipeline.RetryFailedOnly,
		MaxRetries:      cfg.Pipeline.MaxRetries,
		Logger:          log,
	})

	// Metrics and health endpoints
	healthConfig := health.DefaultConfig("clipforge-worker", log)
	healthConfig.DB = db
	healthConfig.Tools = map[string]string{
		"ffmpeg":  cfg.Tools.FFmpegPath,
		"ffprobe": cfg.Tools.FFprobePath,
	}
	healthConfig.Dirs = map[string]string{
		"download_dir":  cfg.Paths.DownloadDir,
		"processed_dir": cfg.Paths.ProcessedDir,
	}
	healthChecker := health.NewChecker(healthConfig)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthChecker.Handler())
	mux.HandleFunc("/health/deep", healthChecker.DeepHandler())

	metricsServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Pipeline.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Metrics server listening", "port", cfg.Pipeline.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server error", "error", err)
		}
	}()

	// Run until interrupted; Run drains in-flight items before returning.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), MetricsShutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Metrics server forced to shutdown", "error", err)
	}

	log.Info("Worker shutdown complete")
}
