package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/amillerrr/clipforge/internal/metrics"
	"github.com/amillerrr/clipforge/pkg/models"
)

// Config wires the worker's collaborators and tuning knobs.
type Config struct {
	Store        QueueStore
	Prober       MediaProber
	Downloader   SourceDownloader
	Upscaler     HeightEnsurer
	Engine       EncodeEngine
	Deliverer    Deliverer
	Spec         models.TargetSpec
	ProcessedDir string

	MaxConcurrent   int
	PollInterval    time.Duration
	RetryFailedOnly bool
	MaxRetries      int

	Logger *slog.Logger
}

// Worker polls the queue for work and drives each item through the pipeline.
type Worker struct {
	store        QueueStore
	prober       MediaProber
	downloader   SourceDownloader
	upscaler     HeightEnsurer
	engine       EncodeEngine
	deliverer    Deliverer
	spec         models.TargetSpec
	processedDir string

	maxConcurrent   int
	pollInterval    time.Duration
	retryFailedOnly bool
	maxRetries      int

	log *slog.Logger

	mu       sync.Mutex
	inFlight map[int64]struct{}
	wg       sync.WaitGroup
}

func New(cfg Config) *Worker {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Worker{
		store:           cfg.Store,
		prober:          cfg.Prober,
		downloader:      cfg.Downloader,
		upscaler:        cfg.Upscaler,
		engine:          cfg.Engine,
		deliverer:       cfg.Deliverer,
		spec:            cfg.Spec,
		processedDir:    cfg.ProcessedDir,
		maxConcurrent:   cfg.MaxConcurrent,
		pollInterval:    cfg.PollInterval,
		retryFailedOnly: cfg.RetryFailedOnly,
		maxRetries:      cfg.MaxRetries,
		log:             cfg.Logger,
		inFlight:        make(map[int64]struct{}),
	}
}

// Run polls until the context is cancelled, then waits for in-flight items
// to drain before returning.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started",
		"poll_interval", w.pollInterval.String(),
		"max_concurrent", w.maxConcurrent,
		"retry_failed_only", w.retryFailedOnly,
		"max_retries", w.maxRetries)

	sem := make(chan struct{}, w.maxConcurrent)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.poll(ctx, sem)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopping, draining in-flight items")
			w.wg.Wait()
			w.log.Info("worker stopped")
			return
		case <-ticker.C:
			w.poll(ctx, sem)
		}
	}
}

func (w *Worker) poll(ctx context.Context, sem chan struct{}) {
	ids, err := w.store.SelectWork(ctx, w.retryFailedOnly, w.maxRetries)
	if err != nil {
		w.log.Error("select work", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	w.log.Info("work selected", "count", len(ids))

	for _, id := range ids {
		if !w.claim(id) {
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			w.release(id)
			return
		}

		w.wg.Add(1)
		metrics.ActiveJobs.Inc()
		go func(id int64) {
			defer func() {
				metrics.ActiveJobs.Dec()
				w.release(id)
				<-sem
				w.wg.Done()
			}()
			w.processItem(ctx, id)
		}(id)
	}
}

// claim marks an item as in flight so overlapping polls do not pick the
// same item twice. Returns false when the item is already being worked.
func (w *Worker) claim(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inFlight[id]; busy {
		return false
	}
	w.inFlight[id] = struct{}{}
	return true
}

func (w *Worker) release(id int64) {
	w.mu.Lock()
	delete(w.inFlight, id)
	w.mu.Unlock()
}
