package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/amillerrr/clipforge/internal/compliance"
	"github.com/amillerrr/clipforge/internal/metrics"
	"github.com/amillerrr/clipforge/internal/transcoder"
	"github.com/amillerrr/clipforge/pkg/models"
)

var tracer = otel.Tracer("clipforge-worker")

// QueueStore is the persistence surface the pipeline needs.
type QueueStore interface {
	SelectWork(ctx context.Context, retryOnly bool, maxRetries int) ([]int64, error)
	Fetch(ctx context.Context, id int64) (*models.QueueItem, error)
	AttachOriginalPath(ctx context.Context, id int64, path string) error
	UpsertOutcome(ctx context.Context, id int64, processedPath *string, status models.OutcomeStatus, errorMessage *string, quick models.QuickProfile) error
	IncrementRetry(ctx context.Context, id int64) error
}

// MediaProber inspects media files on disk.
type MediaProber interface {
	Probe(ctx context.Context, path string) models.MediaProfile
	QuickProbe(ctx context.Context, path string) models.QuickProfile
}

// SourceDownloader fetches an item's source media to local disk.
type SourceDownloader interface {
	Download(ctx context.Context, item *models.QueueItem) (string, error)
}

// HeightEnsurer upscales media that sits below the resolution floor.
// It never fails hard; the worst case returns the input unchanged.
type HeightEnsurer interface {
	EnsureMinimumHeight(ctx context.Context, inputPath string) (string, string)
}

// EncodeEngine renders media into the target format.
type EncodeEngine interface {
	Transcode(ctx context.Context, inputPath, outputPath string, spec models.TargetSpec, hint models.MediaProfile, params transcoder.PassParams) error
	ScaleOnly(ctx context.Context, inputPath, outputPath string, spec models.TargetSpec) error
}

// Deliverer sends a finished video with its caption to the destination chat.
type Deliverer interface {
	Deliver(ctx context.Context, path, caption string) error
}

// processItem walks one queue item through the full pipeline. Stage failures
// are absorbed here: they are recorded against the item and counted as a
// retry, never propagated to the polling loop.
func (w *Worker) processItem(ctx context.Context, id int64) {
	ctx, span := tracer.Start(ctx, "worker.processItem")
	defer span.End()
	span.SetAttributes(attribute.Int64("item.id", id))

	start := time.Now()
	defer func() {
		metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	item, err := w.store.Fetch(ctx, id)
	if err != nil {
		w.log.Error("fetch queue item", "item_id", id, "error", err)
		return
	}

	// Stage 1: make sure the original media is on disk.
	localPath, srcQuick, err := w.ensureOriginal(ctx, item)
	if err != nil {
		w.fail(ctx, id, err, models.QuickProfile{})
		return
	}

	// Stage 2: lift anything below the resolution floor before analysis,
	// so the compliance check sees the best media we can produce.
	upscaleStart := time.Now()
	upscaled, method := w.upscaler.EnsureMinimumHeight(ctx, localPath)
	metrics.UpscaleDuration.WithLabelValues(method).Observe(time.Since(upscaleStart).Seconds())
	if method != transcoder.MethodUnchanged {
		w.log.Info("minimum height enforced", "item_id", id, "method", method, "path", upscaled)
	}

	// Stage 3: render to the target format if the media does not already
	// satisfy it.
	finalPath, err := w.normalize(ctx, id, upscaled)
	if err != nil {
		w.fail(ctx, id, err, srcQuick)
		return
	}

	// Stage 4: deliver.
	quick := w.prober.QuickProbe(ctx, finalPath)
	caption := BuildCaption(item.CaptionText, item.ProductLink, quick.Height)

	deliverStart := time.Now()
	if err := w.deliverer.Deliver(ctx, finalPath, caption); err != nil {
		metrics.Deliveries.WithLabelValues("failure").Inc()
		w.fail(ctx, id, fmt.Errorf("deliver: %w", err), quick)
		return
	}
	metrics.DeliveryDuration.Observe(time.Since(deliverStart).Seconds())
	metrics.Deliveries.WithLabelValues("success").Inc()

	if err := w.store.UpsertOutcome(ctx, id, &finalPath, models.StatusProcessed, nil, quick); err != nil {
		w.log.Error("record processed outcome", "item_id", id, "error", err)
		return
	}
	metrics.RecordSuccess()
	w.log.Info("item processed", "item_id", id, "output", finalPath,
		"duration_seconds", time.Since(start).Seconds())
}

// ensureOriginal returns the local path to the item's source media and its
// quick profile, downloading the media first when the item has never been
// fetched. A fresh download is recorded immediately so a crash between
// download and delivery does not lose the file.
func (w *Worker) ensureOriginal(ctx context.Context, item *models.QueueItem) (string, models.QuickProfile, error) {
	if item.OriginalPath != nil && *item.OriginalPath != "" {
		if _, err := os.Stat(*item.OriginalPath); err == nil {
			return *item.OriginalPath, w.prober.QuickProbe(ctx, *item.OriginalPath), nil
		}
		w.log.Warn("recorded original missing on disk, re-downloading",
			"item_id", item.ID, "path", *item.OriginalPath)
	}

	start := time.Now()
	path, err := w.downloader.Download(ctx, item)
	if err != nil {
		return "", models.QuickProfile{}, fmt.Errorf("download: %w", err)
	}
	metrics.DownloadDuration.Observe(time.Since(start).Seconds())

	if err := w.store.AttachOriginalPath(ctx, item.ID, path); err != nil {
		return "", models.QuickProfile{}, fmt.Errorf("attach original path: %w", err)
	}
	quick := w.prober.QuickProbe(ctx, path)
	if err := w.store.UpsertOutcome(ctx, item.ID, nil, models.StatusPending, nil, quick); err != nil {
		return "", models.QuickProfile{}, fmt.Errorf("record pending outcome: %w", err)
	}
	return path, quick, nil
}

// normalize renders the media into the target format. Compliant input is
// passed through untouched. A failed full transcode falls back to a plain
// scale pass; if the first render is still non-compliant on re-probe, one
// escalation pass with stricter parameters is attempted and its output
// used regardless.
func (w *Worker) normalize(ctx context.Context, id int64, inputPath string) (string, error) {
	profile := w.prober.Probe(ctx, inputPath)
	result := compliance.Evaluate(profile, w.spec)
	if result.Compliant {
		w.log.Info("media already compliant", "item_id", id, "path", inputPath)
		return inputPath, nil
	}
	w.log.Info("media needs normalization", "item_id", id,
		"deficiencies", deficiencyList(result.Deficiencies))

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	firstOut := filepath.Join(w.processedDir, base+"_normalized."+w.spec.RequiredContainer)

	start := time.Now()
	err := w.engine.Transcode(ctx, inputPath, firstOut, w.spec, profile, transcoder.FirstPassParams(w.spec))
	metrics.TranscodeDuration.WithLabelValues("first").Observe(time.Since(start).Seconds())
	if err != nil {
		w.log.Warn("full transcode failed, trying scale-only fallback",
			"item_id", id, "error", err)
		fallbackOut := filepath.Join(w.processedDir, base+"_scaled."+w.spec.RequiredContainer)
		start = time.Now()
		if ferr := w.engine.ScaleOnly(ctx, inputPath, fallbackOut, w.spec); ferr != nil {
			metrics.TranscodeDuration.WithLabelValues("fallback").Observe(time.Since(start).Seconds())
			return "", fmt.Errorf("transcode: %w (fallback: %v)", err, ferr)
		}
		metrics.TranscodeDuration.WithLabelValues("fallback").Observe(time.Since(start).Seconds())
		return fallbackOut, nil
	}

	rendered := w.prober.Probe(ctx, firstOut)
	recheck := compliance.Evaluate(rendered, w.spec)
	if recheck.Compliant {
		return firstOut, nil
	}

	// One escalation pass with stricter parameters. The re-probe of the
	// first render knows the real geometry, so deficiencies the first pass
	// could not see (a blind probe forced a scale-only filter) are fixed
	// here. Its output is accepted even if a deficiency remains; a second
	// miss means the source cannot do better.
	w.log.Info("still non-compliant after first pass, escalating", "item_id", id,
		"deficiencies", deficiencyList(recheck.Deficiencies))
	secondOut := filepath.Join(w.processedDir, base+"_normalized_hq."+w.spec.RequiredContainer)
	start = time.Now()
	err = w.engine.Transcode(ctx, firstOut, secondOut, w.spec, rendered, transcoder.EscalationParams(w.spec))
	metrics.TranscodeDuration.WithLabelValues("escalation").Observe(time.Since(start).Seconds())
	if err != nil {
		w.log.Warn("escalation pass failed, keeping first pass output",
			"item_id", id, "error", err)
		return firstOut, nil
	}
	return secondOut, nil
}

// fail records a stage failure against the item and counts a retry. The
// last known quick profile is kept on the outcome; it is empty only when
// the source was never fetched.
func (w *Worker) fail(ctx context.Context, id int64, cause error, quick models.QuickProfile) {
	msg := cause.Error()
	if err := w.store.UpsertOutcome(ctx, id, nil, models.StatusFailed, &msg, quick); err != nil {
		w.log.Error("record failed outcome", "item_id", id, "error", err)
	}
	if err := w.store.IncrementRetry(ctx, id); err != nil {
		w.log.Error("increment retry", "item_id", id, "error", err)
	} else {
		metrics.RetriesRecorded.Inc()
	}
	metrics.RecordFailure()
	w.log.Error("item failed", "item_id", id, "error", cause)

	if errors.Is(cause, models.ErrDeliveryRejected) {
		w.log.Warn("destination rejected the upload, retrying will not help without changes",
			"item_id", id)
	}
}

func deficiencyList(ds []compliance.Deficiency) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = string(d)
	}
	return strings.Join(parts, ",")
}
