// Package transcoder normalizes videos to the target delivery spec via
// FFmpeg.
package transcoder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/amillerrr/clipforge/internal/compliance"
	"github.com/amillerrr/clipforge/internal/toolexec"
	"github.com/amillerrr/clipforge/pkg/models"
)

var tracer = otel.Tracer("clipforge-transcoder")

// Escalation pass floor: the second attempt never targets less than this.
const escalationBitrateFloorKbps = 3500

// PassParams are the per-pass encode knobs that change between the first
// attempt and the escalation attempt.
type PassParams struct {
	TargetBitrateKbps int
	MinBitrateKbps    int
}

// FirstPassParams returns the encode parameters for the initial attempt.
func FirstPassParams(spec models.TargetSpec) PassParams {
	return PassParams{
		TargetBitrateKbps: spec.TargetBitrateKbps,
		MinBitrateKbps:    spec.MinBitrateKbps,
	}
}

// EscalationParams returns the stricter parameters for the second pass.
func EscalationParams(spec models.TargetSpec) PassParams {
	target := spec.TargetBitrateKbps
	if target < escalationBitrateFloorKbps {
		target = escalationBitrateFloorKbps
	}
	return PassParams{
		TargetBitrateKbps: target,
		MinBitrateKbps:    spec.MinBitrateKbps,
	}
}

// Engine executes FFmpeg encodes. All encodes across the process are
// serialized through a single mutex: concurrent encodes on one host
// contend destructively for CPU without improving throughput.
type Engine struct {
	ffmpegPath string
	log        *slog.Logger

	mu sync.Mutex
}

// NewEngine creates an Engine using the given ffmpeg executable.
func NewEngine(ffmpegPath string, log *slog.Logger) *Engine {
	return &Engine{ffmpegPath: ffmpegPath, log: log}
}

// Transcode runs one full compliance encode of inputPath into outputPath.
// It blocks until any other in-flight encode finishes. The engine never
// retries internally; pass selection and escalation belong to the caller.
func (e *Engine) Transcode(ctx context.Context, inputPath, outputPath string, spec models.TargetSpec, hint models.MediaProfile, params PassParams) error {
	ctx, span := tracer.Start(ctx, "ffmpeg-transcode")
	defer span.End()
	span.SetAttributes(
		attribute.String("transcode.input", filepath.Base(inputPath)),
		attribute.Int("transcode.bitrate_kbps", params.TargetBitrateKbps),
	)

	args := BuildArgs(inputPath, outputPath, spec, hint, params)
	return e.run(ctx, outputPath, args)
}

// ScaleOnly runs a minimal single-filter encode: scale to target height,
// re-encode to the required codecs, nothing else. Used as the last-resort
// compliance attempt when the full encode fails outright.
func (e *Engine) ScaleOnly(ctx context.Context, inputPath, outputPath string, spec models.TargetSpec) error {
	ctx, span := tracer.Start(ctx, "ffmpeg-scale-only")
	defer span.End()

	args := []string{
		"-y",
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=-2:%d", spec.MinHeight),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		outputPath,
	}
	return e.run(ctx, outputPath, args)
}

func (e *Engine) run(ctx context.Context, outputPath string, args []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("%w: create output directory: %v", models.ErrTranscodeFailed, err)
	}

	e.log.Info("Starting encode", "output", filepath.Base(outputPath))
	start := time.Now()

	// No timeout: the primary transcode runtime is proportional to the
	// output duration, which the duration correction already bounds.
	_, err := toolexec.Run(ctx, 0, e.ffmpegPath, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrTranscodeFailed, err)
	}

	if _, statErr := os.Stat(outputPath); statErr != nil {
		return fmt.Errorf("%w: ffmpeg exited cleanly but output missing", models.ErrTranscodeFailed)
	}

	e.log.Info("Encode finished",
		"output", filepath.Base(outputPath),
		"durationSeconds", time.Since(start).Seconds(),
	)
	return nil
}

// BuildArgs constructs the full FFmpeg argument list for a compliance
// encode. Pure; separated from execution for testability.
func BuildArgs(inputPath, outputPath string, spec models.TargetSpec, hint models.MediaProfile, params PassParams) []string {
	args := []string{"-y"}

	// Duration correction. Above the ceiling we hard-trim; below the
	// floor we loop whole copies of the input (loop, don't stretch).
	var trimArgs []string
	if d := hint.DurationSeconds; d != nil {
		switch {
		case *d > spec.MaxDurationSeconds:
			trimArgs = []string{"-t", formatSeconds(spec.MaxDurationSeconds)}
		case *d < spec.MinDurationSeconds && *d > 0:
			if loops := LoopCount(*d, spec.MinDurationSeconds); loops > 0 {
				args = append(args, "-stream_loop", fmt.Sprintf("%d", loops))
			}
		}
	}

	args = append(args, "-i", inputPath)

	// Synthesize silence when the source carries no audio stream; the
	// audio codec requirement is otherwise unsatisfiable.
	if !hint.HasAudio {
		args = append(args, "-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100")
		args = append(args, "-map", "0:v:0", "-map", "1:a:0")
	} else {
		args = append(args, "-map", "0:v:0", "-map", "0:a:0?")
	}

	vb := params.TargetBitrateKbps
	if params.MinBitrateKbps > vb {
		vb = params.MinBitrateKbps
	}

	args = append(args,
		"-vf", buildFilterChain(spec, hint),
		"-r", fmt.Sprintf("%d", int(spec.TargetFPS)),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-profile:v", "high",
		"-level", "4.1",
		"-preset", "slower",
		"-crf", "18",
		"-b:v", fmt.Sprintf("%dk", vb),
		"-maxrate", fmt.Sprintf("%dk", int(float64(vb)*1.2)),
		"-bufsize", fmt.Sprintf("%dk", vb*3),
		"-c:a", "aac",
		"-b:a", "192k",
		"-ac", "2",
		"-ar", "44100",
		"-movflags", "+faststart",
	)

	args = append(args, trimArgs...)
	args = append(args, outputPath)
	return args
}

// buildFilterChain picks scale-only when the source is already within
// aspect tolerance, crop+scale otherwise, and always squares the pixel
// aspect ratio.
func buildFilterChain(spec models.TargetSpec, hint models.MediaProfile) string {
	var vf string
	if hint.Width != nil && hint.Height != nil && compliance.AspectWithinTolerance(hint.Width, hint.Height, spec) {
		vf = fmt.Sprintf("scale=-2:%d", spec.MinHeight)
	} else if hint.Width != nil && hint.Height != nil {
		vf = PlanCropScale(*hint.Width, *hint.Height, spec).FilterString()
	} else {
		// Unknown geometry: scale by height and let ffmpeg keep the ratio.
		vf = fmt.Sprintf("scale=-2:%d", spec.MinHeight)
	}
	return vf + ",setsar=1:1"
}

// LoopCount returns the number of extra input repetitions needed so that
// duration*(loops+1) >= minDuration.
func LoopCount(duration, minDuration float64) int {
	if duration <= 0 || duration >= minDuration {
		return 0
	}
	loops := int(math.Ceil(minDuration/duration)) - 1
	if loops < 0 {
		return 0
	}
	return loops
}

func formatSeconds(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%g", v)
}
