package transcoder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/amillerrr/clipforge/internal/toolexec"
	"github.com/amillerrr/clipforge/pkg/models"
)

// Methods reported by EnsureMinimumHeight.
const (
	MethodUnchanged = "unchanged"
	MethodVideo2x   = "video2x"
	MethodFFmpeg    = "ffmpeg"
)

// HeightProber is the probe subset the upscaler needs to verify results.
type HeightProber interface {
	QuickProbe(ctx context.Context, path string) models.QuickProfile
}

// UpscalerConfig holds upscaler dependencies and tool locations.
type UpscalerConfig struct {
	FFmpegPath     string
	Video2xPath    string
	Video2xTimeout time.Duration
	MinHeight      int
	OutputDir      string
	Prober         HeightProber
	Logger         *slog.Logger
}

// Upscaler guarantees the minimum height floor. It prefers a dedicated
// super-resolution tool and falls back to a plain FFmpeg scale, which is
// slower-looking but always available.
type Upscaler struct {
	cfg UpscalerConfig
}

// NewUpscaler creates an Upscaler with the given configuration.
func NewUpscaler(cfg UpscalerConfig) *Upscaler {
	return &Upscaler{cfg: cfg}
}

// EnsureMinimumHeight returns a path whose video meets the configured
// height floor, plus the method used. Sources already at or above the
// floor come back unchanged. When every upscale attempt fails the
// original path is returned with a warning; delivery is not blocked on
// the floor alone.
func (u *Upscaler) EnsureMinimumHeight(ctx context.Context, inputPath string) (string, string) {
	quick := u.cfg.Prober.QuickProbe(ctx, inputPath)
	if quick.Height != nil && *quick.Height >= u.cfg.MinHeight {
		return inputPath, MethodUnchanged
	}

	sourceHeight := 0
	if quick.Height != nil {
		sourceHeight = *quick.Height
	}
	u.cfg.Logger.Info("Source below height floor, upscaling",
		"input", filepath.Base(inputPath),
		"height", sourceHeight,
		"floor", u.cfg.MinHeight,
	)

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	v2xOut := filepath.Join(u.cfg.OutputDir, base+"_v2x.mp4")
	ffOut := filepath.Join(u.cfg.OutputDir, base+"_scaled.mp4")

	if path, ok := u.tryVideo2x(ctx, inputPath, v2xOut); ok {
		return path, MethodVideo2x
	}

	if u.ffmpegUpscale(ctx, inputPath, ffOut) {
		return ffOut, MethodFFmpeg
	}

	// One more plain-scale attempt before giving up.
	if u.ffmpegUpscale(ctx, inputPath, ffOut) {
		return ffOut, MethodFFmpeg
	}

	u.cfg.Logger.Warn("All upscale attempts failed, keeping original",
		"input", filepath.Base(inputPath),
	)
	return inputPath, MethodUnchanged
}

// tryVideo2x runs the preferred tool under its timeout and verifies the
// result actually reached the floor. Any failure degrades to the
// fallback; it is never surfaced as an error.
func (u *Upscaler) tryVideo2x(ctx context.Context, inputPath, outputPath string) (string, bool) {
	if u.cfg.Video2xPath == "" || !toolexec.Available(u.cfg.Video2xPath) {
		return "", false
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", false
	}

	_, err := toolexec.Run(ctx, u.cfg.Video2xTimeout, u.cfg.Video2xPath,
		"--input", inputPath,
		"--output", outputPath,
		"--scale-width", "0",
		"--scale-height", fmt.Sprintf("%d", u.cfg.MinHeight),
	)
	if err != nil {
		u.cfg.Logger.Warn("video2x attempt failed", "error", err)
		return "", false
	}

	quick := u.cfg.Prober.QuickProbe(ctx, outputPath)
	if quick.Height == nil || *quick.Height < u.cfg.MinHeight {
		u.cfg.Logger.Warn("video2x output below floor, discarding", "output", filepath.Base(outputPath))
		return "", false
	}

	return outputPath, true
}

func (u *Upscaler) ffmpegUpscale(ctx context.Context, inputPath, outputPath string) bool {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return false
	}

	_, err := toolexec.Run(ctx, 0, u.cfg.FFmpegPath,
		"-y",
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=-2:%d", u.cfg.MinHeight),
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
		"-c:a", "aac", "-b:a", "128k",
		outputPath,
	)
	if err != nil {
		u.cfg.Logger.Warn("ffmpeg upscale attempt failed", "error", err)
		return false
	}

	if _, statErr := os.Stat(outputPath); statErr != nil {
		return false
	}
	return true
}
