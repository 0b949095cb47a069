// Package probe extracts media metadata via ffprobe.
package probe

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/amillerrr/clipforge/internal/toolexec"
	"github.com/amillerrr/clipforge/pkg/models"
)

// Prober inspects media files with ffprobe. Probe failures are degraded
// information, not errors: downstream compliance checks treat missing
// fields conservatively.
type Prober struct {
	ffprobePath string
	log         *slog.Logger
}

// New creates a Prober using the given ffprobe executable.
func New(ffprobePath string, log *slog.Logger) *Prober {
	return &Prober{ffprobePath: ffprobePath, log: log}
}

// Probe returns the full media profile for path. A missing file, missing
// tool, or failed invocation yields an all-null profile.
func (p *Prober) Probe(ctx context.Context, path string) models.MediaProfile {
	if _, err := os.Stat(path); err != nil {
		return models.MediaProfile{}
	}

	res, err := toolexec.Run(ctx, 0, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		p.log.Warn("ffprobe failed, returning empty profile", "path", path, "error", err)
		return models.MediaProfile{}
	}

	return parseProbeJSON(res.Stdout)
}

// QuickProbe returns the cheap subset used for progress bookkeeping:
// dimensions, duration, and file size. Codec fields are not loaded.
func (p *Prober) QuickProbe(ctx context.Context, path string) models.QuickProfile {
	var quick models.QuickProfile

	info, err := os.Stat(path)
	if err != nil {
		return quick
	}
	quick.SizeBytes = models.Int64Ptr(info.Size())

	res, err := toolexec.Run(ctx, 0, p.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "default=noprint_wrappers=1:nokey=0",
		path,
	)
	if err != nil {
		p.log.Warn("ffprobe quick probe failed", "path", path, "error", err)
		return quick
	}

	for _, line := range strings.Split(string(res.Stdout), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "width":
			if v, err := strconv.Atoi(value); err == nil {
				quick.Width = models.IntPtr(v)
			}
		case "height":
			if v, err := strconv.Atoi(value); err == nil {
				quick.Height = models.IntPtr(v)
			}
		case "duration":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				quick.DurationSeconds = models.Float64Ptr(v)
			}
		}
	}

	return quick
}

// ffprobe JSON output shapes. Numeric fields arrive as strings.
type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	BitRate    string `json:"bit_rate"`
	Duration   string `json:"duration"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	BitRate      string `json:"bit_rate"`
	Duration     string `json:"duration"`
}

func parseProbeJSON(data []byte) models.MediaProfile {
	var profile models.MediaProfile

	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return profile
	}

	if name := strings.ToLower(out.Format.FormatName); name != "" {
		profile.ContainerFormat = models.StringPtr(name)
	}
	if kbps, ok := parseBitrateKbps(out.Format.BitRate); ok {
		profile.BitrateKbps = models.IntPtr(kbps)
	}
	if v, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		profile.DurationSeconds = models.Float64Ptr(v)
	}

	for i := range out.Streams {
		s := &out.Streams[i]
		switch s.CodecType {
		case "video":
			if profile.VideoCodec != nil {
				continue // first video stream wins
			}
			if s.CodecName != "" {
				profile.VideoCodec = models.StringPtr(strings.ToLower(s.CodecName))
			}
			if s.Width > 0 {
				profile.Width = models.IntPtr(s.Width)
			}
			if s.Height > 0 {
				profile.Height = models.IntPtr(s.Height)
			}
			if fps, ok := parseFrameRate(s.AvgFrameRate); ok {
				profile.FPS = models.Float64Ptr(fps)
			}
			// Prefer the video stream's bitrate over the container's.
			if kbps, ok := parseBitrateKbps(s.BitRate); ok {
				profile.BitrateKbps = models.IntPtr(kbps)
			}
			if profile.DurationSeconds == nil {
				if v, err := strconv.ParseFloat(s.Duration, 64); err == nil {
					profile.DurationSeconds = models.Float64Ptr(v)
				}
			}
		case "audio":
			if profile.HasAudio {
				continue
			}
			profile.HasAudio = true
			if s.CodecName != "" {
				profile.AudioCodec = models.StringPtr(strings.ToLower(s.CodecName))
			}
		}
	}

	return profile
}

// parseBitrateKbps converts a bits-per-second string to kbps, never
// reporting less than 1 for a non-zero rate.
func parseBitrateKbps(raw string) (int, bool) {
	bps, err := strconv.Atoi(raw)
	if err != nil || bps <= 0 {
		return 0, false
	}
	kbps := bps / 1000
	if kbps < 1 {
		kbps = 1
	}
	return kbps, true
}

// parseFrameRate handles ffprobe rational rates like "30000/1001".
func parseFrameRate(raw string) (float64, bool) {
	if raw == "" || raw == "0/0" {
		return 0, false
	}
	if numStr, denStr, ok := strings.Cut(raw, "/"); ok {
		num, errN := strconv.ParseFloat(numStr, 64)
		den, errD := strconv.ParseFloat(denStr, 64)
		if errN != nil || errD != nil || den == 0 {
			return 0, false
		}
		return num / den, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
