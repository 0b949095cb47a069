package probe

import (
	"context"
	"log/slog"
	"os"
	"testing"
)

const sampleProbeJSON = `{
	"streams": [
		{
			"codec_type": "video",
			"codec_name": "H264",
			"width": 1080,
			"height": 1920,
			"avg_frame_rate": "30000/1001",
			"bit_rate": "2500000"
		},
		{
			"codec_type": "audio",
			"codec_name": "AAC"
		}
	],
	"format": {
		"format_name": "mov,mp4,m4a,3gp,3g2,mj2",
		"bit_rate": "2800000",
		"duration": "32.5"
	}
}`

func TestParseProbeJSON(t *testing.T) {
	profile := parseProbeJSON([]byte(sampleProbeJSON))

	if profile.Width == nil || *profile.Width != 1080 {
		t.Errorf("Width = %v, want 1080", profile.Width)
	}
	if profile.Height == nil || *profile.Height != 1920 {
		t.Errorf("Height = %v, want 1920", profile.Height)
	}
	if profile.VideoCodec == nil || *profile.VideoCodec != "h264" {
		t.Errorf("VideoCodec = %v, want h264 (lowercased)", profile.VideoCodec)
	}
	if profile.AudioCodec == nil || *profile.AudioCodec != "aac" {
		t.Errorf("AudioCodec = %v, want aac (lowercased)", profile.AudioCodec)
	}
	if !profile.HasAudio {
		t.Error("HasAudio = false, want true")
	}
	if profile.ContainerFormat == nil || *profile.ContainerFormat != "mov,mp4,m4a,3gp,3g2,mj2" {
		t.Errorf("ContainerFormat = %v", profile.ContainerFormat)
	}
	if profile.DurationSeconds == nil || *profile.DurationSeconds != 32.5 {
		t.Errorf("DurationSeconds = %v, want 32.5", profile.DurationSeconds)
	}
	// Video stream bitrate preferred over the container's.
	if profile.BitrateKbps == nil || *profile.BitrateKbps != 2500 {
		t.Errorf("BitrateKbps = %v, want 2500 from the video stream", profile.BitrateKbps)
	}
	if profile.FPS == nil || *profile.FPS < 29.9 || *profile.FPS > 30.0 {
		t.Errorf("FPS = %v, want ~29.97", profile.FPS)
	}
}

func TestParseProbeJSON_NoAudio(t *testing.T) {
	profile := parseProbeJSON([]byte(`{
		"streams": [{"codec_type": "video", "codec_name": "vp9", "width": 640, "height": 360}],
		"format": {"format_name": "webm"}
	}`))

	if profile.HasAudio {
		t.Error("HasAudio = true for video-only file")
	}
	if profile.AudioCodec != nil {
		t.Errorf("AudioCodec = %v, want nil", profile.AudioCodec)
	}
	if profile.BitrateKbps != nil {
		t.Errorf("BitrateKbps = %v, want nil when absent", profile.BitrateKbps)
	}
}

func TestParseProbeJSON_Malformed(t *testing.T) {
	profile := parseProbeJSON([]byte("not json at all"))

	if profile.Width != nil || profile.VideoCodec != nil || profile.HasAudio {
		t.Errorf("malformed input should yield an empty profile, got %+v", profile)
	}
}

func TestParseBitrateKbps(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   int
		wantOK bool
	}{
		{"normal rate", "2500000", 2500, true},
		{"tiny non-zero rate", "500", 1, true},
		{"zero", "0", 0, false},
		{"negative", "-100", 0, false},
		{"empty", "", 0, false},
		{"garbage", "fast", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseBitrateKbps(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("parseBitrateKbps(%q) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   float64
		wantOK bool
	}{
		{"plain rational", "30/1", 30, true},
		{"ntsc rational", "30000/1001", 29.97002997002997, true},
		{"plain number", "25", 25, true},
		{"zero over zero", "0/0", 0, false},
		{"zero denominator", "30/0", 0, false},
		{"empty", "", 0, false},
		{"garbage", "thirty", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseFrameRate(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("parseFrameRate(%q) = (%v, %v), want (%v, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestProbe_MissingFile(t *testing.T) {
	p := New("/nonexistent/ffprobe", slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	profile := p.Probe(context.Background(), "/no/such/file.mp4")
	if profile.Width != nil || profile.Height != nil || profile.HasAudio {
		t.Errorf("missing file should yield an empty profile, got %+v", profile)
	}

	quick := p.QuickProbe(context.Background(), "/no/such/file.mp4")
	if quick.SizeBytes != nil || quick.Height != nil {
		t.Errorf("missing file should yield an empty quick profile, got %+v", quick)
	}
}
