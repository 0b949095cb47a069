package transcoder

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/amillerrr/clipforge/pkg/models"
)

// fakeHeightProber returns a fixed height per path.
type fakeHeightProber struct {
	heights map[string]int
}

func (f *fakeHeightProber) QuickProbe(ctx context.Context, path string) models.QuickProfile {
	h, ok := f.heights[path]
	if !ok {
		return models.QuickProfile{}
	}
	return models.QuickProfile{Height: models.IntPtr(h)}
}

func testUpscaler(t *testing.T, prober HeightProber) *Upscaler {
	t.Helper()
	return NewUpscaler(UpscalerConfig{
		FFmpegPath: "/nonexistent/ffmpeg",
		MinHeight:  720,
		OutputDir:  t.TempDir(),
		Prober:     prober,
		Logger:     slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	})
}

func TestEnsureMinimumHeight_AlreadyTall(t *testing.T) {
	u := testUpscaler(t, &fakeHeightProber{heights: map[string]int{"tall.mp4": 1080}})

	path, method := u.EnsureMinimumHeight(context.Background(), "tall.mp4")

	if path != "tall.mp4" {
		t.Errorf("path = %s, want input unchanged", path)
	}
	if method != MethodUnchanged {
		t.Errorf("method = %s, want %s", method, MethodUnchanged)
	}
}

func TestEnsureMinimumHeight_ExactlyAtFloor(t *testing.T) {
	u := testUpscaler(t, &fakeHeightProber{heights: map[string]int{"edge.mp4": 720}})

	path, method := u.EnsureMinimumHeight(context.Background(), "edge.mp4")

	if path != "edge.mp4" || method != MethodUnchanged {
		t.Errorf("got (%s, %s), want input unchanged at exact floor", path, method)
	}
}

func TestEnsureMinimumHeight_Idempotent(t *testing.T) {
	u := testUpscaler(t, &fakeHeightProber{heights: map[string]int{"tall.mp4": 1080}})

	first, _ := u.EnsureMinimumHeight(context.Background(), "tall.mp4")
	second, method := u.EnsureMinimumHeight(context.Background(), first)

	if second != first || method != MethodUnchanged {
		t.Errorf("second pass got (%s, %s), want (%s, %s)", second, method, first, MethodUnchanged)
	}
}

func TestEnsureMinimumHeight_AllToolsFailKeepsOriginal(t *testing.T) {
	// No video2x configured and a nonexistent ffmpeg: every attempt fails
	// and the original must come back rather than an error.
	u := testUpscaler(t, &fakeHeightProber{heights: map[string]int{"small.mp4": 480}})

	path, method := u.EnsureMinimumHeight(context.Background(), "small.mp4")

	if path != "small.mp4" {
		t.Errorf("path = %s, want original kept", path)
	}
	if method != MethodUnchanged {
		t.Errorf("method = %s, want %s", method, MethodUnchanged)
	}
}

func TestEnsureMinimumHeight_UnknownHeightTriggersUpscale(t *testing.T) {
	// A probe that cannot establish height is treated as below the floor.
	u := testUpscaler(t, &fakeHeightProber{heights: map[string]int{}})

	path, method := u.EnsureMinimumHeight(context.Background(), "mystery.mp4")

	// Tools are unavailable in this test, so the original survives, but
	// the attempt path (not the short-circuit) must have been taken.
	if path != "mystery.mp4" || method != MethodUnchanged {
		t.Errorf("got (%s, %s), want original after failed attempts", path, method)
	}
}
