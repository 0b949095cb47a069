package transcoder

import (
	"strings"
	"testing"

	"github.com/amillerrr/clipforge/pkg/models"
)

func argIndex(args []string, want string) int {
	for i, a := range args {
		if a == want {
			return i
		}
	}
	return -1
}

func argValue(t *testing.T, args []string, flag string) string {
	t.Helper()
	i := argIndex(args, flag)
	if i == -1 || i+1 >= len(args) {
		t.Fatalf("flag %q not found in args %v", flag, args)
	}
	return args[i+1]
}

func TestLoopCount(t *testing.T) {
	tests := []struct {
		name        string
		duration    float64
		minDuration float64
		want        int
	}{
		{"one second to three", 1, 3, 2},
		{"two seconds to three", 2, 3, 1},
		{"exactly at floor", 3, 3, 0},
		{"above floor", 10, 3, 0},
		{"sub-second", 0.9, 3, 3},
		{"zero duration", 0, 3, 0},
		{"negative duration", -1, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LoopCount(tt.duration, tt.minDuration); got != tt.want {
				t.Errorf("LoopCount(%v, %v) = %d, want %d", tt.duration, tt.minDuration, got, tt.want)
			}
		})
	}
}

func TestEscalationParams(t *testing.T) {
	spec := models.DefaultTargetSpec()

	params := EscalationParams(spec)
	if params.TargetBitrateKbps != 3500 {
		t.Errorf("TargetBitrateKbps = %d, want 3500", params.TargetBitrateKbps)
	}

	spec.TargetBitrateKbps = 5000
	params = EscalationParams(spec)
	if params.TargetBitrateKbps != 5000 {
		t.Errorf("TargetBitrateKbps = %d, want 5000 when spec target exceeds the floor", params.TargetBitrateKbps)
	}
}

func TestBuildArgs_ShortSilentSource(t *testing.T) {
	spec := models.DefaultTargetSpec()
	hint := models.MediaProfile{
		Width:           models.IntPtr(1920),
		Height:          models.IntPtr(1080),
		DurationSeconds: models.Float64Ptr(1),
		HasAudio:        false,
	}

	args := BuildArgs("in.mp4", "out.mp4", spec, hint, FirstPassParams(spec))

	// Looping must be declared before the input it applies to.
	loopIdx := argIndex(args, "-stream_loop")
	inIdx := argIndex(args, "-i")
	if loopIdx == -1 || loopIdx > inIdx {
		t.Fatalf("-stream_loop missing or after -i: %v", args)
	}
	if got := args[loopIdx+1]; got != "2" {
		t.Errorf("loop count = %s, want 2", got)
	}

	// Silent source gets a synthesized stereo track.
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "anullsrc=channel_layout=stereo:sample_rate=44100") {
		t.Errorf("missing anullsrc input: %v", args)
	}
	if !strings.Contains(joined, "-map 0:v:0 -map 1:a:0") {
		t.Errorf("missing silent-audio mapping: %v", args)
	}

	if got := argValue(t, args, "-b:v"); got != "3000k" {
		t.Errorf("-b:v = %s, want 3000k", got)
	}
	if got := argValue(t, args, "-maxrate"); got != "3600k" {
		t.Errorf("-maxrate = %s, want 3600k", got)
	}
	if got := argValue(t, args, "-bufsize"); got != "9000k" {
		t.Errorf("-bufsize = %s, want 9000k", got)
	}

	if argIndex(args, "-t") != -1 {
		t.Errorf("unexpected trim for short source: %v", args)
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("output not last: %v", args)
	}
}

func TestBuildArgs_LongSourceTrimmed(t *testing.T) {
	spec := models.DefaultTargetSpec()
	hint := models.MediaProfile{
		Width:           models.IntPtr(720),
		Height:          models.IntPtr(1280),
		DurationSeconds: models.Float64Ptr(120),
		HasAudio:        true,
	}

	args := BuildArgs("in.mp4", "out.mp4", spec, hint, FirstPassParams(spec))

	if got := argValue(t, args, "-t"); got != "60" {
		t.Errorf("-t = %s, want 60", got)
	}
	if argIndex(args, "-stream_loop") != -1 {
		t.Errorf("unexpected loop for long source: %v", args)
	}

	// Source audio mapped optionally, no synthesized track.
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "anullsrc") {
		t.Errorf("unexpected anullsrc for source with audio: %v", args)
	}
	if !strings.Contains(joined, "-map 0:v:0 -map 0:a:0?") {
		t.Errorf("missing source audio mapping: %v", args)
	}
}

func TestBuildArgs_BitrateFloorWins(t *testing.T) {
	spec := models.DefaultTargetSpec()
	hint := models.MediaProfile{
		Width:  models.IntPtr(720),
		Height: models.IntPtr(1280),
	}

	args := BuildArgs("in.mp4", "out.mp4", spec, hint, PassParams{
		TargetBitrateKbps: 2000,
		MinBitrateKbps:    2500,
	})

	if got := argValue(t, args, "-b:v"); got != "2500k" {
		t.Errorf("-b:v = %s, want floor 2500k", got)
	}
}

func TestBuildArgs_FilterSelection(t *testing.T) {
	spec := models.DefaultTargetSpec()

	t.Run("already vertical scales only", func(t *testing.T) {
		hint := models.MediaProfile{Width: models.IntPtr(720), Height: models.IntPtr(1280)}
		args := BuildArgs("in.mp4", "out.mp4", spec, hint, FirstPassParams(spec))
		if got := argValue(t, args, "-vf"); got != "scale=-2:720,setsar=1:1" {
			t.Errorf("-vf = %s, want scale only", got)
		}
	})

	t.Run("landscape gets center crop", func(t *testing.T) {
		hint := models.MediaProfile{Width: models.IntPtr(1920), Height: models.IntPtr(1080)}
		args := BuildArgs("in.mp4", "out.mp4", spec, hint, FirstPassParams(spec))
		got := argValue(t, args, "-vf")
		if !strings.HasPrefix(got, "crop=") || !strings.Contains(got, "flags=lanczos") {
			t.Errorf("-vf = %s, want crop+lanczos scale", got)
		}
		if !strings.HasSuffix(got, ",setsar=1:1") {
			t.Errorf("-vf = %s, want setsar suffix", got)
		}
	})

	t.Run("unknown geometry scales by height", func(t *testing.T) {
		args := BuildArgs("in.mp4", "out.mp4", spec, models.MediaProfile{}, FirstPassParams(spec))
		if got := argValue(t, args, "-vf"); got != "scale=-2:720,setsar=1:1" {
			t.Errorf("-vf = %s, want height scale fallback", got)
		}
	})
}

func TestPlanCropScale(t *testing.T) {
	spec := models.DefaultTargetSpec()

	t.Run("wider source crops width", func(t *testing.T) {
		plan := PlanCropScale(1920, 1080, spec)
		if !plan.CropCenterX {
			t.Error("CropCenterX = false, want true for wide source")
		}
		if plan.CropWidth != 606 || plan.CropHeight != 1080 {
			t.Errorf("crop = %dx%d, want 606x1080", plan.CropWidth, plan.CropHeight)
		}
		if plan.CropWidth%2 != 0 || plan.ScaleWidth%2 != 0 || plan.ScaleHeight%2 != 0 {
			t.Errorf("dimensions not even: %+v", plan)
		}
	})

	t.Run("narrower source crops height", func(t *testing.T) {
		plan := PlanCropScale(600, 1400, spec)
		if plan.CropCenterX {
			t.Error("CropCenterX = true, want false for narrow source")
		}
		if plan.CropWidth != 600 || plan.CropHeight != 1066 {
			t.Errorf("crop = %dx%d, want 600x1066", plan.CropWidth, plan.CropHeight)
		}
	})

	t.Run("odd source height floored even", func(t *testing.T) {
		plan := PlanCropScale(1920, 1081, spec)
		if plan.CropHeight != 1080 || plan.CropWidth != 606 {
			t.Errorf("crop = %dx%d, want 606x1080", plan.CropWidth, plan.CropHeight)
		}
	})

	t.Run("odd source width floored even", func(t *testing.T) {
		plan := PlanCropScale(601, 1400, spec)
		if plan.CropWidth != 600 || plan.CropHeight != 1066 {
			t.Errorf("crop = %dx%d, want 600x1066", plan.CropWidth, plan.CropHeight)
		}
		if plan.CropWidth%2 != 0 || plan.CropHeight%2 != 0 {
			t.Errorf("dimensions not even: %+v", plan)
		}
	})

	t.Run("scale target matches spec height", func(t *testing.T) {
		plan := PlanCropScale(1920, 1080, spec)
		if plan.ScaleHeight != 720 {
			t.Errorf("ScaleHeight = %d, want 720", plan.ScaleHeight)
		}
		ratio := float64(plan.ScaleWidth) / float64(plan.ScaleHeight)
		if ratio < spec.AspectRatio()-spec.AspectTolerance || ratio > spec.AspectRatio()+spec.AspectTolerance {
			t.Errorf("scaled ratio %v outside tolerance of %v", ratio, spec.AspectRatio())
		}
	})
}

func TestFilterPlan_FilterString(t *testing.T) {
	tests := []struct {
		name string
		plan FilterPlan
		want string
	}{
		{
			"horizontal crop",
			FilterPlan{CropWidth: 606, CropHeight: 1080, CropCenterX: true, ScaleWidth: 406, ScaleHeight: 720},
			"crop=606:1080:(iw-606)/2:0,scale=406:720:flags=lanczos",
		},
		{
			"vertical crop",
			FilterPlan{CropWidth: 600, CropHeight: 1066, CropCenterX: false, ScaleWidth: 406, ScaleHeight: 720},
			"crop=600:1066:0:(ih-1066)/2,scale=406:720:flags=lanczos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.plan.FilterString(); got != tt.want {
				t.Errorf("FilterString() = %s, want %s", got, tt.want)
			}
		})
	}
}
