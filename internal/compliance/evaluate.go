// Package compliance decides whether a media profile satisfies a target
// specification.
package compliance

import (
	"math"
	"strings"

	"github.com/amillerrr/clipforge/pkg/models"
)

// Deficiency names a specific way a profile fails the target spec.
type Deficiency string

const (
	HeightBelowFloor  Deficiency = "height-below-floor"
	WrongAspectRatio  Deficiency = "wrong-aspect-ratio"
	WrongVideoCodec   Deficiency = "wrong-video-codec"
	WrongAudioCodec   Deficiency = "wrong-audio-codec"
	WrongContainer    Deficiency = "wrong-container"
	BitrateBelowFloor Deficiency = "bitrate-below-floor"
	FPSMismatch       Deficiency = "fps-mismatch"
)

// Result is the verdict for one profile against one spec.
type Result struct {
	Compliant    bool
	Deficiencies []Deficiency
}

// Has reports whether the result contains the given deficiency.
func (r Result) Has(d Deficiency) bool {
	for _, got := range r.Deficiencies {
		if got == d {
			return true
		}
	}
	return false
}

// Evaluate checks profile against spec. Any field required for a check
// that the probe could not determine counts as a failure of that check.
func Evaluate(profile models.MediaProfile, spec models.TargetSpec) Result {
	var deficiencies []Deficiency

	if profile.Height == nil || *profile.Height < spec.MinHeight {
		deficiencies = append(deficiencies, HeightBelowFloor)
	}

	if !AspectWithinTolerance(profile.Width, profile.Height, spec) {
		deficiencies = append(deficiencies, WrongAspectRatio)
	}

	if profile.VideoCodec == nil || *profile.VideoCodec != spec.RequiredVideoCodec {
		deficiencies = append(deficiencies, WrongVideoCodec)
	}

	if profile.AudioCodec == nil || *profile.AudioCodec != spec.RequiredAudioCodec {
		deficiencies = append(deficiencies, WrongAudioCodec)
	}

	if profile.ContainerFormat == nil || !strings.Contains(*profile.ContainerFormat, spec.RequiredContainer) {
		deficiencies = append(deficiencies, WrongContainer)
	}

	if profile.BitrateKbps == nil || *profile.BitrateKbps < spec.MinBitrateKbps {
		deficiencies = append(deficiencies, BitrateBelowFloor)
	}

	if profile.FPS == nil || math.Abs(*profile.FPS-spec.TargetFPS) > spec.FPSTolerance {
		deficiencies = append(deficiencies, FPSMismatch)
	}

	return Result{
		Compliant:    len(deficiencies) == 0,
		Deficiencies: deficiencies,
	}
}

// AspectWithinTolerance reports whether width/height matches the target
// ratio. The comparison is the absolute difference of the two ratio
// values, not a percentage of the target. Unknown or zero dimensions fail.
func AspectWithinTolerance(width, height *int, spec models.TargetSpec) bool {
	if width == nil || height == nil || *width <= 0 || *height <= 0 {
		return false
	}
	ratio := float64(*width) / float64(*height)
	return math.Abs(ratio-spec.AspectRatio()) <= spec.AspectTolerance
}
