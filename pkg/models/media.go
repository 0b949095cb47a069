package models

// MediaProfile holds the facts a probe could establish about a media file.
// A nil field means the probe could not determine the value (tool missing,
// file unreadable, stream absent). Compliance checks must treat nil as
// failing, never as zero.
type MediaProfile struct {
	Width           *int     `json:"width,omitempty"`
	Height          *int     `json:"height,omitempty"`
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	VideoCodec      *string  `json:"videoCodec,omitempty"`
	AudioCodec      *string  `json:"audioCodec,omitempty"`
	ContainerFormat *string  `json:"containerFormat,omitempty"`
	BitrateKbps     *int     `json:"bitrateKbps,omitempty"`
	HasAudio        bool     `json:"hasAudio"`
	FPS             *float64 `json:"fps,omitempty"`
}

// QuickProfile is the cheap probe subset used for progress bookkeeping.
type QuickProfile struct {
	Width           *int
	Height          *int
	DurationSeconds *float64
	SizeBytes       *int64
}

// TargetSpec describes the delivery platform's requirements. It is built
// from configuration once and never mutated at runtime.
type TargetSpec struct {
	MinHeight          int
	TargetBitrateKbps  int
	MinBitrateKbps     int
	MinDurationSeconds float64
	MaxDurationSeconds float64
	AspectNumerator    int
	AspectDenominator  int
	AspectTolerance    float64
	RequiredVideoCodec string
	RequiredAudioCodec string
	RequiredContainer  string
	TargetFPS          float64
	FPSTolerance       float64
}

// DefaultTargetSpec returns the vertical 9:16 short-video requirements.
func DefaultTargetSpec() TargetSpec {
	return TargetSpec{
		MinHeight:          720,
		TargetBitrateKbps:  3000,
		MinBitrateKbps:     2000,
		MinDurationSeconds: 3,
		MaxDurationSeconds: 60,
		AspectNumerator:    9,
		AspectDenominator:  16,
		AspectTolerance:    0.03,
		RequiredVideoCodec: "h264",
		RequiredAudioCodec: "aac",
		RequiredContainer:  "mp4",
		TargetFPS:          30,
		FPSTolerance:       0.5,
	}
}

// AspectRatio returns the target width/height ratio.
func (s TargetSpec) AspectRatio() float64 {
	return float64(s.AspectNumerator) / float64(s.AspectDenominator)
}

// IntPtr returns a pointer to v. Convenience for building profiles.
func IntPtr(v int) *int { return &v }

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }
