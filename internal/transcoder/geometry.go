package transcoder

import (
	"fmt"
	"math"

	"github.com/amillerrr/clipforge/pkg/models"
)

// FilterPlan describes the crop and scale steps that convert a source
// geometry into the target aspect ratio at exact pixel dimensions.
type FilterPlan struct {
	CropWidth   int
	CropHeight  int
	CropCenterX bool // crop is horizontal (source wider than target)
	ScaleWidth  int
	ScaleHeight int
}

// PlanCropScale computes the symmetric center crop that matches the
// target ratio at the source size, followed by a scale to exact target
// dimensions. All dimensions are forced even for 4:2:0 chroma
// subsampling. No letterboxing: excess width or height is cropped away.
func PlanCropScale(width, height int, spec models.TargetSpec) FilterPlan {
	target := spec.AspectRatio()

	plan := FilterPlan{
		ScaleHeight: evenRound(float64(spec.MinHeight)),
		ScaleWidth:  evenRound(float64(spec.MinHeight) * target),
	}

	if float64(width)/float64(height) > target {
		// Source wider than target: crop width at full source height.
		plan.CropHeight = evenFloor(float64(height))
		plan.CropWidth = evenFloor(float64(plan.CropHeight) * target)
		plan.CropCenterX = true
	} else {
		// Source narrower: crop height at full source width.
		plan.CropWidth = evenFloor(float64(width))
		plan.CropHeight = evenFloor(float64(plan.CropWidth) / target)
		plan.CropCenterX = false
	}

	return plan
}

// FilterString renders the plan as an ffmpeg video filter chain using
// lanczos resampling for the scale step.
func (p FilterPlan) FilterString() string {
	var crop string
	if p.CropCenterX {
		crop = fmt.Sprintf("crop=%d:%d:(iw-%d)/2:0", p.CropWidth, p.CropHeight, p.CropWidth)
	} else {
		crop = fmt.Sprintf("crop=%d:%d:0:(ih-%d)/2", p.CropWidth, p.CropHeight, p.CropHeight)
	}
	return fmt.Sprintf("%s,scale=%d:%d:flags=lanczos", crop, p.ScaleWidth, p.ScaleHeight)
}

// evenFloor rounds v down to the nearest even integer.
func evenFloor(v float64) int {
	return int(math.Floor(v/2)) * 2
}

// evenRound rounds v to the nearest even integer.
func evenRound(v float64) int {
	return int(math.Round(v/2)) * 2
}
