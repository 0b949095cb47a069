package worker

import (
	"fmt"
	"strings"
)

// BuildCaption assembles the delivery caption from the item description,
// the final output height, and an optional product link. Missing parts are
// skipped rather than rendered as empty separators.
func BuildCaption(description, productLink *string, height *int) string {
	resolution := "N/A"
	if height != nil && *height > 0 {
		resolution = fmt.Sprintf("%dp", *height)
	}

	var head string
	if description != nil && strings.TrimSpace(*description) != "" {
		head = strings.TrimSpace(*description) + " | " + resolution
	} else {
		head = resolution
	}

	parts := []string{head}
	if productLink != nil && strings.TrimSpace(*productLink) != "" {
		parts = append(parts, strings.TrimSpace(*productLink))
	}
	return strings.Join(parts, "\n\n")
}
