package models

import "errors"

// Sentinel errors for pipeline operations.
var (
	// Validation errors
	ErrInvalidSourceKind = errors.New("invalid source kind")
	ErrMissingLocator    = errors.New("source locator is required")

	// External tool errors
	ErrToolUnavailable = errors.New("external tool not found")
	ErrToolTimeout     = errors.New("external tool timed out")
	ErrToolFailed      = errors.New("external tool exited with error")

	// Probe errors
	ErrIncompleteMedia = errors.New("probe returned incomplete media profile")

	// Stage errors
	ErrDownloadFailed  = errors.New("failed to download video")
	ErrTranscodeFailed = errors.New("failed to transcode video")
	ErrUpscaleFailed   = errors.New("failed to upscale video")
	ErrDeliveryFailed  = errors.New("failed to deliver video")

	// Delivery errors
	ErrDeliveryRejected = errors.New("delivery endpoint rejected the file")

	// Storage errors
	ErrItemNotFound = errors.New("queue item not found")
)
