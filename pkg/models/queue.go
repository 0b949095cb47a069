package models

import "time"

// SourceKind identifies where a queued video comes from.
type SourceKind string

const (
	SourceURL           SourceKind = "url"
	SourceUploadChannel SourceKind = "upload_channel"
)

// IsValid returns true if the kind is a known SourceKind.
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceURL, SourceUploadChannel:
		return true
	}
	return false
}

// OutcomeStatus is the lifecycle state of a queue item's processing outcome.
type OutcomeStatus string

const (
	StatusPending   OutcomeStatus = "pending"
	StatusProcessed OutcomeStatus = "processed"
	StatusFailed    OutcomeStatus = "failed"
)

// IsValid returns true if the status is a known OutcomeStatus.
func (s OutcomeStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessed, StatusFailed:
		return true
	}
	return false
}

// QueueItem is one video awaiting or undergoing processing. Identity is
// the integer id assigned at enqueue time and never changes.
type QueueItem struct {
	ID            int64      `json:"id"`
	SourceKind    SourceKind `json:"sourceKind"`
	SourceLocator string     `json:"sourceLocator"`
	OriginalPath  *string    `json:"originalPath,omitempty"`
	ProductLink   *string    `json:"productLink,omitempty"`
	CaptionText   *string    `json:"captionText,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// ProcessingOutcome is the single outcome row kept per queue item. It is
// upserted by item id, never duplicated.
type ProcessingOutcome struct {
	ItemID        int64         `json:"itemId"`
	ProcessedPath *string       `json:"processedPath,omitempty"`
	Status        OutcomeStatus `json:"status"`
	RetryCount    int           `json:"retryCount"`
	ErrorMessage  *string       `json:"errorMessage,omitempty"`
	Profile       QuickProfile  `json:"-"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// EnqueueRequest is the descriptor handed to the store by ingestion
// front ends.
type EnqueueRequest struct {
	SourceKind    SourceKind
	SourceLocator string
	ProductLink   *string
	CaptionText   *string
}

// Validate checks that the request can be enqueued.
func (r *EnqueueRequest) Validate() error {
	if !r.SourceKind.IsValid() {
		return ErrInvalidSourceKind
	}
	if r.SourceLocator == "" {
		return ErrMissingLocator
	}
	return nil
}
