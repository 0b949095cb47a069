package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amillerrr/clipforge/pkg/models"
)

// QueueRepository owns all persisted pipeline state: queue items and
// their single processing outcome row. Every operation is one atomic
// statement; no transaction ever spans an external process call, so a
// crash between stages leaves the item re-selectable.
type QueueRepository struct {
	db *DB
}

// NewQueueRepository creates a repository over the given database.
func NewQueueRepository(db *DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Enqueue inserts a new queue item and returns its assigned id. A new
// item has no outcome row yet, which makes it implicitly pending.
func (r *QueueRepository) Enqueue(ctx context.Context, req models.EnqueueRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO queue_items (source_kind, source_locator, product_link, caption_text)
		VALUES (?, ?, ?, ?)
	`, string(req.SourceKind), req.SourceLocator, req.ProductLink, req.CaptionText)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return id, nil
}

// AttachOriginalPath records where the downloaded source landed. Set
// exactly once per item, by the orchestrator after a successful download.
func (r *QueueRepository) AttachOriginalPath(ctx context.Context, id int64, path string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE queue_items SET original_path = ? WHERE id = ?`, path, id)
	if err != nil {
		return fmt.Errorf("failed to attach original path: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrItemNotFound
	}
	return nil
}

// UpsertOutcome inserts or updates the single outcome row for an item.
// The retry counter is deliberately untouched: it only ever moves through
// IncrementRetry.
func (r *QueueRepository) UpsertOutcome(ctx context.Context, id int64, processedPath *string, status models.OutcomeStatus, errorMessage *string, quick models.QuickProfile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outcomes (item_id, processed_path, status, error_message, width, height, duration_seconds, size_bytes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (item_id) DO UPDATE SET
			processed_path = excluded.processed_path,
			status = excluded.status,
			error_message = excluded.error_message,
			width = excluded.width,
			height = excluded.height,
			duration_seconds = excluded.duration_seconds,
			size_bytes = excluded.size_bytes,
			updated_at = CURRENT_TIMESTAMP
	`, id, processedPath, string(status), errorMessage, quick.Width, quick.Height, quick.DurationSeconds, quick.SizeBytes)
	if err != nil {
		return fmt.Errorf("failed to upsert outcome: %w", err)
	}
	return nil
}

// IncrementRetry bumps the item's retry counter by exactly one. The
// counter is monotonic and never resets, including on later success.
func (r *QueueRepository) IncrementRetry(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outcomes (item_id, status, retries, updated_at)
		VALUES (?, 'failed', 1, CURRENT_TIMESTAMP)
		ON CONFLICT (item_id) DO UPDATE SET
			retries = retries + 1,
			updated_at = CURRENT_TIMESTAMP
	`, id)
	if err != nil {
		return fmt.Errorf("failed to increment retry: %w", err)
	}
	return nil
}

// SelectWork returns the ids eligible for processing. In retry-only mode
// only previously failed items under the retry cap are returned. In full
// mode every item without an outcome row, plus every failed item, is
// eligible regardless of retries.
func (r *QueueRepository) SelectWork(ctx context.Context, retryOnly bool, maxRetries int) ([]int64, error) {
	var rows *sql.Rows
	var err error

	if retryOnly {
		rows, err = r.db.QueryContext(ctx, `
			SELECT qi.id
			FROM queue_items qi
			JOIN outcomes o ON o.item_id = qi.id
			WHERE o.status = 'failed' AND o.retries < ?
			ORDER BY qi.id
		`, maxRetries)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT qi.id
			FROM queue_items qi
			LEFT JOIN outcomes o ON o.item_id = qi.id
			WHERE o.item_id IS NULL OR o.status = 'failed'
			ORDER BY qi.id
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select work: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan work id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate work ids: %w", err)
	}
	return ids, nil
}

// Fetch returns the queue item with the given id.
func (r *QueueRepository) Fetch(ctx context.Context, id int64) (*models.QueueItem, error) {
	var (
		item         models.QueueItem
		kind         string
		originalPath sql.NullString
		productLink  sql.NullString
		captionText  sql.NullString
		createdAt    string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, source_kind, source_locator, original_path, product_link, caption_text, created_at
		FROM queue_items
		WHERE id = ?
	`, id).Scan(&item.ID, &kind, &item.SourceLocator, &originalPath, &productLink, &captionText, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item: %w", err)
	}

	item.SourceKind = models.SourceKind(kind)
	item.OriginalPath = nullableString(originalPath)
	item.ProductLink = nullableString(productLink)
	item.CaptionText = nullableString(captionText)
	item.CreatedAt = parseTimestamp(createdAt)
	return &item, nil
}

// GetOutcome returns the outcome row for an item, or ErrItemNotFound if
// none has been recorded yet.
func (r *QueueRepository) GetOutcome(ctx context.Context, id int64) (*models.ProcessingOutcome, error) {
	var (
		outcome       models.ProcessingOutcome
		processedPath sql.NullString
		status        string
		errorMessage  sql.NullString
		width         sql.NullInt64
		height        sql.NullInt64
		duration      sql.NullFloat64
		sizeBytes     sql.NullInt64
		updatedAt     string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT item_id, processed_path, status, retries, error_message, width, height, duration_seconds, size_bytes, updated_at
		FROM outcomes
		WHERE item_id = ?
	`, id).Scan(&outcome.ItemID, &processedPath, &status, &outcome.RetryCount, &errorMessage,
		&width, &height, &duration, &sizeBytes, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outcome: %w", err)
	}

	outcome.ProcessedPath = nullableString(processedPath)
	outcome.Status = models.OutcomeStatus(status)
	outcome.ErrorMessage = nullableString(errorMessage)
	if width.Valid {
		outcome.Profile.Width = models.IntPtr(int(width.Int64))
	}
	if height.Valid {
		outcome.Profile.Height = models.IntPtr(int(height.Int64))
	}
	if duration.Valid {
		outcome.Profile.DurationSeconds = models.Float64Ptr(duration.Float64)
	}
	if sizeBytes.Valid {
		outcome.Profile.SizeBytes = models.Int64Ptr(sizeBytes.Int64)
	}
	outcome.UpdatedAt = parseTimestamp(updatedAt)
	return &outcome, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func parseTimestamp(raw string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
