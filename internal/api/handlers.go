package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/amillerrr/clipforge/internal/auth"
	"github.com/amillerrr/clipforge/internal/config"
	"github.com/amillerrr/clipforge/internal/metrics"
	"github.com/amillerrr/clipforge/pkg/models"
)

var tracer = otel.Tracer("clipforge-api")

const (
	MaxLocatorLength   = 2048
	MaxCaptionLength   = 1024 // destination chat caption limit
	MaxRequestBodySize = 1 << 20
)

// QueueStore is the persistence surface the handlers need.
type QueueStore interface {
	Enqueue(ctx context.Context, req models.EnqueueRequest) (int64, error)
	Fetch(ctx context.Context, id int64) (*models.QueueItem, error)
	GetOutcome(ctx context.Context, id int64) (*models.ProcessingOutcome, error)
}

// Handlers contains all HTTP handlers for the API.
type Handlers struct {
	cfg        *config.Config
	log        *slog.Logger
	store      QueueStore
	jwtService *auth.JWTService
}

// HandlersConfig holds dependencies for handlers.
type HandlersConfig struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      QueueStore
	JWTService *auth.JWTService
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *HandlersConfig) *Handlers {
	return &Handlers{
		cfg:        cfg.Config,
		log:        cfg.Logger,
		store:      cfg.Store,
		jwtService: cfg.JWTService,
	}
}

// writeJSON writes a JSON response.
func (h *Handlers) writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil && h.log != nil {
		h.log.ErrorContext(ctx, "Failed to encode JSON response", "error", err)
	}
}

// writeError writes an error response.
func (h *Handlers) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.writeJSON(ctx, w, status, map[string]string{"error": message})
}

// limitRequestBody wraps the request body with a size limit.
func (h *Handlers) limitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
}

// LoginHandler handles user authentication and returns a JWT token.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := auth.GetClientIP(r)

	username, password, ok := r.BasicAuth()
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "Missing credentials")
		return
	}

	if h.cfg.API.Username == "" || h.cfg.API.Password == "" {
		h.log.ErrorContext(ctx, "API credentials not configured")
		h.writeError(ctx, w, http.StatusInternalServerError, "Server configuration error")
		return
	}

	if username != h.cfg.API.Username || password != h.cfg.API.Password {
		h.log.WarnContext(ctx, "Failed login attempt", "username", username, "ip", clientIP)
		metrics.AuthFailures.WithLabelValues("bad_credentials").Inc()
		h.writeError(ctx, w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.jwtService.GenerateToken(username)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to generate token", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.log.InfoContext(ctx, "Successful login", "username", username, "ip", clientIP)
	h.writeJSON(ctx, w, http.StatusOK, map[string]string{"token": token})
}

// EnqueueRequest is the request payload for queueing a video.
type EnqueueRequest struct {
	SourceKind    string  `json:"sourceKind"`
	SourceLocator string  `json:"sourceLocator"`
	ProductLink   *string `json:"productLink,omitempty"`
	CaptionText   *string `json:"captionText,omitempty"`
}

// EnqueueResponse is the response payload for a queued video.
type EnqueueResponse struct {
	ItemID    int64  `json:"itemId"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// EnqueueHandler validates and queues a video for processing.
func (h *Handlers) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	requestID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "enqueue-handler",
		trace.WithAttributes(
			attribute.String("handler", "enqueue"),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	h.limitRequestBody(w, r)

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.RecordError(err)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	kind := models.SourceKind(req.SourceKind)
	if err := validateSource(kind, req.SourceLocator); err != nil {
		span.RecordError(err)
		h.writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CaptionText != nil && len(*req.CaptionText) > MaxCaptionLength {
		h.writeError(ctx, w, http.StatusBadRequest, "caption too long")
		return
	}

	span.SetAttributes(
		attribute.String("item.source_kind", string(kind)),
	)

	id, err := h.store.Enqueue(ctx, models.EnqueueRequest{
		SourceKind:    kind,
		SourceLocator: req.SourceLocator,
		ProductLink:   req.ProductLink,
		CaptionText:   req.CaptionText,
	})
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to enqueue item",
			"error", err,
			"requestId", requestID,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to queue video")
		return
	}

	metrics.ItemsEnqueued.WithLabelValues(string(kind)).Inc()
	span.SetAttributes(attribute.Int64("item.id", id))
	h.log.InfoContext(ctx, "Video queued",
		"itemId", id,
		"sourceKind", kind,
		"requestId", requestID,
	)

	h.writeJSON(ctx, w, http.StatusAccepted, EnqueueResponse{
		ItemID:    id,
		Status:    "queued",
		Message:   "Video queued for processing",
		RequestID: requestID,
	})
}

// ItemStatusResponse is the response payload for the item status endpoint.
type ItemStatusResponse struct {
	Item    *models.QueueItem         `json:"item"`
	Outcome *models.ProcessingOutcome `json:"outcome,omitempty"`
}

// ItemStatusHandler returns a queued item and its processing outcome.
func (h *Handlers) ItemStatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, span := tracer.Start(ctx, "item-status-handler")
	defer span.End()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid item id")
		return
	}
	span.SetAttributes(attribute.Int64("item.id", id))

	item, err := h.store.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrItemNotFound) {
			h.writeError(ctx, w, http.StatusNotFound, "Item not found")
			return
		}
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to fetch item", "itemId", id, "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to retrieve item")
		return
	}

	outcome, err := h.store.GetOutcome(ctx, id)
	if err != nil && !errors.Is(err, models.ErrItemNotFound) {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to fetch outcome", "itemId", id, "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to retrieve item")
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, ItemStatusResponse{
		Item:    item,
		Outcome: outcome,
	})
}

// Validation functions

func validateSource(kind models.SourceKind, locator string) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidSourceKind, kind)
	}
	if locator == "" {
		return models.ErrMissingLocator
	}
	if len(locator) > MaxLocatorLength {
		return errors.New("source locator too long")
	}

	if kind == models.SourceURL {
		u, err := url.Parse(locator)
		if err != nil {
			return errors.New("source locator is not a valid URL")
		}
		scheme := strings.ToLower(u.Scheme)
		if scheme != "http" && scheme != "https" {
			return errors.New("source locator must be an http or https URL")
		}
		if u.Host == "" {
			return errors.New("source locator has no host")
		}
	}
	return nil
}
